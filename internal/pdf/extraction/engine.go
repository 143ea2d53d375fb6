// Package extraction assembles pages into an ExtractionResult. It opens a
// document with the first backend that can read it, runs the page
// pipeline on a bounded worker pool and aggregates text, HTML and
// structure in page order.
package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/faithful-pdf/internal/pdf/consensus"
	pdferrors "github.com/a3tai/faithful-pdf/internal/pdf/errors"
	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/ocr"
	"github.com/a3tai/faithful-pdf/internal/pdf/render"
	"github.com/a3tai/faithful-pdf/internal/pdf/security"
	"github.com/a3tai/faithful-pdf/internal/pdf/stability"
	"github.com/a3tai/faithful-pdf/internal/pdf/tables"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
	"github.com/a3tai/faithful-pdf/internal/pdf/vector"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// Extraction methods reported on the result.
const (
	MethodFaithful  = "faithful_native"
	MethodConsensus = "faithful_consensus"
	MethodPlainText = "plain_text_fallback"
	MethodNone      = "none"
)

// Cache stores completed results by key
type Cache interface {
	Lookup(key string) (*model.ExtractionResult, bool)
	Store(key string, result *model.ExtractionResult) error
}

// Request is one extraction call
type Request struct {
	// Name labels the document in logs, errors and the HTML title.
	Name string
	Data []byte
	// Reprocess skips the cache read and overwrites the cached entry.
	Reprocess bool
}

// Engine extracts documents. It holds only read-only configuration and is
// safe for concurrent use; each call owns its document handle.
type Engine struct {
	opts      Options
	caps      Capabilities
	input     *InputValidator
	spans     *text.Extractor
	collector *vector.Collector
	detector  *tables.Detector
	ocr       *ocr.Processor
	consensus *consensus.Orchestrator
	renderer  *render.Renderer
	guard     *stability.Guard
	cache     Cache
	logger    *zap.Logger
}

// New creates an engine
func New(opts Options, caps Capabilities, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	input, err := NewInputValidator(opts.MaxFileSize, opts.PDFDir)
	if err != nil {
		return nil, fmt.Errorf("invalid input settings: %w", err)
	}
	return &Engine{
		opts:      opts,
		caps:      caps,
		input:     input,
		spans:     text.NewExtractor(opts.Join),
		collector: vector.NewCollector(opts.Vector, logger),
		detector:  tables.NewDetector(opts.Tables, logger),
		ocr:       ocr.NewProcessor(caps.OCR, opts.OCR, logger),
		consensus: consensus.New(logger),
		renderer:  render.NewRenderer(opts.Render, logger),
		guard:     stability.NewGuard(logger, 20),
		logger:    logger,
	}, nil
}

// WithCache enables the result cache
func (e *Engine) WithCache(c Cache) *Engine {
	e.cache = c
	return e
}

// Capabilities returns the injected capabilities
func (e *Engine) Capabilities() Capabilities {
	return e.caps
}

// Renderer returns the renderer used for page HTML
func (e *Engine) Renderer() *render.Renderer {
	return e.renderer
}

// ExtractFile validates path and extracts it. Only invalid input is
// returned as an error.
func (e *Engine) ExtractFile(ctx context.Context, path string) (*model.ExtractionResult, error) {
	return e.extractPath(ctx, path, false)
}

// ReprocessFile is ExtractFile without the cache read
func (e *Engine) ReprocessFile(ctx context.Context, path string) (*model.ExtractionResult, error) {
	return e.extractPath(ctx, path, true)
}

func (e *Engine) extractPath(ctx context.Context, path string, reprocess bool) (*model.ExtractionResult, error) {
	if err := e.input.Validate(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err).WithFile(path)
	}
	return e.Extract(ctx, Request{Name: path, Data: data, Reprocess: reprocess})
}

// ExtractBytes extracts an in-memory document
func (e *Engine) ExtractBytes(ctx context.Context, name string, data []byte) (*model.ExtractionResult, error) {
	return e.Extract(ctx, Request{Name: name, Data: data})
}

// Extract runs the full pipeline. A document no backend can read yields a
// result with Extracted false and a placeholder, not an error.
func (e *Engine) Extract(ctx context.Context, req Request) (*model.ExtractionResult, error) {
	if len(req.Data) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidInput, "document is empty").WithFile(req.Name)
	}

	key := e.cacheKey(req.Data)
	if e.cache != nil && !req.Reprocess {
		if cached, ok := e.cache.Lookup(key); ok {
			e.logger.Debug("result served from cache", zap.String("file", req.Name))
			return cached, nil
		}
	}

	start := time.Now()
	e.logger.Debug("extraction started",
		zap.String("file", req.Name),
		zap.String("status", model.StatusPending))

	errs := pdferrors.NewErrorCollection(req.Name)
	result := e.extractWithFallback(ctx, req, errs)
	result.Structure.Metadata.ProcessingTimeMS = time.Since(start).Milliseconds()
	result.Errors = errs.Strings()

	e.logger.Info("extraction finished",
		zap.String("file", req.Name),
		zap.String("status", result.Structure.Metadata.Status),
		zap.String("method", result.ExtractionMethod),
		zap.Int("pages", len(result.Pages)),
		zap.Int("errors", len(result.Errors)),
		zap.Int64("ms", result.Structure.Metadata.ProcessingTimeMS))

	if e.cache != nil && result.Extracted {
		if err := e.cache.Store(key, result); err != nil {
			e.logger.Warn("failed to cache result", zap.String("file", req.Name), zap.Error(err))
		}
	}
	return result, nil
}

func (e *Engine) cacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + ":" + e.opts.Fingerprint()
}

// extractWithFallback tries each backend until one extracts a page
func (e *Engine) extractWithFallback(ctx context.Context, req Request, errs *pdferrors.ErrorCollection) *model.ExtractionResult {
	if len(e.caps.Backends) == 0 {
		errs.Add(pdferrors.NewPDFError(pdferrors.ErrorTypeBackendUnavailable, "no PDF backend available").
			WithComponent("backend"))
	}

	for _, backend := range e.caps.Backends {
		result, err := e.extractWith(ctx, backend, req, errs)
		if err == nil {
			return result
		}
		errs.Add(pdferrors.WrapError(pdferrors.ErrorTypeBackendUnavailable, err).
			WithComponent(string(backend.Type())))
		e.logger.Warn("backend failed, trying next",
			zap.String("file", req.Name),
			zap.String("backend", string(backend.Type())),
			zap.Error(err))
	}

	errs.Add(pdferrors.NewPDFError(pdferrors.ErrorTypeTotalExtractionFailure,
		"no backend could extract the document").WithComponent("document"))
	return e.failure(req.Name)
}

// failure is the result of a document nothing could read
func (e *Engine) failure(name string) *model.ExtractionResult {
	return &model.ExtractionResult{
		Extracted:        false,
		ExtractionMethod: MethodNone,
		HTML:             render.Placeholder("The file " + filepath.Base(name) + " could not be read by any PDF backend."),
		Pages:            []model.Page{},
		Structure: model.Structure{
			Elements:   []model.Element{},
			Tables:     []model.Element{},
			Images:     []model.Element{},
			TextBlocks: []model.TextBlock{},
			Metadata: model.Metadata{
				Capabilities: e.caps.Map(),
				Status:       model.StatusError,
			},
		},
	}
}

// onceDocument closes the underlying document exactly once however many
// paths reach Close. Page passes hold a lease on it; a pass abandoned by
// its timeout keeps the handle open until the pass returns, and the last
// lease released after Close performs the close.
type onceDocument struct {
	wrapper.Document
	mu      sync.Mutex
	leases  int
	closing bool
	closed  bool
	err     error
}

// acquire takes a lease; it fails once Close has been called
func (d *onceDocument) acquire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return false
	}
	d.leases++
	return true
}

func (d *onceDocument) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leases--
	d.closeLocked()
}

func (d *onceDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closing = true
	d.closeLocked()
	return d.err
}

func (d *onceDocument) closeLocked() {
	if d.closing && !d.closed && d.leases == 0 {
		d.closed = true
		d.err = d.Document.Close()
	}
}

// docRun is the per-call state shared by the pages of one document
type docRun struct {
	name    string
	data    []byte
	doc     *onceDocument
	backend wrapper.BackendType
	errs    *pdferrors.ErrorCollection
}

// pageOutput is one processed page with the values aggregated per document
type pageOutput struct {
	page      model.Page
	ocrWords  int
	consensus *consensus.Result
	failed    bool
}

// extractWith extracts the document with one backend. It fails when the
// backend cannot open the document or every page failed.
func (e *Engine) extractWith(ctx context.Context, backend wrapper.Backend, req Request, errs *pdferrors.ErrorCollection) (*model.ExtractionResult, error) {
	var opened wrapper.Document
	err := e.guard.Protect("open", func() error {
		var err error
		opened, err = backend.Open(req.Data)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	doc := &onceDocument{Document: opened}
	defer doc.Close()

	count := doc.PageCount()
	if count <= 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	e.logger.Debug("document opened",
		zap.String("file", req.Name),
		zap.String("backend", string(backend.Type())),
		zap.Int("pages", count),
		zap.String("status", model.StatusProcessing))

	run := &docRun{name: req.Name, data: req.Data, doc: doc, backend: backend.Type(), errs: errs}
	outputs := e.processPages(ctx, run, count)

	failed := 0
	for _, o := range outputs {
		if o.failed {
			failed++
		}
	}
	if failed == len(outputs) {
		return nil, fmt.Errorf("all %d pages failed", failed)
	}

	return e.assemble(run, outputs), nil
}

// processPages runs the page pipeline on a bounded worker pool. Each page
// writes its own slot, so output order is page order.
func (e *Engine) processPages(ctx context.Context, run *docRun, count int) []pageOutput {
	workers := e.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outputs := make([]pageOutput, count)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < count; i++ {
		number := i + 1
		g.Go(func() error {
			outputs[number-1] = e.processPage(ctx, run, number)
			return nil
		})
	}
	_ = g.Wait()
	return outputs
}

// processPage runs one page under the page timeout. A panic or overrun
// yields a placeholder page.
func (e *Engine) processPage(ctx context.Context, run *docRun, number int) pageOutput {
	start := time.Now()
	var out pageOutput
	var err error
	if run.doc.acquire() {
		out, err = stability.Run(ctx, e.guard, "page", e.opts.PageTimeout,
			func(ctx context.Context) (pageOutput, error) {
				defer run.doc.release()
				return e.runPage(ctx, run, number)
			})
	} else {
		err = wrapper.ErrDocumentClosed
	}
	if err == nil {
		e.logger.Debug("page processed",
			zap.Int("page", number),
			zap.Int("elements", len(out.page.Elements)),
			zap.Duration("took", time.Since(start)))
		return out
	}

	msg := err.Error()
	kind := pdferrors.ErrorTypePageProcessing
	var cause *pdferrors.PDFError
	if stderrors.As(err, &cause) {
		msg = cause.Message
		if cause.Type == pdferrors.ErrorTypeTimeout {
			kind = pdferrors.ErrorTypeTimeout
		}
	}
	pe := pdferrors.NewPDFError(kind, msg).WithPage(number).WithComponent("page")
	pe.Cause = err
	run.errs.Add(pe)
	e.logger.Warn("page replaced by placeholder",
		zap.Int("page", number),
		zap.String("component", "page"),
		zap.Error(err))

	size := e.pageSize(run.doc, number)
	page := model.NewPlaceholderPage(number, size, msg)
	page.HTML = e.renderer.ErrorPage(number, page.PageDimensions, msg)
	return pageOutput{page: page, failed: true}
}

// pageSize reads the page dimensions of a page that may be broken
func (e *Engine) pageSize(doc wrapper.Document, number int) geom.Size {
	var size geom.Size
	_ = e.guard.Protect("page size", func() error {
		pg, err := doc.Page(number)
		if err != nil {
			return err
		}
		size = pg.Size()
		return nil
	})
	return size
}

// assemble aggregates pages into the document result
func (e *Engine) assemble(run *docRun, outputs []pageOutput) *model.ExtractionResult {
	pages := make([]model.Page, len(outputs))
	for i, o := range outputs {
		pages[i] = o.page
	}
	assignLevels(pages)

	meta := run.doc.Metadata()
	result := &model.ExtractionResult{
		Extracted:        true,
		ExtractionMethod: MethodFaithful,
		Pages:            pages,
		Structure: model.Structure{
			Elements:   []model.Element{},
			Tables:     []model.Element{},
			Images:     []model.Element{},
			TextBlocks: []model.TextBlock{},
			Metadata: model.Metadata{
				Title:        meta.Title,
				Author:       meta.Author,
				Subject:      meta.Subject,
				Creator:      meta.Creator,
				Producer:     meta.Producer,
				PageCount:    len(pages),
				Backend:      string(run.backend),
				Capabilities: e.caps.Map(),
				Status:       model.StatusCompleted,
			},
		},
	}
	if meta.Encrypted {
		perms := security.Permissions(meta.Permissions)
		result.Structure.Metadata.Encrypted = true
		result.Structure.Metadata.Restrictions = perms.Denied()
		if !perms.CanExtract() {
			e.logger.Warn("document permissions withhold content extraction",
				zap.String("file", run.name),
				zap.Stringer("permissions", perms))
		}
	}
	if run.backend != wrapper.BackendLedongthuc {
		result.ExtractionMethod = MethodPlainText
	} else if e.opts.Consensus {
		result.ExtractionMethod = MethodConsensus
	}

	var texts, fragments []string
	var votes []consensus.Result
	md := &result.Structure.Metadata
	for _, o := range outputs {
		p := o.page
		if strings.TrimSpace(p.Text) != "" {
			texts = append(texts, p.Text)
		}
		fragments = append(fragments, p.HTML)
		result.Structure.Elements = append(result.Structure.Elements, p.Elements...)
		result.Structure.Tables = append(result.Structure.Tables, p.Tables...)
		result.Structure.Images = append(result.Structure.Images, p.Images...)
		result.Structure.TextBlocks = append(result.Structure.TextBlocks, p.TextBlocks...)
		md.OCRWordCount += o.ocrWords
		if o.failed {
			md.FailedPages = append(md.FailedPages, p.PageNumber)
		}
		if o.consensus != nil {
			votes = append(votes, *o.consensus)
		}
	}
	md.TableCount = len(result.Structure.Tables)
	md.ImageCount = len(result.Structure.Images)
	result.Text = strings.Join(texts, "\n\n")

	if e.opts.Consensus {
		md.Consensus = consensus.Combine(votes).Summary(consensus.NormalizedText(result.Structure.TextBlocks))
	}

	title := meta.Title
	if title == "" {
		title = filepath.Base(run.name)
	}
	html, err := e.renderer.Document(title, fragments)
	if err != nil {
		run.errs.Add(pdferrors.WrapError(pdferrors.ErrorTypeElementExtraction, err).WithComponent("render"))
		html = render.Placeholder(err.Error())
	}
	result.HTML = html
	return result
}

// assignLevels numbers headings across the whole document so sizes are
// compared between pages
func assignLevels(pages []model.Page) {
	var all []model.TextBlock
	for _, p := range pages {
		all = append(all, p.TextBlocks...)
	}
	consensus.AssignLevels(all)
	i := 0
	for _, p := range pages {
		for j := range p.TextBlocks {
			p.TextBlocks[j].Level = all[i].Level
			i++
		}
	}
}
