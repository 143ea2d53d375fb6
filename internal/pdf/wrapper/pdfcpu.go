package wrapper

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
)

// PDFCPUBackend is the fallback backend. It has no positioned text, only
// the plain text shown by the page's Tj/TJ operators, plus embedded image
// payloads.
type PDFCPUBackend struct{}

// NewPDFCPUBackend creates the pdfcpu backend
func NewPDFCPUBackend() *PDFCPUBackend {
	return &PDFCPUBackend{}
}

// Type returns the backend type
func (b *PDFCPUBackend) Type() BackendType {
	return BackendPDFCPU
}

// Open reads the document in relaxed validation mode
func (b *PDFCPUBackend) Open(data []byte) (Document, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, &WrapperError{Backend: BackendPDFCPU, Op: "open", Err: err}
	}

	dims, err := ctx.PageDims()
	if err != nil {
		dims = nil
	}
	return &PDFCPUDocument{ctx: ctx, dims: dims}, nil
}

func readContext(data []byte) (ctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err = api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	indexImages(ctx)
	return ctx, nil
}

// indexImages runs the optimize pass, which records the image objects of
// each page; without it ExtractPageImages finds nothing. A document the
// pass cannot index still serves text.
func indexImages(ctx *model.Context) {
	defer func() {
		if r := recover(); r != nil {
			ctx.Optimize.PageImages = nil
		}
	}()
	if err := api.OptimizeContext(ctx); err != nil {
		ctx.Optimize.PageImages = nil
	}
}

// PDFCPUDocument implements Document using pdfcpu
type PDFCPUDocument struct {
	ctx       *model.Context
	dims      []types.Dim
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// PageCount returns the number of pages
func (d *PDFCPUDocument) PageCount() int {
	return d.ctx.PageCount
}

// Page returns the 1-based page
func (d *PDFCPUDocument) Page(pageNum int) (Page, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, &WrapperError{Backend: BackendPDFCPU, Op: "page", Err: ErrDocumentClosed}
	}
	if pageNum < 1 || pageNum > d.ctx.PageCount {
		return nil, &WrapperError{Backend: BackendPDFCPU, Op: "page", Err: fmt.Errorf("%w: %d", ErrPageNotFound, pageNum)}
	}

	size := geom.Size{Width: defaultPageWidth, Height: defaultPageHeight}
	if pageNum-1 < len(d.dims) && d.dims[pageNum-1].Width > 0 {
		size = geom.Size{Width: d.dims[pageNum-1].Width, Height: d.dims[pageNum-1].Height}
	}
	return &PDFCPUPage{doc: d, number: pageNum, size: size}, nil
}

// Metadata returns the info dictionary fields pdfcpu parsed
func (d *PDFCPUDocument) Metadata() Metadata {
	m := Metadata{
		Title:    d.ctx.Title,
		Author:   d.ctx.Author,
		Subject:  d.ctx.Subject,
		Creator:  d.ctx.Creator,
		Producer: d.ctx.Producer,
	}
	if d.ctx.E != nil {
		m.Encrypted = true
		m.Permissions = int32(d.ctx.E.P)
	}
	return m
}

// Close releases the context
func (d *PDFCPUDocument) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
	})
	return nil
}

// pageImages extracts image payloads; pdfcpu's context is not safe for
// concurrent extraction so calls are serialized.
func (d *PDFCPUDocument) pageImages(pageNum int) (refs map[string]ImageRef, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			refs = nil
			err = &WrapperError{Backend: BackendPDFCPU, Op: "images", Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	images, err := pdfcpu.ExtractPageImages(d.ctx, pageNum, false)
	if err != nil {
		return nil, &WrapperError{Backend: BackendPDFCPU, Op: "images", Err: err}
	}

	refs = make(map[string]ImageRef, len(images))
	for objNr, img := range images {
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img)
		if err != nil || len(data) == 0 {
			continue
		}
		name := strings.TrimPrefix(img.Name, "/")
		if name == "" {
			name = fmt.Sprintf("obj%d", objNr)
		}
		ref := ImageRef{
			Name:   name,
			Data:   data,
			Format: img.FileType,
			Width:  img.Width,
			Height: img.Height,
		}
		if ref.Width == 0 {
			ref.Width, ref.Height = d.imageDims(objNr)
		}
		refs[name] = ref
	}
	return refs, nil
}

// imageDims reads Width and Height from the image dictionary indexed by
// the optimize pass
func (d *PDFCPUDocument) imageDims(objNr int) (int, int) {
	obj, ok := d.ctx.Optimize.ImageObjects[objNr]
	if !ok || obj == nil || obj.ImageDict == nil {
		return 0, 0
	}
	var w, h int
	if v := obj.ImageDict.IntEntry("Width"); v != nil {
		w = *v
	}
	if v := obj.ImageDict.IntEntry("Height"); v != nil {
		h = *v
	}
	return w, h
}

// PageImages implements ImageSource so the native backend can borrow
// pdfcpu's image decoding.
func (d *PDFCPUDocument) PageImages(pageNum int) (map[string]ImageRef, error) {
	return d.pageImages(pageNum)
}

// NewPDFCPUImageSource opens a pdfcpu context over data for image payloads,
// returning nil when pdfcpu cannot read the file.
func NewPDFCPUImageSource(data []byte) ImageSource {
	ctx, err := readContext(data)
	if err != nil {
		return nil
	}
	return &PDFCPUDocument{ctx: ctx}
}

// PDFCPUPage implements Page using pdfcpu
type PDFCPUPage struct {
	doc    *PDFCPUDocument
	number int
	size   geom.Size
}

func (p *PDFCPUPage) Number() int     { return p.number }
func (p *PDFCPUPage) Size() geom.Size { return p.size }

// TextRuns is not available from pdfcpu
func (p *PDFCPUPage) TextRuns() ([]TextRun, error) {
	return nil, &WrapperError{Backend: BackendPDFCPU, Op: "text_runs", Err: ErrNotSupported}
}

// Paths is not available from pdfcpu
func (p *PDFCPUPage) Paths() ([]Path, error) {
	return nil, nil
}

// Images returns embedded images. pdfcpu does not report placements, so
// every image is assumed to cover the full page.
func (p *PDFCPUPage) Images() ([]ImageRef, error) {
	refs, err := p.doc.pageImages(p.number)
	if err != nil {
		return nil, err
	}
	out := make([]ImageRef, 0, len(refs))
	for _, ref := range refs {
		ref.Box = geom.NewBox(0, 0, p.size.Width, p.size.Height)
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PlainText decodes the page content stream and collects shown strings
func (p *PDFCPUPage) PlainText() (text string, err error) {
	p.doc.mu.Lock()
	defer p.doc.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = &WrapperError{Backend: BackendPDFCPU, Op: "plain_text", Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	r, err := pdfcpu.ExtractPageContent(p.doc.ctx, p.number)
	if err != nil {
		return "", &WrapperError{Backend: BackendPDFCPU, Op: "plain_text", Err: err}
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &WrapperError{Backend: BackendPDFCPU, Op: "plain_text", Err: err}
	}
	return textFromContentStream(data), nil
}
