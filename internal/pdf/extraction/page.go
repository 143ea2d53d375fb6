package extraction

import (
	"context"
	stderrors "errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/consensus"
	pdferrors "github.com/a3tai/faithful-pdf/internal/pdf/errors"
	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/ocr"
	"github.com/a3tai/faithful-pdf/internal/pdf/render"
	"github.com/a3tai/faithful-pdf/internal/pdf/tables"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
	"github.com/a3tai/faithful-pdf/internal/pdf/vector"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// Span sources.
const (
	SourceNative = "native"
	SourceOCR    = "ocr"
	SourcePlain  = "plain_text"
)

// plainConfidence is the confidence of text without positions
const plainConfidence = 0.3

// pageRun is the state of one page while it is processed
type pageRun struct {
	engine *Engine
	number int
	size   geom.Size
	errs   *pdferrors.ErrorCollection

	// ocrConfidence maps the IDs of spans read by OCR to their confidence.
	ocrConfidence map[int]float64
	ocrApplied    bool
	ocrWords      int
}

// runPage extracts one page
func (e *Engine) runPage(ctx context.Context, run *docRun, number int) (pageOutput, error) {
	if err := ctx.Err(); err != nil {
		return pageOutput{}, err
	}
	pg, err := run.doc.Page(number)
	if err != nil {
		return pageOutput{}, err
	}
	size := pg.Size()
	if size.Width <= 0 || size.Height <= 0 {
		size = geom.Size{Width: 612, Height: 792}
	}
	r := &pageRun{
		engine:        e,
		number:        number,
		size:          size,
		errs:          run.errs,
		ocrConfidence: map[int]float64{},
	}
	return r.run(ctx, run, pg)
}

// fail records a failure that skipped one part of the page
func (r *pageRun) fail(kind pdferrors.ErrorType, component string, err error) {
	pe := pdferrors.NewPDFError(kind, err.Error()).WithPage(r.number).WithComponent(component)
	pe.Cause = err
	r.errs.Add(pe)
	r.engine.logger.Warn("element skipped",
		zap.Int("page", r.number),
		zap.String("component", component),
		zap.Error(err))
}

func (r *pageRun) run(ctx context.Context, run *docRun, pg wrapper.Page) (pageOutput, error) {
	e := r.engine

	spans, plain, err := r.spans(pg)
	if err != nil {
		return pageOutput{}, err
	}
	if err := ctx.Err(); err != nil {
		return pageOutput{}, err
	}

	refs, err := pg.Images()
	if err != nil {
		r.fail(pdferrors.ErrorTypeElementExtraction, "images", err)
	}
	images := r.decodeImages(refs)

	if e.opts.OCREnabled && nativeChars(spans, plain) < e.opts.OCRMinNativeChars {
		spans = append(spans, r.scanned(ctx, run.data, images, spans)...)
	}

	if err := ctx.Err(); err != nil {
		return pageOutput{}, err
	}
	prims := e.collector.Collect(pg)
	found := r.tables(spans, prims)

	tableEls := make([]model.Element, 0, len(found.Tables))
	zones := make([]geom.Box, 0, len(found.Tables))
	for _, f := range found.Tables {
		tableEls = append(tableEls, model.NewElement(r.number, f.Box, r.size, f.Confidence, f.Table))
		zones = append(zones, f.Box)
	}

	free := make([]text.Span, 0, len(spans))
	for _, s := range spans {
		if !found.Consumed[s.ID] {
			free = append(free, s)
		}
	}
	blocks := text.BuildBlocks(free, zones, e.opts.Tables.RowTolerance)
	textBlocks := text.ToModel(blocks, r.number, r.size)
	kinds := make(map[int]string, len(free))
	for i, b := range blocks {
		for _, s := range b.Spans {
			kinds[s.ID] = textBlocks[i].BlockType
		}
	}
	textEls := r.textElements(free, kinds)

	pageText := text.Text(spans, e.opts.Tables.RowTolerance)
	if len(spans) == 0 && strings.TrimSpace(plain) != "" {
		pageText = strings.TrimSpace(plain)
		el, block := r.plainText(pageText)
		textEls = append(textEls, el)
		textBlocks = append(textBlocks, block)
	}

	var merged *consensus.Result
	content := append(textEls, tableEls...)
	if e.opts.Consensus {
		res := r.consensus(spans, textEls, tableEls, textBlocks)
		content = res.Elements
		merged = &res
	}

	elements := make([]model.Element, 0, len(content)+len(images)+len(prims.Shapes))
	elements = append(elements, content...)
	for _, img := range images {
		if ctx.Err() != nil {
			return pageOutput{}, ctx.Err()
		}
		if el, ok := r.imageElement(ctx, img); ok {
			elements = append(elements, el)
		}
	}
	elements = append(elements, r.shapeElements(prims)...)
	model.SortReadingOrder(elements)

	page := model.Page{
		PageNumber:     r.number,
		Text:           pageText,
		PageDimensions: r.size,
		Elements:       elements,
		Images:         byType(elements, model.ElementImage),
		Tables:         byType(elements, model.ElementTable),
		TextBlocks:     textBlocks,
		CharsCount:     utf8.RuneCountInString(pageText),
		OCRApplied:     r.ocrApplied,
	}
	page.HTML = e.renderer.Page(render.Page{
		Number:     r.number,
		Size:       r.size,
		Elements:   elements,
		GridBoxes:  found.GridBoxes,
		OCRApplied: r.ocrApplied,
	})
	return pageOutput{page: page, ocrWords: r.ocrWords, consensus: merged}, nil
}

// spans returns the positioned spans of the page, or its plain text when
// the backend cannot position text
func (r *pageRun) spans(pg wrapper.Page) ([]text.Span, string, error) {
	runs, err := pg.TextRuns()
	if err == nil {
		spans := r.engine.spans.Extract(runs)
		return text.DedupFooters(spans, r.size), "", nil
	}
	if !stderrors.Is(err, wrapper.ErrNotSupported) {
		return nil, "", err
	}
	plain, err := pg.PlainText()
	if err != nil {
		return nil, "", err
	}
	return nil, plain, nil
}

// tables detects tables; a detector failure leaves every span free
func (r *pageRun) tables(spans []text.Span, prims vector.Primitives) tables.Result {
	var res tables.Result
	err := r.engine.guard.Protect("tables", func() error {
		res = r.engine.detector.Detect(spans, prims)
		return nil
	})
	if err != nil {
		r.fail(pdferrors.ErrorTypeElementExtraction, "tables", err)
		return tables.Result{Consumed: map[int]bool{}}
	}
	return res
}

func (r *pageRun) textElements(spans []text.Span, kinds map[int]string) []model.Element {
	out := make([]model.Element, 0, len(spans))
	for _, s := range spans {
		conf, source := 1.0, SourceNative
		if c, ok := r.ocrConfidence[s.ID]; ok {
			conf, source = c, SourceOCR
		}
		out = append(out, model.NewElement(r.number, s.Box, r.size, conf, &model.TextSpan{
			Text:         s.Text,
			FontFamily:   s.Font,
			FontSize:     geom.Round(s.Size, 2),
			Bold:         s.Bold(),
			Italic:       s.Italic(),
			SemanticType: semanticType(s.Text, kinds[s.ID]),
			Source:       source,
		}))
	}
	return out
}

// plainText places unpositioned text over the page body
func (r *pageRun) plainText(s string) (model.Element, model.TextBlock) {
	box := geom.NewBox(0, 0, r.size.Width, r.size.Height)
	el := model.NewElement(r.number, box, r.size, plainConfidence, &model.TextSpan{
		Text:         s,
		FontSize:     10,
		SemanticType: text.BlockParagraph,
		Source:       SourcePlain,
	})
	block := model.TextBlock{
		ID:         model.StableID(r.number, "text_block", 0, box),
		Page:       r.number,
		Text:       s,
		BlockType:  text.BlockParagraph,
		FontSize:   10,
		SpanCount:  1,
		Confidence: plainConfidence,
		Position:   box.Position(r.size),
		Box:        box,
	}
	return el, block
}

func (r *pageRun) shapeElements(prims vector.Primitives) []model.Element {
	out := make([]model.Element, 0, len(prims.Shapes))
	for _, s := range prims.Shapes {
		out = append(out, model.NewElement(r.number, s.Box, r.size, 1, &model.Shape{
			ShapeType: s.Kind,
			Properties: model.ShapeProperties{
				StrokeColor: s.StrokeColor,
				FillColor:   s.FillColor,
				LineWidth:   s.LineWidth,
			},
		}))
	}
	return out
}

// consensus merges the page's elements with the votes of the clustering
// and layout methods
func (r *pageRun) consensus(spans []text.Span, textEls, tableEls []model.Element, blocks []model.TextBlock) consensus.Result {
	var geometric []model.Element
	for _, f := range r.engine.detector.Clustered(spans) {
		geometric = append(geometric, model.NewElement(r.number, f.Box, r.size, f.Confidence, f.Table))
	}
	return r.engine.consensus.Merge([]consensus.Method{
		{Name: consensus.MethodNativeText, Primary: true, Elements: textEls},
		{Name: consensus.MethodVectorGrid, Primary: true, Elements: tableEls},
		{Name: consensus.MethodGeometric, Elements: geometric},
		{Name: consensus.MethodLayout, Elements: consensus.Regions(blocks, r.size)},
	})
}

// semanticType labels a span for styling: headings by block, numbers,
// quantities, dates and references by content, the rest by block type
func semanticType(s, blockType string) string {
	if blockType == text.BlockHeading {
		return text.BlockHeading
	}
	switch kind := ocr.EditableType(s); kind {
	case model.EditableNumber, model.EditableQuantity, model.EditableDate,
		model.EditableReference, model.EditableReferenceID:
		return kind
	}
	if blockType == "" {
		return text.BlockParagraph
	}
	return blockType
}

func nativeChars(spans []text.Span, plain string) int {
	n := 0
	count := func(s string) {
		for _, c := range s {
			if !unicode.IsSpace(c) {
				n++
			}
		}
	}
	for _, s := range spans {
		count(s.Text)
	}
	count(plain)
	return n
}

// nextID is the first span ID not in use
func nextID(spans []text.Span) int {
	n := 0
	for _, s := range spans {
		if s.ID >= n {
			n = s.ID + 1
		}
	}
	return n
}

func byType(elements []model.Element, kind model.ElementType) []model.Element {
	out := []model.Element{}
	for _, el := range elements {
		if el.Type() == kind {
			out = append(out, el)
		}
	}
	return out
}
