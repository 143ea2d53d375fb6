package extraction

import (
	"context"
	stderrors "errors"
	"image"

	"go.uber.org/zap"

	pdferrors "github.com/a3tai/faithful-pdf/internal/pdf/errors"
	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/ocr"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
)

// Font size bounds of text read from a scan.
const (
	minScanFont = 8
	maxScanFont = 12
)

// scanned reads a page with too little native text. The page is
// rasterized when a rasterizer is available, otherwise its largest image
// is read. Words come back as spans in page space, numbered after the
// native spans; words lying on native text are dropped.
func (r *pageRun) scanned(ctx context.Context, data []byte, images []placedImage, native []text.Span) []text.Span {
	e := r.engine
	if !e.ocr.Available() {
		return nil
	}
	img, frame, ok := r.scanSource(data, images)
	if !ok {
		return nil
	}

	words, err := e.ocr.PageWords(ctx, img)
	if err != nil {
		kind := pdferrors.ErrorTypeElementExtraction
		if stderrors.Is(err, ocr.ErrEngineUnavailable) {
			kind = pdferrors.ErrorTypeBackendUnavailable
		}
		r.fail(kind, "ocr", err)
		return nil
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}
	sx := frame.Width() / float64(b.Dx())
	sy := frame.Height() / float64(b.Dy())

	id := nextID(native)
	spans := make([]text.Span, 0, len(words))
	for _, w := range words {
		box := geom.NewBox(
			frame.X0+float64(w.BBox.X)*sx,
			frame.Y0+float64(w.BBox.Y)*sy,
			frame.X0+float64(w.BBox.X+w.BBox.Width)*sx,
			frame.Y0+float64(w.BBox.Y+w.BBox.Height)*sy,
		)
		if onNative(box, native) {
			continue
		}
		spans = append(spans, text.Span{
			ID:   id,
			Text: w.Text,
			Size: geom.Round(geom.Clamp(box.Height()*0.9, minScanFont, maxScanFont), 2),
			Box:  box,
		})
		r.ocrConfidence[id] = w.Confidence / 100
		id++
	}

	r.ocrApplied = len(spans) > 0
	r.ocrWords += len(spans)
	e.logger.Debug("scanned page read",
		zap.Int("page", r.number),
		zap.Int("words", len(spans)))
	return spans
}

// scanSource returns the raster to read and the page box it covers
func (r *pageRun) scanSource(data []byte, images []placedImage) (image.Image, geom.Box, bool) {
	e := r.engine
	if e.caps.Rasterizer != nil && len(data) > 0 {
		img, err := e.caps.Rasterizer.Rasterize(data, r.number, e.opts.OCRDPI)
		if err == nil {
			return img, geom.NewBox(0, 0, r.size.Width, r.size.Height), true
		}
		e.logger.Debug("rasterizing failed, reading the largest image",
			zap.Int("page", r.number),
			zap.Error(err))
	}

	p, ok := largest(images)
	if !ok {
		return nil, geom.Box{}, false
	}
	frame := p.ref.Box.Clamp(r.size)
	if frame.Empty() {
		frame = geom.NewBox(0, 0, r.size.Width, r.size.Height)
	}
	return p.decoded, frame, true
}

func onNative(b geom.Box, native []text.Span) bool {
	for _, s := range native {
		if b.OverlapRatio(s.Box) > 0.5 {
			return true
		}
	}
	return false
}
