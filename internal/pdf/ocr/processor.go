package ocr

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/stability"
)

// Config holds the recognition settings
type Config struct {
	Passes []Pass
	// Enhance runs every pass over each enhancement variant; otherwise
	// only the grayscale original is read.
	Enhance           bool
	DedupTolerance    float64
	MergeAdjacent     bool
	AdjacentThreshold int
	Symbols           bool
	// MaxConcurrent bounds the passes running at once.
	MaxConcurrent     int64
	PassTimeout       time.Duration
	PageMinConfidence float64
}

// DefaultConfig returns the standard multi-pass settings
func DefaultConfig() Config {
	return Config{
		Passes:            DefaultPasses(),
		Enhance:           true,
		DedupTolerance:    5,
		MergeAdjacent:     true,
		AdjacentThreshold: 5,
		Symbols:           true,
		MaxConcurrent:     4,
		PassTimeout:       20 * time.Second,
		PageMinConfidence: 60,
	}
}

// Processor runs recognition passes and builds overlays
type Processor struct {
	engine Engine
	cfg    Config
	guard  *stability.Guard
	logger *zap.Logger
}

// NewProcessor creates a processor. A nil engine yields empty overlays.
func NewProcessor(engine Engine, cfg Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if len(cfg.Passes) == 0 {
		cfg.Passes = DefaultPasses()
	}
	return &Processor{
		engine: engine,
		cfg:    cfg,
		guard:  stability.NewGuard(logger, 10),
		logger: logger,
	}
}

// Available reports whether an engine is configured
func (p *Processor) Available() bool {
	return p != nil && p.engine != nil
}

// Overlay recognizes img and returns its editable overlay. Without an
// engine the overlay is empty; a failing pass only loses its own words.
func (p *Processor) Overlay(ctx context.Context, img image.Image) *model.OCROverlay {
	b := img.Bounds()
	overlay := Empty(b.Dx(), b.Dy())
	if !p.Available() {
		return overlay
	}
	if b.Empty() {
		overlay.Error = "empty image"
		return overlay
	}

	gray := Gray(img)
	variants := []Variant{{Name: "original", Image: gray, Scale: 1}}
	if p.cfg.Enhance {
		variants = Variants(gray)
	}

	batches, passes := p.runPasses(ctx, variants)
	var candidates []model.OCRWord
	for _, batch := range batches {
		candidates = append(candidates, batch...)
	}
	words := Dedup(candidates, p.cfg.DedupTolerance)

	if p.cfg.Symbols {
		words = mergeSymbols(words, p.symbols(gray), p.cfg.DedupTolerance)
	}

	overlay.Available = true
	overlay.Passes = passes
	overlay.Words = words
	overlay.EditableElements = Editable(words, b.Dx(), b.Dy(), p.cfg.MergeAdjacent, p.cfg.AdjacentThreshold)
	overlay.Quality = Assess(words)
	overlay.EditingCapabilities = Capabilities(words, overlay.Quality)
	if words == nil {
		overlay.Words = []model.OCRWord{}
	}

	p.logger.Debug("image recognized",
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
		zap.Int("passes", passes),
		zap.Int("candidates", len(candidates)),
		zap.Int("words", len(words)))
	return overlay
}

// Empty is the overlay of an image that was not recognized
func Empty(width, height int) *model.OCROverlay {
	return &model.OCROverlay{
		Words:            []model.OCRWord{},
		EditableElements: []model.EditableElement{},
		Quality:          Assess(nil),
		ImageWidth:       width,
		ImageHeight:      height,
	}
}

// runPasses runs every pass over every variant, bounded by MaxConcurrent.
// Batches are indexed by variant and pass so the result order does not
// depend on scheduling.
func (p *Processor) runPasses(ctx context.Context, variants []Variant) ([][]model.OCRWord, int) {
	nPasses := len(p.cfg.Passes)
	batches := make([][]model.OCRWord, len(variants)*nPasses)
	sem := semaphore.NewWeighted(p.cfg.MaxConcurrent)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	base := variants[0].Image.Rect

	for vi, v := range variants {
		for pi, pass := range p.cfg.Passes {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(slot int, v Variant, pass Pass) {
				defer wg.Done()
				defer sem.Release(1)

				op := fmt.Sprintf("ocr %s/%s", v.Name, pass.Name)
				raw, err := stability.Run(ctx, p.guard, op, p.cfg.PassTimeout,
					func(ctx context.Context) ([]Word, error) {
						return p.engine.Recognize(ctx, v.Image, pass)
					})
				if err != nil {
					p.logger.Debug("OCR pass failed", zap.String("pass", op), zap.Error(err))
					return
				}
				batches[slot] = candidates(raw, v, pass, base.Dx(), base.Dy())
				mu.Lock()
				succeeded++
				mu.Unlock()
			}(vi*nPasses+pi, v, pass)
		}
	}
	wg.Wait()
	return batches, succeeded
}

// candidates filters raw words by the adaptive thresholds and maps them
// back to source pixels.
func candidates(raw []Word, v Variant, pass Pass, width, height int) []model.OCRWord {
	scale := v.Scale
	if scale <= 0 {
		scale = 1
	}
	var out []model.OCRWord
	for _, w := range raw {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		kind := Classify(text)
		conf := finite(w.Confidence)
		if conf < Threshold(kind, pass) {
			continue
		}

		box := model.PixelBox{
			X:      int(math.Round(float64(w.Box.Min.X) / scale)),
			Y:      int(math.Round(float64(w.Box.Min.Y) / scale)),
			Width:  int(math.Round(float64(w.Box.Dx()) / scale)),
			Height: int(math.Round(float64(w.Box.Dy()) / scale)),
		}
		minW, minH := 8, 6
		if isAnnotation(kind) {
			minW, minH = 3, 3
		}
		if box.Width < minW || box.Height < minH {
			continue
		}

		out = append(out, model.OCRWord{
			Text:            text,
			Confidence:      geom.Round(conf, 1),
			Score:           geom.Round(Score(text, conf, kind), 1),
			BBox:            box,
			Position:        percentBox(box, width, height),
			TechnicalType:   kind,
			Font:            EstimateFont(text, kind, box.Width, box.Height),
			DisplayPriority: DisplayPriority(kind),
			Source:          v.Name + "/" + pass.Name,
		})
	}
	return out
}

// symbols returns shape detections not already covered by a word
func (p *Processor) symbols(gray *image.Gray) []model.OCRWord {
	var out []model.OCRWord
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for _, s := range DetectSymbols(gray) {
		box := model.PixelBox{X: s.Box.Min.X, Y: s.Box.Min.Y, Width: s.Box.Dx(), Height: s.Box.Dy()}
		out = append(out, model.OCRWord{
			Text:            s.Text,
			Confidence:      s.Confidence,
			Score:           s.Confidence,
			BBox:            box,
			Position:        percentBox(box, w, h),
			TechnicalType:   s.Kind,
			Font:            model.FontEstimate{Size: float64(max(box.Width, box.Height)), Weight: "normal", Family: "Arial, sans-serif", Style: "normal"},
			DisplayPriority: 3,
			Source:          "shape",
			IsSymbol:        true,
		})
	}
	return out
}

// mergeSymbols adds the symbols whose center lies outside every recognized
// word, then dedups the union so symbols obey the same spacing as words.
func mergeSymbols(words, symbols []model.OCRWord, tolerance float64) []model.OCRWord {
	merged := append([]model.OCRWord(nil), words...)
	for _, s := range symbols {
		cx, cy := center(s.BBox)
		covered := false
		for _, word := range words {
			b := word.BBox
			if cx >= float64(b.X) && cx < float64(b.X+b.Width) && cy >= float64(b.Y) && cy < float64(b.Y+b.Height) {
				covered = true
				break
			}
		}
		if !covered {
			merged = append(merged, s)
		}
	}
	return Dedup(merged, tolerance)
}

// PageWords reads a scanned page with a single pass and keeps the words at
// or above the page confidence floor.
func (p *Processor) PageWords(ctx context.Context, img image.Image) ([]model.OCRWord, error) {
	if !p.Available() {
		return nil, ErrEngineUnavailable
	}
	gray := Gray(img)
	pass := PagePass()
	raw, err := stability.Run(ctx, p.guard, "ocr page", p.cfg.PassTimeout,
		func(ctx context.Context) ([]Word, error) {
			return p.engine.Recognize(ctx, gray, pass)
		})
	if err != nil {
		return nil, err
	}

	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	var out []model.OCRWord
	for _, word := range raw {
		text := strings.TrimSpace(word.Text)
		conf := finite(word.Confidence)
		if text == "" || conf < p.cfg.PageMinConfidence {
			continue
		}
		box := model.PixelBox{X: word.Box.Min.X, Y: word.Box.Min.Y, Width: word.Box.Dx(), Height: word.Box.Dy()}
		kind := Classify(text)
		out = append(out, model.OCRWord{
			Text:          text,
			Confidence:    geom.Round(conf, 1),
			Score:         geom.Round(conf, 1),
			BBox:          box,
			Position:      percentBox(box, w, h),
			TechnicalType: kind,
			Source:        "page",
		})
	}
	sortReading(out)
	return out, nil
}

func percentBox(b model.PixelBox, width, height int) model.PercentBox {
	if width <= 0 || height <= 0 {
		return model.PercentBox{}
	}
	W, H := float64(width), float64(height)
	return model.PercentBox{
		Left:   geom.Round(float64(b.X)/W*100, 3),
		Top:    geom.Round(float64(b.Y)/H*100, 3),
		Width:  geom.Round(float64(b.Width)/W*100, 3),
		Height: geom.Round(float64(b.Height)/H*100, 3),
	}
}

// finite maps NaN and infinities, which tesseract reports for empty boxes,
// to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
