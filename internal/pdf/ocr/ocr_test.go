package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

// fakeEngine returns canned words per pass, scaled to the variant size
type fakeEngine struct {
	base  int
	words map[string][]Word
	err   error
	block bool
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image, pass Pass) ([]Word, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	scale := 1
	if f.base > 0 {
		scale = max(img.Bounds().Dx()/f.base, 1)
	}
	var out []Word
	for _, w := range f.words[pass.Name] {
		w.Box = image.Rect(w.Box.Min.X*scale, w.Box.Min.Y*scale, w.Box.Max.X*scale, w.Box.Max.Y*scale)
		out = append(out, w)
	}
	return out, nil
}

func blank(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

func fill(g *image.Gray, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: 0})
		}
	}
}

func outline(g *image.Gray, r image.Rectangle) {
	fill(g, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1))
	fill(g, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y))
	fill(g, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y))
	fill(g, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y))
}

func singlePass(name string) Config {
	cfg := DefaultConfig()
	cfg.Passes = []Pass{{Name: name, Mode: ModeSingleBlock}}
	cfg.Enhance = false
	cfg.Symbols = false
	return cfg
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Ø12.5", TypeDiameter},
		{"12.5", TypeDimension},
		{"R4", TypeRadius},
		{"45°", TypeAngle},
		{"A-A", TypeSectionLine},
		{"Detail B", TypeDetailReference},
		{"C'", TypeAnnotation},
		{"25cm3", TypeVolumeUnit},
		{"10±0.1", TypeTolerance},
		{"SECTION", TypeLabel},
		{"3,5", TypeDecimalNumber},
		{"1/4in", TypeFraction},
		{"steel plate finish", TypeDescription},
		{"word", TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, 20.0, Threshold(TypeDimension, Pass{}))
	assert.Equal(t, 10.0, Threshold(TypeDimension, Pass{Whitelist: "0123456789"}))
	assert.Equal(t, 10.0, Threshold(TypeDiameter, Pass{Whitelist: "0123456789"}))
	assert.Equal(t, 30.0, Threshold("unknown", Pass{}))
}

func TestScore(t *testing.T) {
	assert.Equal(t, 90.0, Score("12.5", 60, TypeDimension))
	assert.Equal(t, 70.0, Score("I2.5", 70, TypeLabel))
	assert.Equal(t, 40.0, Score("x", 60, TypeText))
	assert.Equal(t, 70.0, Score("A", 60, TypeAnnotation))
}

func TestEditableTypeAndValidation(t *testing.T) {
	tests := []struct {
		text    string
		want    string
		pattern string
	}{
		{"42.5", model.EditableNumber, `^\d+\.?\d*$`},
		{"QC-AB12-004", model.EditableReferenceID, `^[A-Z0-9\-/]+$`},
		{"12/03/2024", model.EditableDate, `^\d{1,2}[/.-]\d{1,2}[/.-]\d{4}$`},
		{"50 mg", model.EditableQuantity, `^\d+\.?\d*\s*(mg|ml|g|%|µg|kg|L)?$`},
		{"TITLE", model.EditableHeading, `.*`},
		{"note", model.EditableText, `.*`},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			kind := EditableType(tt.text)
			assert.Equal(t, tt.want, kind)
			assert.Equal(t, tt.pattern, model.ValidationFor(kind).Pattern)
		})
	}
}

func TestDedupKeepsHigherScore(t *testing.T) {
	words := []model.OCRWord{
		{Text: "I2.5", Confidence: 70, Score: 70, BBox: model.PixelBox{X: 10, Y: 10, Width: 30, Height: 12}},
		{Text: "12.5", Confidence: 60, Score: 90, BBox: model.PixelBox{X: 11, Y: 10, Width: 30, Height: 12}},
		{Text: "far", Confidence: 80, Score: 80, BBox: model.PixelBox{X: 100, Y: 10, Width: 30, Height: 12}},
	}
	got := Dedup(words, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "12.5", got[0].Text)
	assert.Equal(t, "far", got[1].Text)
}

func TestDedupSpacing(t *testing.T) {
	var words []model.OCRWord
	for i := 0; i < 20; i++ {
		words = append(words, model.OCRWord{
			Text:  "w",
			Score: float64(i),
			BBox:  model.PixelBox{X: i * 2, Y: 0, Width: 4, Height: 4},
		})
	}
	got := Dedup(words, 5)
	require.NotEmpty(t, got)
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			ax, ay := center(got[i].BBox)
			bx, by := center(got[j].BBox)
			assert.Greater(t, (ax-bx)*(ax-bx)+(ay-by)*(ay-by), 25.0)
		}
	}
	assert.Nil(t, Dedup(nil, 5))
}

func TestVariants(t *testing.T) {
	g := blank(40, 30)
	fill(g, image.Rect(5, 5, 20, 15))
	vs := Variants(g)
	require.Len(t, vs, 5)
	for _, v := range vs {
		if v.Name == "upscaled" {
			assert.Equal(t, 2.0, v.Scale)
			assert.Equal(t, 80, v.Image.Rect.Dx())
			assert.Equal(t, 60, v.Image.Rect.Dy())
			continue
		}
		assert.Equal(t, 1.0, v.Scale, v.Name)
		assert.Equal(t, g.Rect, v.Image.Rect, v.Name)
	}
}

func TestDetectSymbolsDegree(t *testing.T) {
	g := blank(60, 60)
	fill(g, image.Rect(20, 20, 28, 28))
	outline(g, image.Rect(32, 20, 39, 27))

	syms := DetectSymbols(g)
	require.Len(t, syms, 1)
	assert.Equal(t, "°", syms[0].Text)
	assert.Equal(t, TypeDegreeSymbol, syms[0].Kind)
	assert.Equal(t, image.Rect(32, 20, 39, 27), syms[0].Box)
}

func TestDetectSymbolsLoneRing(t *testing.T) {
	g := blank(60, 60)
	outline(g, image.Rect(32, 20, 39, 27))
	assert.Empty(t, DetectSymbols(g))
}

// circle inks the pixels within half a pixel band of radius r around
// cx, cy; with slash it adds a rising diagonal stroke reaching reach
// pixels from the center.
func circle(g *image.Gray, cx, cy int, r float64, filled, slash bool) {
	reach := r * 1.375
	for y := cy - int(reach) - 1; y <= cy+int(reach)+1; y++ {
		for x := cx - int(reach) - 1; x <= cx+int(reach)+1; x++ {
			d := math.Hypot(float64(x-cx), float64(y-cy))
			onRing := math.Abs(d-r) <= 0.8 || (filled && d <= r)
			onSlash := slash && abs((x-cx)+(y-cy)) <= 1 && d <= reach
			if onRing || onSlash {
				g.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
}

func TestDetectSymbolsDiameter(t *testing.T) {
	g := blank(80, 80)
	circle(g, 30, 30, 8, false, true)

	syms := DetectSymbols(g)
	require.Len(t, syms, 1)
	assert.Equal(t, "Ø", syms[0].Text)
	assert.Equal(t, TypeDiameterSymbol, syms[0].Kind)
	assert.Equal(t, 80.0, syms[0].Confidence)
}

func TestDetectSymbolsIgnoresSolidShapes(t *testing.T) {
	tests := []struct {
		name string
		draw func(g *image.Gray)
	}{
		{"filled square", func(g *image.Gray) { fill(g, image.Rect(20, 20, 40, 40)) }},
		{"filled disk", func(g *image.Gray) { circle(g, 30, 30, 9, true, false) }},
		{"filled disk with slash", func(g *image.Gray) { circle(g, 30, 30, 9, true, true) }},
		{"ring without slash", func(g *image.Gray) { circle(g, 30, 30, 8, false, false) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := blank(80, 80)
			tt.draw(g)
			for _, s := range DetectSymbols(g) {
				assert.NotEqual(t, TypeDiameterSymbol, s.Kind)
			}
		})
	}
}

func TestMergeSymbols(t *testing.T) {
	symbol := func(x, y int, score float64) model.OCRWord {
		return model.OCRWord{
			Text:       "Ø",
			Confidence: score,
			Score:      score,
			BBox:       model.PixelBox{X: x, Y: y, Width: 16, Height: 16},
			IsSymbol:   true,
		}
	}
	words := []model.OCRWord{
		{Text: "M8", Confidence: 90, Score: 105, BBox: model.PixelBox{X: 100, Y: 30, Width: 30, Height: 14}},
	}
	symbols := []model.OCRWord{
		symbol(10, 10, 75),
		symbol(12, 11, 80),
		symbol(108, 29, 80), // center inside the M8 box
		symbol(10, 60, 70),
	}

	got := mergeSymbols(words, symbols, 5)
	require.Len(t, got, 3)
	assert.Equal(t, 12, got[0].BBox.X)
	assert.Equal(t, 80.0, got[0].Score)
	assert.Equal(t, "M8", got[1].Text)
	assert.Equal(t, 60, got[2].BBox.Y)

	for i := range got {
		for j := i + 1; j < len(got); j++ {
			xi, yi := center(got[i].BBox)
			xj, yj := center(got[j].BBox)
			assert.Greater(t, math.Hypot(xi-xj, yi-yj), 5.0)
		}
	}
}

func TestOverlayWithoutEngine(t *testing.T) {
	p := NewProcessor(nil, DefaultConfig(), nil)
	o := p.Overlay(context.Background(), blank(50, 50))
	assert.False(t, o.Available)
	assert.NotNil(t, o.Words)
	assert.Empty(t, o.Words)
	assert.NotNil(t, o.EditableElements)
	assert.Equal(t, "poor", o.Quality.Overall)

	_, err := p.PageWords(context.Background(), blank(10, 10))
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestOverlayPrefersBetterReading(t *testing.T) {
	engine := &fakeEngine{words: map[string][]Word{
		"a": {{Text: "I2.5", Confidence: 70, Box: image.Rect(10, 10, 40, 22)}},
		"b": {{Text: "12.5", Confidence: 60, Box: image.Rect(10, 10, 40, 22)}},
	}}
	cfg := DefaultConfig()
	cfg.Passes = []Pass{{Name: "a", Mode: ModeSingleBlock}, {Name: "b", Mode: ModeSingleWord}}
	cfg.Enhance = false
	cfg.Symbols = false

	o := NewProcessor(engine, cfg, nil).Overlay(context.Background(), blank(200, 100))
	require.True(t, o.Available)
	assert.Equal(t, 2, o.Passes)
	require.Len(t, o.Words, 1)
	w := o.Words[0]
	assert.Equal(t, "12.5", w.Text)
	assert.Equal(t, TypeDimension, w.TechnicalType)
	assert.Equal(t, "original/b", w.Source)
	assert.Equal(t, model.PercentBox{Left: 5, Top: 10, Width: 15, Height: 12}, w.Position)

	require.Len(t, o.EditableElements, 1)
	e := o.EditableElements[0]
	assert.Equal(t, model.EditableNumber, e.Type)
	assert.Contains(t, e.Style, "border:1px dashed #ffc107;")
	assert.True(t, o.EditingCapabilities.CanEditNumbers)
}

func TestOverlayUpscaledVariantMapsBack(t *testing.T) {
	engine := &fakeEngine{base: 200, words: map[string][]Word{
		"general": {{Text: "Ø20", Confidence: 80, Box: image.Rect(50, 40, 80, 55)}},
	}}
	cfg := singlePass("general")
	cfg.Enhance = true

	o := NewProcessor(engine, cfg, nil).Overlay(context.Background(), blank(200, 100))
	require.Len(t, o.Words, 1)
	assert.Equal(t, model.PixelBox{X: 50, Y: 40, Width: 30, Height: 15}, o.Words[0].BBox)
	assert.Equal(t, 5, o.Passes)
}

func TestOverlayFiltersLowConfidenceAndTinyBoxes(t *testing.T) {
	engine := &fakeEngine{words: map[string][]Word{
		"general": {
			{Text: "paragraph of text", Confidence: 45, Box: image.Rect(0, 0, 80, 12)},
			{Text: "word", Confidence: 90, Box: image.Rect(100, 0, 104, 12)},
			{Text: "  ", Confidence: 99, Box: image.Rect(0, 50, 40, 62)},
			{Text: "kept", Confidence: 90, Box: image.Rect(100, 50, 130, 62)},
		},
	}}
	o := NewProcessor(engine, singlePass("general"), nil).Overlay(context.Background(), blank(200, 100))
	require.Len(t, o.Words, 1)
	assert.Equal(t, "kept", o.Words[0].Text)
}

func TestOverlayMergesAdjacentWords(t *testing.T) {
	engine := &fakeEngine{words: map[string][]Word{
		"general": {
			{Text: "stainless", Confidence: 80, Box: image.Rect(10, 10, 60, 22)},
			{Text: "steel", Confidence: 60, Box: image.Rect(66, 11, 96, 23)},
			{Text: "elsewhere", Confidence: 90, Box: image.Rect(10, 60, 60, 72)},
		},
	}}
	o := NewProcessor(engine, singlePass("general"), nil).Overlay(context.Background(), blank(200, 100))
	require.Len(t, o.Words, 3)
	require.Len(t, o.EditableElements, 2)
	assert.Equal(t, "stainless steel", o.EditableElements[0].Text)
	assert.Equal(t, 2, o.EditableElements[0].WordCount)
	assert.Equal(t, 70.0, o.EditableElements[0].Confidence)
	assert.Equal(t, "elsewhere", o.EditableElements[1].Text)

	cfg := singlePass("general")
	cfg.MergeAdjacent = false
	o = NewProcessor(engine, cfg, nil).Overlay(context.Background(), blank(200, 100))
	assert.Len(t, o.EditableElements, 3)
}

func TestOverlayAddsUncoveredSymbols(t *testing.T) {
	img := blank(100, 100)
	fill(img, image.Rect(20, 20, 28, 28))
	outline(img, image.Rect(32, 20, 39, 27))

	engine := &fakeEngine{}
	cfg := singlePass("general")
	cfg.Symbols = true
	o := NewProcessor(engine, cfg, nil).Overlay(context.Background(), img)
	require.Len(t, o.Words, 1)
	assert.True(t, o.Words[0].IsSymbol)
	assert.Equal(t, "°", o.Words[0].Text)
	assert.True(t, o.EditingCapabilities.HasSymbols)

	engine.words = map[string][]Word{
		"general": {{Text: "45°", Confidence: 90, Box: image.Rect(18, 18, 42, 30)}},
	}
	o = NewProcessor(engine, cfg, nil).Overlay(context.Background(), img)
	require.Len(t, o.Words, 1)
	assert.Equal(t, "45°", o.Words[0].Text)
}

func TestOverlayDegradesOnEngineFailure(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{"error", &fakeEngine{err: errors.New("tesseract crashed")}},
		{"timeout", &fakeEngine{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := singlePass("general")
			cfg.PassTimeout = 50 * time.Millisecond
			o := NewProcessor(tt.engine, cfg, nil).Overlay(context.Background(), blank(50, 50))
			assert.True(t, o.Available)
			assert.Equal(t, 0, o.Passes)
			assert.NotNil(t, o.Words)
			assert.Empty(t, o.Words)
			assert.Equal(t, "poor", o.Quality.Overall)
		})
	}
}

func TestPageWords(t *testing.T) {
	engine := &fakeEngine{words: map[string][]Word{
		"page": {
			{Text: "Batch", Confidence: 91, Box: image.Rect(10, 40, 60, 52)},
			{Text: "noise", Confidence: 30, Box: image.Rect(70, 40, 90, 52)},
			{Text: "Title", Confidence: 88, Box: image.Rect(10, 10, 60, 24)},
		},
	}}
	words, err := NewProcessor(engine, DefaultConfig(), nil).PageWords(context.Background(), blank(200, 100))
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "Title", words[0].Text)
	assert.Equal(t, "Batch", words[1].Text)
}

func TestAssess(t *testing.T) {
	words := []model.OCRWord{
		{Confidence: 90, TechnicalType: TypeDimension},
		{Confidence: 80, TechnicalType: TypeDiameter},
		{Confidence: 50, TechnicalType: TypeText},
	}
	q := Assess(words)
	assert.Equal(t, "excellent", q.Overall)
	assert.Equal(t, 73.3, q.AverageConfidence)
	assert.Equal(t, 66.7, q.TechnicalCoverage)
	assert.Equal(t, map[string]int{"high": 2, "medium": 1, "low": 0}, q.Distribution)
	assert.Equal(t, 2, q.TechnicalElements)
	assert.Equal(t, 3, q.TotalWords)

	q = Assess([]model.OCRWord{{Confidence: 35, TechnicalType: TypeText}})
	assert.Equal(t, "poor", q.Overall)
	assert.True(t, Capabilities(nil, q).NeedsReview)
}
