package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// glyphs lays out s one run per character starting at x on baseline y
func glyphs(s string, x, y, size float64, font string) []wrapper.TextRun {
	var runs []wrapper.TextRun
	for _, r := range s {
		w := size * 0.5
		runs = append(runs, wrapper.TextRun{
			Text:     string(r),
			Font:     font,
			FontSize: size,
			Box:      geom.NewBox(x, y-size*0.8, x+w, y+size*0.2),
		})
		x += w
	}
	return runs
}

func TestExtractor_JoinsRunsIntoSpans(t *testing.T) {
	var runs []wrapper.TextRun
	runs = append(runs, glyphs("Hello World", 72, 84, 12, "Helvetica")...)
	runs = append(runs, glyphs("500 mg", 300, 84, 12, "Helvetica")...)
	runs = append(runs, glyphs("Title", 72, 40, 16, "Helvetica-Bold")...)
	runs = append(runs, glyphs("   ", 400, 200, 12, "Helvetica")...)

	spans := NewExtractor(DefaultJoinConfig()).Extract(runs)
	require.Len(t, spans, 3)

	assert.Equal(t, "Title", spans[0].Text)
	assert.Equal(t, "Hello World", spans[1].Text)
	assert.Equal(t, "500 mg", spans[2].Text)
	for i, s := range spans {
		assert.Equal(t, i, s.ID)
	}
	assert.InDelta(t, 72, spans[1].Box.X0, 0.01)
}

func TestExtractor_StyleBreaksSpan(t *testing.T) {
	var runs []wrapper.TextRun
	runs = append(runs, glyphs("Bold", 72, 84, 12, "Helvetica-Bold")...)
	runs = append(runs, glyphs("plain", 72+24, 84, 12, "Helvetica")...)
	spans := NewExtractor(JoinConfig{}).Extract(runs)
	require.Len(t, spans, 2)
}

func TestExtractor_LetterSpacedHeading(t *testing.T) {
	// single characters 1.2em apart still form one span
	var runs []wrapper.TextRun
	x := 72.0
	for _, r := range "ABC" {
		runs = append(runs, wrapper.TextRun{Text: string(r), Font: "F", FontSize: 10, Box: geom.NewBox(x, 90, x+6, 100)})
		x += 6 + 12
	}
	spans := NewExtractor(DefaultJoinConfig()).Extract(runs)
	require.Len(t, spans, 1)
	assert.Equal(t, "A B C", spans[0].Text)
}

func TestGroupRows_RunningAverage(t *testing.T) {
	spans := []Span{
		{Text: "b", Box: geom.NewBox(200, 103, 220, 113)},
		{Text: "a", Box: geom.NewBox(72, 100, 90, 110)},
		{Text: "c", Box: geom.NewBox(72, 130, 90, 140)},
	}
	rows := GroupRows(spans, 8)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0][0].Text)
	assert.Equal(t, "b", rows[0][1].Text)
	assert.Equal(t, "a b\nc", Text(spans, 8))
}

func TestClassifyBlock(t *testing.T) {
	tests := []struct {
		name string
		text string
		size float64
		bold bool
		want string
	}{
		{"bold_short_heading", "Introduction", 12, true, BlockHeading},
		{"large_font_heading", "Overview", 18, false, BlockHeading},
		{"keyword_heading", "Qualitative and quantitative composition", 11, false, BlockHeading},
		{"list_item_number", "1. Dissolve the tablet", 11, false, BlockListItem},
		{"list_item_bullet", "• Store below 25°C", 11, false, BlockListItem},
		{"toc_dots", "Section 2 ........ 14", 11, false, BlockTOCItem},
		{"footnote_small", "See reference text", 7, false, BlockFootnote},
		{"paragraph", "Hello World", 12, false, BlockParagraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyBlock(tt.text, tt.size, tt.bold))
		})
	}
}

func TestBlockConfidence(t *testing.T) {
	assert.InDelta(t, 0.1*0.3+0.11*0.3+0.4, BlockConfidence(1, 11, 1), 0.001)
	assert.InDelta(t, 1.0, BlockConfidence(20, 500, 1), 0.001)
	assert.InDelta(t, 0.8, BlockConfidence(20, 500, 3), 0.001)
}

func TestBuildBlocks(t *testing.T) {
	spans := []Span{
		{ID: 0, Text: "Heading", Size: 16, Flags: wrapper.FlagBold, Box: geom.NewBox(72, 50, 200, 66)},
		{ID: 1, Text: "first line", Size: 11, Box: geom.NewBox(72, 80, 200, 91)},
		{ID: 2, Text: "second line", Size: 11, Box: geom.NewBox(72, 93, 200, 104)},
		{ID: 3, Text: "in table", Size: 11, Box: geom.NewBox(72, 300, 120, 311)},
	}
	blocks := BuildBlocks(spans, []geom.Box{geom.NewBox(60, 290, 400, 400)}, 3)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Heading", blocks[0].Text())
	assert.Equal(t, "first line\nsecond line", blocks[1].Text())

	page := geom.Size{Width: 595, Height: 842}
	tb := ToModel(blocks, 1, page)
	require.Len(t, tb, 2)
	assert.Equal(t, BlockHeading, tb[0].BlockType)
	assert.Equal(t, BlockParagraph, tb[1].BlockType)
	assert.InDelta(t, 72/595.0*100, tb[1].Position.XPercent, 0.01)
	assert.Equal(t, 2, tb[1].SpanCount)
}

func TestRepairHyphenation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"rejoins_word", "the pharma-\nceutical form", "the pharmaceutical form"},
		{"keeps_vowelless", "BCD-\nFGH", "BCD-FGH"},
		{"too_long_kept", "aaaaaaaaaaaaaaaaaaaa-\nbbbbbbbbbbbbbbbbbbbb", "aaaaaaaaaaaaaaaaaaaa-bbbbbbbbbbbbbbbbbbbb"},
		{"no_break", "well-known", "well-known"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairHyphenation(tt.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	in := "First  para-\ngraph wraps\nhere.\n\n\n  Second\tparagraph.  "
	assert.Equal(t, "First paragraph wraps here.\n\nSecond paragraph.", Normalize(in))
	assert.Equal(t, "", Normalize(" \n \n"))
}

func TestDedupFooters(t *testing.T) {
	page := geom.Size{Width: 595, Height: 842}
	spans := []Span{
		{ID: 0, Text: "Body", Box: geom.NewBox(72, 100, 200, 112)},
		{ID: 1, Text: "Page 1", Box: geom.NewBox(280, 800, 320, 810)},
		{ID: 2, Text: "Page 1", Box: geom.NewBox(280, 800, 320, 810)},
		{ID: 3, Text: "Confidential", Box: geom.NewBox(281, 800.5, 321, 810.5)},
		{ID: 4, Text: "Rev 2", Box: geom.NewBox(500, 800, 540, 810)},
	}
	out := DedupFooters(spans, page)
	var ids []int
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int{0, 1, 4}, ids)
}
