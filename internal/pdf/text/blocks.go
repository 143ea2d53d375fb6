package text

import (
	"math"
	"regexp"
	"strings"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
)

// Block types.
const (
	BlockHeading   = "heading"
	BlockListItem  = "list_item"
	BlockTOCItem   = "toc_item"
	BlockParagraph = "paragraph"
	BlockFootnote  = "footnote"
)

var (
	listItemRe     = regexp.MustCompile(`^\s*(\d+[.)]|[-*•])\s+`)
	headingKeyword = regexp.MustCompile(`(?i)\b(description|composition|container)\b`)
	endsWithDigit  = regexp.MustCompile(`\d\s*$`)
)

// Block is a run of consecutive lines sharing a font size
type Block struct {
	Spans []Span
	Lines [][]Span
	Box   geom.Box
}

// Text joins the block lines with newlines
func (b Block) Text() string {
	lines := make([]string, 0, len(b.Lines))
	for _, line := range b.Lines {
		parts := make([]string, 0, len(line))
		for _, s := range line {
			parts = append(parts, s.Text)
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}

// dominant returns the most common font and the mean size, plus whether
// every span is bold.
func (b Block) dominant() (font string, size float64, bold bool, fonts int) {
	counts := map[string]int{}
	bold = true
	for _, s := range b.Spans {
		counts[s.Font] += s.RuneCount()
		size += s.Size
		bold = bold && s.Bold()
	}
	best := -1
	for f, n := range counts {
		if n > best || (n == best && f < font) {
			font, best = f, n
		}
	}
	if len(b.Spans) > 0 {
		size /= float64(len(b.Spans))
	}
	return font, size, bold, len(counts)
}

// BuildBlocks groups the spans that lie outside every excluded zone into
// blocks. A new block starts when the vertical gap exceeds 0.8 of the font
// size or the size changes by more than 2pt.
func BuildBlocks(spans []Span, excluded []geom.Box, rowTolerance float64) []Block {
	free := make([]Span, 0, len(spans))
	for _, s := range spans {
		if !insideAny(s.Box, excluded) {
			free = append(free, s)
		}
	}

	rows := GroupRows(free, rowTolerance)
	var blocks []Block
	var cur *Block
	var prevBottom, prevSize float64

	for _, row := range rows {
		box := row[0].Box
		size := 0.0
		for _, s := range row {
			box = box.Union(s.Box)
			size = math.Max(size, s.Size)
		}

		if cur != nil {
			gap := box.Y0 - prevBottom
			if gap > prevSize*0.8 || math.Abs(size-prevSize) > 2 {
				blocks = append(blocks, *cur)
				cur = nil
			}
		}
		if cur == nil {
			cur = &Block{Box: box}
		}
		cur.Lines = append(cur.Lines, row)
		cur.Spans = append(cur.Spans, row...)
		cur.Box = cur.Box.Union(box)
		prevBottom, prevSize = box.Y1, size
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}
	return blocks
}

// insideAny reports whether the center of box falls in one of the zones
func insideAny(box geom.Box, zones []geom.Box) bool {
	c := box.Center()
	for _, z := range zones {
		if c.X >= z.X0 && c.X <= z.X1 && c.Y >= z.Y0 && c.Y <= z.Y1 {
			return true
		}
	}
	return false
}

// ClassifyBlock labels a block as heading, list item, TOC entry, footnote
// or paragraph.
func ClassifyBlock(text string, size float64, bold bool) string {
	n := len([]rune(text))
	switch {
	case bold && n < 100, size > 14:
		return BlockHeading
	case n < 100 && headingKeyword.MatchString(text):
		return BlockHeading
	case size > 0 && size < 9, strings.HasPrefix(text, "1 ") && n > 50:
		return BlockFootnote
	case listItemRe.MatchString(text):
		return BlockListItem
	case strings.Contains(text, "...") || (n < 120 && endsWithDigit.MatchString(text) && strings.Count(text, " ") > 0):
		return BlockTOCItem
	default:
		return BlockParagraph
	}
}

// BlockConfidence rates how trustworthy a block's grouping is from its
// span count, length and font uniformity.
func BlockConfidence(spanCount, length, fonts int) float64 {
	c := math.Min(float64(spanCount)/10, 1)*0.3 + math.Min(float64(length)/100, 1)*0.3
	if fonts <= 1 {
		c += 0.4
	} else {
		c += 0.2
	}
	return geom.Round(c, 3)
}

// ToModel converts blocks into serialized text blocks for a page
func ToModel(blocks []Block, page int, size geom.Size) []model.TextBlock {
	out := make([]model.TextBlock, 0, len(blocks))
	for i, b := range blocks {
		txt := b.Text()
		font, fontSize, bold, fonts := b.dominant()
		box := b.Box.Clamp(size)
		out = append(out, model.TextBlock{
			ID:         model.StableID(page, "text_block", i, box),
			Page:       page,
			Index:      i,
			Text:       txt,
			BlockType:  ClassifyBlock(txt, fontSize, bold),
			FontSize:   geom.Round(fontSize, 2),
			FontFamily: font,
			Bold:       bold,
			SpanCount:  len(b.Spans),
			Confidence: BlockConfidence(len(b.Spans), len([]rune(txt)), fonts),
			Position:   box.Position(size),
			Box:        box,
		})
	}
	return out
}
