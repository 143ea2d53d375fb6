package consensus

import (
	"math"
	"sort"
	"strings"

	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
)

// maxLevel is the deepest heading level assigned
const maxLevel = 6

// Section is a heading with the blocks and subsections under it. Content
// before the first heading lands in a level 0 section without a title.
type Section struct {
	Title    string
	Level    int
	Page     int
	Blocks   []model.TextBlock
	Children []*Section
}

// AssignLevels numbers heading blocks by font size: the largest heading
// size is level 1, the next distinct size level 2, down to level 6. Sizes
// are compared at half-point resolution.
func AssignLevels(blocks []model.TextBlock) {
	var sizes []float64
	seen := map[float64]bool{}
	for _, b := range blocks {
		if b.BlockType != text.BlockHeading {
			continue
		}
		s := halfPoint(b.FontSize)
		if !seen[s] {
			seen[s] = true
			sizes = append(sizes, s)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))

	rank := make(map[float64]int, len(sizes))
	for i, s := range sizes {
		rank[s] = min(i+1, maxLevel)
	}
	for i := range blocks {
		if blocks[i].BlockType == text.BlockHeading {
			blocks[i].Level = rank[halfPoint(blocks[i].FontSize)]
		} else {
			blocks[i].Level = 0
		}
	}
}

func halfPoint(v float64) float64 {
	return math.Round(v*2) / 2
}

// Outline nests blocks under their headings. Blocks must carry levels from
// AssignLevels and be in reading order.
func Outline(blocks []model.TextBlock) []*Section {
	var roots []*Section
	var stack []*Section

	for _, b := range blocks {
		if b.BlockType == text.BlockHeading && b.Level > 0 {
			sec := &Section{Title: strings.TrimSpace(b.Text), Level: b.Level, Page: b.Page}
			for len(stack) > 0 && stack[len(stack)-1].Level >= b.Level {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				roots = append(roots, sec)
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, sec)
			}
			stack = append(stack, sec)
			continue
		}

		if len(stack) == 0 {
			if len(roots) == 0 || roots[len(roots)-1].Level != 0 {
				roots = append(roots, &Section{Page: b.Page})
			}
			roots[len(roots)-1].Blocks = append(roots[len(roots)-1].Blocks, b)
			continue
		}
		top := stack[len(stack)-1]
		top.Blocks = append(top.Blocks, b)
	}
	return roots
}

// SortBlocks orders blocks by page, then top to bottom, then left to right
func SortBlocks(blocks []model.TextBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Box.Y0 != b.Box.Y0 {
			return a.Box.Y0 < b.Box.Y0
		}
		return a.Box.X0 < b.Box.X0
	})
}

// NormalizedText joins blocks in reading order, one paragraph each, with
// broken and hard-wrapped words repaired.
func NormalizedText(blocks []model.TextBlock) string {
	sorted := make([]model.TextBlock, len(blocks))
	copy(sorted, blocks)
	SortBlocks(sorted)

	parts := make([]string, 0, len(sorted))
	for _, b := range sorted {
		parts = append(parts, b.Text)
	}
	return text.Normalize(strings.Join(parts, "\n\n"))
}
