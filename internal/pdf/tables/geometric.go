package tables

import (
	"math"
	"sort"
	"strings"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
)

const (
	geoRowTolerance    = 3.0
	geoColumnTolerance = 5.0
	geoMinAligned      = 0.6
	geoMinFilled       = 0.3
)

type geometricTable struct {
	Found
	ids []int
}

// Clustered runs geometric clustering alone over spans, ignoring any
// ruling. The consensus orchestrator uses it as an independent vote.
func (d *Detector) Clustered(spans []text.Span) []Found {
	var out []Found
	for _, g := range d.geometric(spans) {
		out = append(out, g.Found)
	}
	return out
}

// geometric clusters unruled text into a table when at least two rows line
// up with the column starts of the first multi-span row. Tables found here
// are tagged geometric_analysis and never claim borders.
func (d *Detector) geometric(spans []text.Span) []geometricTable {
	if len(spans) < 4 {
		return nil
	}

	sorted := make([]text.Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.Y0 != sorted[j].Box.Y0 {
			return sorted[i].Box.Y0 < sorted[j].Box.Y0
		}
		return sorted[i].Box.X0 < sorted[j].Box.X0
	})

	// rows are anchored on their first span's y0
	var rows [][]text.Span
	var cur []text.Span
	anchor := 0.0
	flush := func() {
		if len(cur) >= 2 {
			sort.SliceStable(cur, func(i, j int) bool { return cur[i].Box.X0 < cur[j].Box.X0 })
			rows = append(rows, cur)
		}
	}
	for _, s := range sorted {
		if len(cur) == 0 || math.Abs(s.Box.Y0-anchor) <= geoRowTolerance {
			if len(cur) == 0 {
				anchor = s.Box.Y0
			}
			cur = append(cur, s)
			continue
		}
		flush()
		cur = []text.Span{s}
		anchor = s.Box.Y0
	}
	flush()

	if len(rows) < 2 {
		return nil
	}

	columns := make([]float64, len(rows[0]))
	for i, s := range rows[0] {
		columns[i] = s.Box.X0
	}
	grid := [][]*text.Span{spanPtrs(rows[0])}
	for _, row := range rows[1:] {
		aligned := make([]*text.Span, len(columns))
		hits := 0
		for c, x := range columns {
			best := math.Inf(1)
			for i := range row {
				dist := math.Abs(row[i].Box.X0 - x)
				if dist < best && dist <= geoColumnTolerance {
					best = dist
					aligned[c] = &row[i]
				}
			}
			if aligned[c] != nil {
				hits++
			}
		}
		if float64(hits) >= float64(len(columns))*geoMinAligned {
			grid = append(grid, aligned)
		}
	}
	if len(grid) < 2 || len(columns) < 2 {
		return nil
	}

	data := make([][]string, len(grid))
	var ids []int
	var members []model.CellSpan
	var box geom.Box
	first := true
	for r, row := range grid {
		data[r] = make([]string, len(row))
		for c, s := range row {
			if s == nil {
				continue
			}
			data[r][c] = s.Text
			ids = append(ids, s.ID)
			members = append(members, model.CellSpan{
				Text:     s.Text,
				Box:      s.Box,
				FontSize: s.Size,
				Font:     s.Font,
				Bold:     s.Bold(),
			})
			if first {
				box, first = s.Box, false
			} else {
				box = box.Union(s.Box)
			}
		}
	}
	if !validStructure(data) {
		return nil
	}
	data = Clean(data)

	confidence := float64(len(grid)) / float64(len(rows))
	regularity := "irregular"
	if confidence > 0.8 {
		regularity = "regular"
	}
	table := &model.Table{
		Data:       data,
		Method:     model.MethodGeometric,
		Regularity: regularity,
		Spans:      members,
	}
	table.Normalize()
	Analyze(table)

	return []geometricTable{{
		Found: Found{Table: table, Box: box, Confidence: geom.Round(confidence, 3)},
		ids:   ids,
	}}
}

func spanPtrs(row []text.Span) []*text.Span {
	out := make([]*text.Span, len(row))
	for i := range row {
		out[i] = &row[i]
	}
	return out
}

// validStructure requires two rows, at most two distinct row lengths and
// at least 30% filled cells.
func validStructure(data [][]string) bool {
	if len(data) < 2 {
		return false
	}
	lengths := make(map[int]struct{})
	total, filled := 0, 0
	for _, row := range data {
		lengths[len(row)] = struct{}{}
		total += len(row)
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				filled++
			}
		}
	}
	if len(lengths) > 2 || total == 0 {
		return false
	}
	return float64(filled)/float64(total) >= geoMinFilled
}
