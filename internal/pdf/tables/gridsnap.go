package tables

import (
	"math"
	"sort"
	"strings"

	"github.com/tidwall/rtree"
	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
	"github.com/a3tai/faithful-pdf/internal/pdf/vector"
)

// snapConfidence is the confidence of a table read off real ruling
const snapConfidence = 0.95

// Found is a detected table with its page box
type Found struct {
	Table      *model.Table
	Box        geom.Box
	Confidence float64
}

// Result is the outcome of table detection on one page
type Result struct {
	Tables []Found
	// Consumed holds the IDs of spans placed into a table.
	Consumed map[int]bool
	// GridBoxes are the zones whose ruling was used, so the renderer can
	// skip repainting rectangles inside them.
	GridBoxes []geom.Box
}

// Detect finds zones, snaps every zone that has supporting ruling and, when
// enabled, clusters the remaining spans geometrically. Zones without ruling
// produce nothing and their spans stay free text.
func (d *Detector) Detect(spans []text.Span, prims vector.Primitives) Result {
	res := Result{Consumed: make(map[int]bool)}

	for _, zone := range d.Zones(spans) {
		if !d.HasGrid(zone.Box, prims) {
			d.logger.Debug("zone has no ruling, leaving spans as text",
				zap.Int("rows", zone.Rows),
				zap.Int("spans", len(zone.Spans)))
			continue
		}
		table, consumed, ok := d.Snap(zone, prims)
		if !ok {
			continue
		}
		for id := range consumed {
			res.Consumed[id] = true
		}
		res.Tables = append(res.Tables, Found{Table: table, Box: zone.Box, Confidence: snapConfidence})
		res.GridBoxes = append(res.GridBoxes, zone.Box)
	}

	if d.cfg.Geometric {
		var free []text.Span
		for _, s := range spans {
			if !res.Consumed[s.ID] {
				free = append(free, s)
			}
		}
		for _, f := range d.geometric(free) {
			for _, id := range f.ids {
				res.Consumed[id] = true
			}
			res.Tables = append(res.Tables, f.Found)
		}
	}
	return res
}

// HasGrid reports whether ruling supports a table in box: enough lines
// crossing it in both directions, or one rectangle framing most of it.
func (d *Detector) HasGrid(box geom.Box, prims vector.Primitives) bool {
	for _, r := range prims.Rects {
		wCov := math.Max(0, math.Min(r.X1, box.X1)-math.Max(r.X0, box.X0)) / math.Max(1, box.Width())
		hCov := math.Max(0, math.Min(r.Y1, box.Y1)-math.Max(r.Y0, box.Y0)) / math.Max(1, box.Height())
		if wCov > d.cfg.RectWidthCoverage && hCov > d.cfg.RectHeightCoverage {
			return true
		}
	}
	h, v := d.linesIn(box, prims)
	return len(h) >= d.cfg.MinLines && len(v) >= d.cfg.MinLines
}

func (d *Detector) linesIn(box geom.Box, prims vector.Primitives) ([]vector.HLine, []vector.VLine) {
	tol := d.cfg.LineTolerance
	var hs []vector.HLine
	for _, h := range prims.H {
		overlap := math.Min(h.X1, box.X1) - math.Max(h.X0, box.X0)
		if h.Y >= box.Y0-tol && h.Y <= box.Y1+tol && overlap > d.cfg.MinOverlap {
			hs = append(hs, h)
		}
	}
	var vs []vector.VLine
	for _, v := range prims.V {
		overlap := math.Min(v.Y1, box.Y1) - math.Max(v.Y0, box.Y0)
		if v.X >= box.X0-tol && v.X <= box.X1+tol && overlap > d.cfg.MinOverlap {
			vs = append(vs, v)
		}
	}
	return hs, vs
}

// Edges computes the column and row edges of the grid inside box from the
// zone bounds and the lines crossing it. Either slice is nil when the grid
// has fewer than two edges in that direction.
func (d *Detector) Edges(box geom.Box, prims vector.Primitives) (cols, rows []float64) {
	hs, vs := d.linesIn(box, prims)
	xs := []float64{box.X0, box.X1}
	for _, v := range vs {
		xs = append(xs, v.X)
	}
	ys := []float64{box.Y0, box.Y1}
	for _, h := range hs {
		ys = append(ys, h.Y)
	}
	cols = dedupEdges(xs, d.cfg.EdgeEpsilon)
	rows = dedupEdges(ys, d.cfg.EdgeEpsilon)
	if len(cols) < 2 || len(rows) < 2 {
		return nil, nil
	}
	return cols, rows
}

func dedupEdges(vals []float64, eps float64) []float64 {
	rounded := make([]float64, len(vals))
	for i, v := range vals {
		rounded[i] = geom.Round(v, 1)
	}
	sort.Float64s(rounded)
	var out []float64
	for _, v := range rounded {
		if len(out) == 0 || math.Abs(v-out[len(out)-1]) > eps {
			out = append(out, v)
		}
	}
	return out
}

// Snap assigns every zone span to the grid cell containing its center.
// Cells are visited row-major and a span is placed at most once. The table
// is fully built or not returned at all.
func (d *Detector) Snap(zone Zone, prims vector.Primitives) (*model.Table, map[int]bool, bool) {
	colEdges, rowEdges := d.Edges(zone.Box, prims)
	if colEdges == nil {
		return nil, nil, false
	}

	var centers rtree.RTreeG[int]
	for i, s := range zone.Spans {
		c := s.Center()
		pt := [2]float64{c.X, c.Y}
		centers.Insert(pt, pt, i)
	}

	consumed := make(map[int]bool)
	nRows, nCols := len(rowEdges)-1, len(colEdges)-1
	data := make([][]string, nRows)
	cells := make([][]model.GridCell, nRows)
	for r := 0; r < nRows; r++ {
		data[r] = make([]string, nCols)
		cells[r] = make([]model.GridCell, nCols)
		for c := 0; c < nCols; c++ {
			cell := geom.Box{X0: colEdges[c], Y0: rowEdges[r], X1: colEdges[c+1], Y1: rowEdges[r+1]}

			var hits []int
			centers.Search([2]float64{cell.X0, cell.Y0}, [2]float64{cell.X1, cell.Y1},
				func(_, _ [2]float64, i int) bool {
					if !consumed[zone.Spans[i].ID] {
						hits = append(hits, i)
					}
					return true
				})
			sort.Slice(hits, func(a, b int) bool {
				sa, sb := zone.Spans[hits[a]], zone.Spans[hits[b]]
				if sa.Box.Y0 != sb.Box.Y0 {
					return sa.Box.Y0 < sb.Box.Y0
				}
				return sa.Box.X0 < sb.Box.X0
			})

			gc := model.GridCell{Box: cell}
			parts := make([]string, 0, len(hits))
			for _, i := range hits {
				s := zone.Spans[i]
				consumed[s.ID] = true
				parts = append(parts, s.Text)
				gc.Spans = append(gc.Spans, model.CellSpan{
					Text:     s.Text,
					Box:      s.Box,
					FontSize: s.Size,
					Font:     s.Font,
					Bold:     s.Bold(),
				})
			}
			data[r][c] = strings.Join(parts, " ")
			cells[r][c] = gc
		}
	}

	table := &model.Table{
		Data:       data,
		Method:     model.MethodGridSnap,
		HasBorders: true,
		Regularity: "ruled",
		Grid: &model.GridGeometry{
			ColEdges: colEdges,
			RowEdges: rowEdges,
			Cells:    cells,
		},
	}
	table.Normalize()
	Analyze(table)

	d.logger.Debug("zone snapped to grid",
		zap.Int("rows", table.Rows),
		zap.Int("cols", table.Cols),
		zap.Int("spans", len(consumed)))
	return table, consumed, true
}
