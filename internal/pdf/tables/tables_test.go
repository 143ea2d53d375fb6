package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
	"github.com/a3tai/faithful-pdf/internal/pdf/vector"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// span builds a span the way the extractor boxes glyphs: baseline at y
func span(id int, s string, x, y, size float64) text.Span {
	w := size * 0.52 * float64(len([]rune(s)))
	return text.Span{
		ID:   id,
		Text: s,
		Font: "Helvetica",
		Size: size,
		Box:  geom.NewBox(x, y-size*0.8, x+w, y+size*0.2),
	}
}

// cellSpans places one span per cell, left padded and vertically centered
func cellSpans(x, y, cellW, cellH float64, cells [][]string, size float64) []text.Span {
	var spans []text.Span
	for r, row := range cells {
		for c, s := range row {
			spans = append(spans, span(len(spans), s,
				x+cellW*float64(c)+6,
				y+cellH*float64(r)+cellH/2+size/3,
				size))
		}
	}
	return spans
}

// ruling strokes a rows × cols grid: an outer rectangle plus inner lines
func ruling(x, y, cellW, cellH float64, rows, cols int) vector.Primitives {
	w, h := cellW*float64(cols), cellH*float64(rows)
	paths := []wrapper.Path{{
		Stroke: true,
		Ops: []wrapper.PathOp{{
			Kind:   wrapper.OpRect,
			Points: []geom.Point{{X: x, Y: y}, {X: x + w, Y: y + h}},
		}},
	}}
	line := func(x0, y0, x1, y1 float64) wrapper.Path {
		return wrapper.Path{Stroke: true, Ops: []wrapper.PathOp{
			{Kind: wrapper.OpMoveTo, Points: []geom.Point{{X: x0, Y: y0}}},
			{Kind: wrapper.OpLineTo, Points: []geom.Point{{X: x1, Y: y1}}},
		}}
	}
	for r := 1; r < rows; r++ {
		yy := y + cellH*float64(r)
		paths = append(paths, line(x, yy, x+w, yy))
	}
	for c := 1; c < cols; c++ {
		xx := x + cellW*float64(c)
		paths = append(paths, line(xx, y, xx, y+h))
	}
	return vector.NewCollector(vector.DefaultConfig(), nil).Classify(paths)
}

var grid3x3 = [][]string{
	{"A1", "B1", "C1"},
	{"A2", "B2", "C2"},
	{"A3", "B3", "C3"},
}

func TestDetect_ThreeByThreeGrid(t *testing.T) {
	spans := cellSpans(100, 100, 80, 30, grid3x3, 10)
	prims := ruling(100, 100, 80, 30, 3, 3)

	res := NewDetector(DefaultConfig(), nil).Detect(spans, prims)
	require.Len(t, res.Tables, 1)

	table := res.Tables[0].Table
	assert.Equal(t, model.MethodGridSnap, table.Method)
	assert.Equal(t, 3, table.Rows)
	assert.Equal(t, 3, table.Cols)
	assert.Equal(t, grid3x3, table.Data)
	assert.True(t, table.HasBorders)
	require.NotNil(t, table.Grid)
	assert.Len(t, table.Grid.ColEdges, 4)
	assert.Len(t, table.Grid.RowEdges, 4)

	assert.Len(t, res.Consumed, 9)
	assert.Len(t, res.GridBoxes, 1)
}

func TestDetect_TwoByTwoComposition(t *testing.T) {
	cells := [][]string{
		{"Lactose", "50 mg"},
		{"Starch", "20 mg"},
	}
	spans := cellSpans(72, 200, 150, 28, cells, 11)
	prims := ruling(72, 200, 150, 28, 2, 2)

	res := NewDetector(DefaultConfig(), nil).Detect(spans, prims)
	require.Len(t, res.Tables, 1)
	table := res.Tables[0].Table
	assert.Equal(t, 2, table.Rows)
	assert.Equal(t, 2, table.Cols)
	assert.Equal(t, cells, table.Data)
	assert.Equal(t, ColumnNumeric, table.Columns[1].DataType)
	assert.Equal(t, "right", table.Columns[1].Alignment)
}

func TestDetect_NoRulingNoGridSnap(t *testing.T) {
	spans := cellSpans(100, 100, 80, 30, grid3x3, 10)

	cfg := DefaultConfig()
	cfg.Geometric = false
	res := NewDetector(cfg, nil).Detect(spans, vector.Primitives{})
	assert.Empty(t, res.Tables)
	assert.Empty(t, res.Consumed)

	res = NewDetector(DefaultConfig(), nil).Detect(spans, vector.Primitives{})
	require.Len(t, res.Tables, 1)
	table := res.Tables[0].Table
	assert.Equal(t, model.MethodGeometric, table.Method)
	assert.False(t, table.HasBorders)
	assert.Equal(t, grid3x3, table.Data)
	assert.Equal(t, "regular", table.Regularity)
	assert.Len(t, res.Consumed, 9)
}

func TestDetect_SparseLinesAreNotAGrid(t *testing.T) {
	spans := cellSpans(100, 100, 80, 30, grid3x3, 10)
	// a single underline under the first row
	prims := vector.Primitives{H: []vector.HLine{{X0: 100, X1: 340, Y: 130}}}

	res := NewDetector(DefaultConfig(), nil).Detect(spans, prims)
	for _, f := range res.Tables {
		assert.NotEqual(t, model.MethodGridSnap, f.Table.Method)
	}
}

func TestSnap_SeveralSpansInOneCell(t *testing.T) {
	spans := cellSpans(100, 100, 80, 30, grid3x3, 10)
	// a second word inside cell A1 on the same baseline
	extra := spans[0]
	extra.ID, extra.Text = len(spans), "x"
	extra.Box.X0, extra.Box.X1 = 130, 135.2
	spans = append(spans, extra)

	d := NewDetector(DefaultConfig(), nil)
	zones := d.Zones(spans)
	require.Len(t, zones, 1)

	table, consumed, ok := d.Snap(zones[0], ruling(100, 100, 80, 30, 3, 3))
	require.True(t, ok)
	assert.Equal(t, "A1 x", table.Data[0][0])
	assert.Len(t, consumed, 10)
	assert.Len(t, table.Grid.Cells[0][0].Spans, 2)
}

func TestZones(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)

	tests := []struct {
		name  string
		spans []text.Span
		zones int
	}{
		{"empty", nil, 0},
		{"single row is not a zone", cellSpans(72, 100, 80, 30, grid3x3[:1], 10), 0},
		{"three rows", cellSpans(72, 100, 80, 30, grid3x3, 10), 1},
		{
			"prose breaks the run",
			append(cellSpans(72, 100, 80, 30, grid3x3[:2], 10),
				span(10, "A paragraph of ordinary prose", 72, 200, 10),
				span(11, "A1", 72, 260, 10), span(12, "B1", 152, 260, 10), span(13, "C1", 232, 260, 10),
				span(14, "A2", 72, 290, 10), span(15, "B2", 152, 290, 10), span(16, "C2", 232, 290, 10)),
			2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, d.Zones(tt.spans), tt.zones)
		})
	}
}

func TestRowScore(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)

	tests := []struct {
		name  string
		row   []text.Span
		score int
		table bool
	}{
		{
			"short numeric cells",
			[]text.Span{span(0, "A1", 72, 100, 10), span(1, "B1", 152, 100, 10), span(2, "C1", 232, 100, 10)},
			4, true,
		},
		{
			"keyword pair",
			[]text.Span{span(0, "Lactose", 72, 100, 10), span(1, "50 mg", 222, 100, 10)},
			4, true,
		},
		{
			"two words",
			[]text.Span{span(0, "Name", 72, 100, 10), span(1, "Value", 222, 100, 10)},
			1, false,
		},
		{
			"single span",
			[]text.Span{span(0, "Only 1 span mg", 72, 100, 10)},
			3, false,
		},
		{
			"footnote",
			[]text.Span{
				span(0, "1 Ingredients of the premix are listed in the", 72, 100, 8),
				span(1, "European Pharmacopoeia 10.0", 300, 100, 8),
			},
			-1, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.score, d.RowScore(tt.row))
			assert.Equal(t, tt.table, d.IsTableRow(tt.row))
		})
	}
}

func TestHasGrid_Rectangle(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	zone := geom.NewBox(100, 100, 200, 150)

	assert.True(t, d.HasGrid(zone, vector.Primitives{Rects: []geom.Box{geom.NewBox(95, 95, 205, 155)}}))
	// covers the full width but only a third of the height
	assert.False(t, d.HasGrid(zone, vector.Primitives{Rects: []geom.Box{geom.NewBox(95, 95, 205, 112)}}))
}

func TestEdges_Dedup(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	zone := geom.NewBox(100, 100, 200, 150)
	prims := vector.Primitives{
		V: []vector.VLine{{X: 150, Y0: 90, Y1: 160}, {X: 150.5, Y0: 90, Y1: 160}, {X: 100.3, Y0: 90, Y1: 160}},
		H: []vector.HLine{{X0: 90, X1: 210, Y: 125}},
	}
	cols, rows := d.Edges(zone, prims)
	assert.Equal(t, []float64{100, 150, 200}, cols)
	assert.Equal(t, []float64{100, 125, 150}, rows)
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		contents []string
		want     string
	}{
		{nil, ColumnEmpty},
		{[]string{"50 mg", "12.5", "3%"}, ColumnNumeric},
		{[]string{"European Pharmacopoeia", "In-house"}, ColumnReference},
		{[]string{"Component", "Lactose"}, ColumnIngredients},
		{[]string{"Function", "Diluent"}, ColumnRole},
		{[]string{"hello", "world"}, ColumnText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnType(tt.contents), "%v", tt.contents)
	}
}

func TestDetectHeader(t *testing.T) {
	assert.True(t, DetectHeader([][]string{
		{"Ingredients", "Amount"},
		{"Microcrystalline cellulose", "120 mg"},
	}))
	assert.False(t, DetectHeader([][]string{
		{"A1", "B1"},
		{"A2", "B2"},
	}))
	assert.False(t, DetectHeader([][]string{{"only"}}))
}

func TestClassifyTable(t *testing.T) {
	assert.Equal(t, "composition", ClassifyTable([][]string{{"Ingredients", "Amount"}}))
	assert.Equal(t, "specifications", ClassifyTable([][]string{{"Specification", "Ph. Eur. monograph"}}))
	assert.Equal(t, "stability", ClassifyTable([][]string{{"Storage", "25 C"}}))
	assert.Equal(t, "general", ClassifyTable([][]string{{"A1", "B1"}}))
	assert.Equal(t, "unknown", ClassifyTable(nil))
}

func TestClean(t *testing.T) {
	got := Clean([][]string{
		{" a ", "nan", "b"},
		{"", "  "},
		{"c"},
	})
	assert.Equal(t, [][]string{{"a", "", "b"}, {"c", "", ""}}, got)
}
