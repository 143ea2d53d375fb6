package vector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/faithful-pdf/internal/pdf/fixtures"
	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

func line(x0, y0, x1, y1 float64) wrapper.Path {
	return wrapper.Path{
		Stroke:    true,
		LineWidth: 1,
		Ops: []wrapper.PathOp{
			{Kind: wrapper.OpMoveTo, Points: []geom.Point{{X: x0, Y: y0}}},
			{Kind: wrapper.OpLineTo, Points: []geom.Point{{X: x1, Y: y1}}},
		},
	}
}

func rect(x0, y0, x1, y1 float64) wrapper.Path {
	return wrapper.Path{
		Stroke: true,
		Ops: []wrapper.PathOp{
			{Kind: wrapper.OpRect, Points: []geom.Point{{X: x0, Y: y0}, {X: x1, Y: y1}}},
		},
	}
}

func TestClassify(t *testing.T) {
	c := NewCollector(DefaultConfig(), nil)

	tests := []struct {
		name      string
		paths     []wrapper.Path
		h, v, r   int
		shapeKind string
	}{
		{"horizontal", []wrapper.Path{line(10, 100, 200, 100.3)}, 1, 0, 0, "line"},
		{"vertical", []wrapper.Path{line(50, 10, 50.2, 300)}, 0, 1, 0, "line"},
		{"diagonal_ignored", []wrapper.Path{line(0, 0, 100, 100)}, 0, 0, 0, ""},
		{"rectangle_with_edges", []wrapper.Path{rect(10, 10, 110, 60)}, 2, 2, 1, "rectangle"},
		{"rectangle_inverted_corners", []wrapper.Path{rect(110, 60, 10, 10)}, 2, 2, 1, "rectangle"},
		{"hairline_rect_is_line", []wrapper.Path{rect(10, 10, 210, 10.8)}, 1, 0, 0, "line"},
		{"dot_dropped", []wrapper.Path{rect(10, 10, 11, 11)}, 0, 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := c.Classify(tt.paths)
			assert.Len(t, p.H, tt.h)
			assert.Len(t, p.V, tt.v)
			assert.Len(t, p.Rects, tt.r)
			if tt.shapeKind != "" {
				require.NotEmpty(t, p.Shapes)
				assert.Equal(t, tt.shapeKind, p.Shapes[0].Kind)
			} else {
				assert.Empty(t, p.Shapes)
			}
		})
	}
}

func TestClassify_ClosedPath(t *testing.T) {
	c := NewCollector(DefaultConfig(), nil)
	path := wrapper.Path{Ops: []wrapper.PathOp{
		{Kind: wrapper.OpMoveTo, Points: []geom.Point{{X: 0, Y: 0}}},
		{Kind: wrapper.OpLineTo, Points: []geom.Point{{X: 100, Y: 0}}},
		{Kind: wrapper.OpLineTo, Points: []geom.Point{{X: 100, Y: 50}}},
		{Kind: wrapper.OpLineTo, Points: []geom.Point{{X: 0, Y: 50}}},
		{Kind: wrapper.OpClose},
	}}
	p := c.Classify([]wrapper.Path{path})
	assert.Len(t, p.H, 2)
	assert.Len(t, p.V, 2)
}

func TestClassify_MalformedPathSkipped(t *testing.T) {
	c := NewCollector(DefaultConfig(), nil)
	bad := wrapper.Path{Ops: []wrapper.PathOp{{Kind: wrapper.OpLineTo}}} // no points
	p := c.Classify([]wrapper.Path{bad, line(0, 10, 100, 10)})
	assert.Len(t, p.H, 1)
	assert.Len(t, p.Shapes, 1)
}

type brokenPage struct{ wrapper.Page }

func (brokenPage) Number() int { return 7 }
func (brokenPage) Paths() ([]wrapper.Path, error) {
	return nil, errors.New("corrupt content stream")
}

type panicPage struct{ wrapper.Page }

func (panicPage) Number() int                    { return 8 }
func (panicPage) Paths() ([]wrapper.Path, error) { panic("unexpected EOF") }

func TestCollect_NeverFails(t *testing.T) {
	c := NewCollector(Config{}, nil)
	assert.True(t, c.Collect(brokenPage{}).Empty())
	assert.True(t, c.Collect(panicPage{}).Empty())
}

func TestCollect_FromPDF(t *testing.T) {
	rects, lines := fixtures.Grid(100, 100, 60, 20, 3, 3)
	data, err := fixtures.Build(fixtures.Page{Rects: rects, Lines: lines})
	require.NoError(t, err)

	doc, err := wrapper.NewLedongthucBackend(nil).Open(data)
	require.NoError(t, err)
	defer doc.Close()
	page, err := doc.Page(1)
	require.NoError(t, err)

	p := NewCollector(DefaultConfig(), nil).Collect(page)
	assert.Len(t, p.Rects, 1)
	assert.Len(t, p.H, 4)
	assert.Len(t, p.V, 4)
}

func TestPrimitives_InBox(t *testing.T) {
	p := Primitives{
		H:     []HLine{{X0: 0, X1: 100, Y: 50}, {X0: 0, X1: 100, Y: 500}},
		V:     []VLine{{X: 50, Y0: 0, Y1: 100}, {X: 400, Y0: 0, Y1: 100}},
		Rects: []geom.Box{geom.NewBox(0, 0, 100, 100), geom.NewBox(300, 300, 400, 400)},
	}
	in := p.InBox(geom.NewBox(0, 0, 100, 100), 1)
	assert.Len(t, in.H, 1)
	assert.Len(t, in.V, 1)
	assert.Len(t, in.Rects, 1)
}
