package wrapper

import (
	"math"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
)

// matrix is a PDF transformation matrix [a b c d e f]
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// multiply returns m × n, applying m first
func (m matrix) multiply(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

type graphicsState struct {
	ctm         matrix
	strokeColor Color
	fillColor   Color
	lineWidth   float64
}

// contentWalker interprets path construction, painting, color and XObject
// operators. Text operators are left to ledongthuc's own Content().
type contentWalker struct {
	resources pdf.Value
	toPage    func(x, y float64) geom.Point

	state   graphicsState
	stack   []graphicsState
	current []PathOp

	paths  []Path
	images []ImageRef
}

func newContentWalker(resources pdf.Value, toPage func(x, y float64) geom.Point) *contentWalker {
	return &contentWalker{
		resources: resources,
		toPage:    toPage,
		state:     graphicsState{ctm: identity, lineWidth: 1},
	}
}

func (w *contentWalker) interpret(strm pdf.Value) {
	if strm.Kind() != pdf.Stream {
		return
	}
	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		w.handle(op, args)
	})
}

func floats(args []pdf.Value) []float64 {
	out := make([]float64, len(args))
	for i, a := range args {
		out[i] = a.Float64()
	}
	return out
}

func (w *contentWalker) point(x, y float64) geom.Point {
	ux, uy := w.state.ctm.apply(x, y)
	return w.toPage(ux, uy)
}

func (w *contentWalker) handle(op string, args []pdf.Value) {
	switch op {
	case "q":
		w.stack = append(w.stack, w.state)
	case "Q":
		if n := len(w.stack); n > 0 {
			w.state = w.stack[n-1]
			w.stack = w.stack[:n-1]
		}
	case "cm":
		if len(args) == 6 {
			f := floats(args)
			w.state.ctm = matrix{f[0], f[1], f[2], f[3], f[4], f[5]}.multiply(w.state.ctm)
		}
	case "w":
		if len(args) == 1 {
			w.state.lineWidth = args[0].Float64()
		}
	case "RG", "G", "K":
		if c, ok := colorFrom(floats(args)); ok {
			w.state.strokeColor = c
		}
	case "rg", "g", "k":
		if c, ok := colorFrom(floats(args)); ok {
			w.state.fillColor = c
		}
	case "m":
		if len(args) == 2 {
			f := floats(args)
			w.current = append(w.current, PathOp{Kind: OpMoveTo, Points: []geom.Point{w.point(f[0], f[1])}})
		}
	case "l":
		if len(args) == 2 {
			f := floats(args)
			w.current = append(w.current, PathOp{Kind: OpLineTo, Points: []geom.Point{w.point(f[0], f[1])}})
		}
	case "c", "v", "y":
		if len(args) >= 4 {
			f := floats(args)
			end := w.point(f[len(f)-2], f[len(f)-1])
			w.current = append(w.current, PathOp{Kind: OpCurveTo, Points: []geom.Point{end}})
		}
	case "re":
		if len(args) == 4 {
			f := floats(args)
			a := w.point(f[0], f[1])
			b := w.point(f[0]+f[2], f[1]+f[3])
			w.current = append(w.current, PathOp{Kind: OpRect, Points: []geom.Point{a, b}})
		}
	case "h":
		w.current = append(w.current, PathOp{Kind: OpClose})
	case "S", "s":
		w.paint(true, false, op == "s")
	case "f", "F", "f*":
		w.paint(false, true, false)
	case "B", "B*":
		w.paint(true, true, false)
	case "b", "b*":
		w.paint(true, true, true)
	case "n":
		w.current = nil
	case "Do":
		if len(args) == 1 {
			w.placeXObject(args[0].Name())
		}
	}
}

func (w *contentWalker) paint(stroke, fill, closePath bool) {
	if len(w.current) == 0 {
		return
	}
	ops := w.current
	if closePath {
		ops = append(ops, PathOp{Kind: OpClose})
	}
	w.paths = append(w.paths, Path{
		Ops:         ops,
		Stroke:      stroke,
		Fill:        fill,
		StrokeColor: w.state.strokeColor,
		FillColor:   w.state.fillColor,
		LineWidth:   w.state.lineWidth * scale(w.state.ctm),
	})
	w.current = nil
}

// placeXObject records an image placement: the unit square mapped through
// the current CTM.
func (w *contentWalker) placeXObject(name string) {
	xobj := w.resources.Key("XObject").Key(name)
	if xobj.IsNull() || xobj.Key("Subtype").Name() != "Image" {
		return
	}

	corners := []geom.Point{w.point(0, 0), w.point(1, 0), w.point(0, 1), w.point(1, 1)}
	box := geom.NewBox(corners[0].X, corners[0].Y, corners[0].X, corners[0].Y)
	for _, c := range corners[1:] {
		box = box.Union(geom.NewBox(c.X, c.Y, c.X, c.Y))
	}

	w.images = append(w.images, ImageRef{
		Name:   name,
		Box:    box,
		Width:  int(xobj.Key("Width").Int64()),
		Height: int(xobj.Key("Height").Int64()),
	})
}

// colorFrom converts gray, RGB or CMYK operands to RGB
func colorFrom(c []float64) (Color, bool) {
	switch len(c) {
	case 1:
		return Color{R: c[0], G: c[0], B: c[0]}, true
	case 3:
		return Color{R: c[0], G: c[1], B: c[2]}, true
	case 4:
		k := 1 - c[3]
		return Color{R: (1 - c[0]) * k, G: (1 - c[1]) * k, B: (1 - c[2]) * k}, true
	}
	return Color{}, false
}

// scale is the mean axis scale factor of m, used for line widths
func scale(m matrix) float64 {
	sx := math.Hypot(m[0], m[1])
	sy := math.Hypot(m[2], m[3])
	return (sx + sy) / 2
}
