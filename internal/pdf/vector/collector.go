// Package vector classifies a page's painted paths into the horizontal
// lines, vertical lines and rectangles that table ruling is made of.
package vector

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// HLine is a horizontal segment from X0 to X1 at Y
type HLine struct {
	X0, X1, Y float64
}

// VLine is a vertical segment from Y0 to Y1 at X
type VLine struct {
	X, Y0, Y1 float64
}

// Shape is a painted primitive kept for rendering
type Shape struct {
	Kind        string // "line" or "rectangle"
	Box         geom.Box
	StrokeColor string
	FillColor   string
	LineWidth   float64
}

// Primitives are the per-page vector sets. They are never persisted.
type Primitives struct {
	H      []HLine
	V      []VLine
	Rects  []geom.Box
	Shapes []Shape
}

// Empty reports whether the page has no ruling at all
func (p Primitives) Empty() bool {
	return len(p.H) == 0 && len(p.V) == 0 && len(p.Rects) == 0
}

// Config holds the classification tolerances
type Config struct {
	// AxisTolerance is the largest coordinate drift, in points, for a segment
	// to still count as horizontal or vertical.
	AxisTolerance float64
	// ThinRect is the thickness below which a rectangle is treated as a line.
	ThinRect float64
}

// DefaultConfig returns the standard tolerances
func DefaultConfig() Config {
	return Config{AxisTolerance: 0.5, ThinRect: 1.5}
}

// Collector turns painted paths into Primitives
type Collector struct {
	cfg    Config
	logger *zap.Logger
}

// NewCollector creates a collector
func NewCollector(cfg Config, logger *zap.Logger) *Collector {
	if cfg.AxisTolerance <= 0 {
		cfg.AxisTolerance = DefaultConfig().AxisTolerance
	}
	if cfg.ThinRect <= 0 {
		cfg.ThinRect = DefaultConfig().ThinRect
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{cfg: cfg, logger: logger}
}

// Collect reads the page paths. It never fails: a page whose drawing
// commands cannot be read yields empty sets, and a malformed path is
// skipped on its own.
func (c *Collector) Collect(page wrapper.Page) (prims Primitives) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("vector collection failed",
				zap.Int("page", page.Number()),
				zap.String("error", fmt.Sprint(r)))
			prims = Primitives{}
		}
	}()

	paths, err := page.Paths()
	if err != nil {
		c.logger.Warn("vector paths unavailable",
			zap.Int("page", page.Number()),
			zap.Error(err))
		return Primitives{}
	}
	return c.Classify(paths)
}

// Classify sorts path segments into H, V and RECTS
func (c *Collector) Classify(paths []wrapper.Path) Primitives {
	var prims Primitives
	for i := range paths {
		if err := c.classifyPath(&prims, paths[i]); err != nil {
			c.logger.Debug("skipping malformed path", zap.Int("path", i), zap.Error(err))
		}
	}
	return prims
}

func (c *Collector) classifyPath(prims *Primitives, path wrapper.Path) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed path: %v", r)
		}
	}()

	// work on a scratch copy so a failing path leaves prims untouched
	var local Primitives
	var cur, start geom.Point
	hasCur := false

	for _, op := range path.Ops {
		switch op.Kind {
		case wrapper.OpMoveTo:
			cur, start = op.Points[0], op.Points[0]
			hasCur = true
		case wrapper.OpLineTo:
			p := op.Points[0]
			if hasCur {
				c.segment(&local, path, cur, p)
			}
			cur = p
			hasCur = true
		case wrapper.OpCurveTo:
			cur = op.Points[0]
			hasCur = true
		case wrapper.OpClose:
			if hasCur {
				c.segment(&local, path, cur, start)
				cur = start
			}
		case wrapper.OpRect:
			a, b := op.Points[0], op.Points[1]
			c.rect(&local, path, geom.NewBox(a.X, a.Y, b.X, b.Y))
			cur, start = a, a
			hasCur = true
		default:
			return fmt.Errorf("unknown path operator %d", op.Kind)
		}
	}

	prims.H = append(prims.H, local.H...)
	prims.V = append(prims.V, local.V...)
	prims.Rects = append(prims.Rects, local.Rects...)
	prims.Shapes = append(prims.Shapes, local.Shapes...)
	return nil
}

// segment classifies one straight segment; diagonals are dropped
func (c *Collector) segment(prims *Primitives, path wrapper.Path, a, b geom.Point) {
	if math.IsNaN(a.X+a.Y+b.X+b.Y) || math.IsInf(a.X+a.Y+b.X+b.Y, 0) {
		return
	}
	dx, dy := math.Abs(b.X-a.X), math.Abs(b.Y-a.Y)
	switch {
	case dy < c.cfg.AxisTolerance && dx >= c.cfg.AxisTolerance:
		y := (a.Y + b.Y) / 2
		prims.H = append(prims.H, HLine{X0: math.Min(a.X, b.X), X1: math.Max(a.X, b.X), Y: y})
		prims.Shapes = append(prims.Shapes, c.shape("line", geom.NewBox(a.X, y, b.X, y), path))
	case dx < c.cfg.AxisTolerance && dy >= c.cfg.AxisTolerance:
		x := (a.X + b.X) / 2
		prims.V = append(prims.V, VLine{X: x, Y0: math.Min(a.Y, b.Y), Y1: math.Max(a.Y, b.Y)})
		prims.Shapes = append(prims.Shapes, c.shape("line", geom.NewBox(x, a.Y, x, b.Y), path))
	}
}

// rect records a rectangle. Hairline rectangles are rules drawn as fills
// and count as lines; a real rectangle also contributes its four edges so
// that grids drawn one cell rectangle at a time still produce edges.
func (c *Collector) rect(prims *Primitives, path wrapper.Path, box geom.Box) {
	if math.IsNaN(box.X0+box.Y0+box.X1+box.Y1) {
		return
	}
	w, h := box.Width(), box.Height()
	switch {
	case w < c.cfg.ThinRect && h < c.cfg.ThinRect:
		return
	case h < c.cfg.ThinRect:
		y := (box.Y0 + box.Y1) / 2
		prims.H = append(prims.H, HLine{X0: box.X0, X1: box.X1, Y: y})
		prims.Shapes = append(prims.Shapes, c.shape("line", geom.NewBox(box.X0, y, box.X1, y), path))
	case w < c.cfg.ThinRect:
		x := (box.X0 + box.X1) / 2
		prims.V = append(prims.V, VLine{X: x, Y0: box.Y0, Y1: box.Y1})
		prims.Shapes = append(prims.Shapes, c.shape("line", geom.NewBox(x, box.Y0, x, box.Y1), path))
	default:
		prims.Rects = append(prims.Rects, box)
		prims.H = append(prims.H,
			HLine{X0: box.X0, X1: box.X1, Y: box.Y0},
			HLine{X0: box.X0, X1: box.X1, Y: box.Y1})
		prims.V = append(prims.V,
			VLine{X: box.X0, Y0: box.Y0, Y1: box.Y1},
			VLine{X: box.X1, Y0: box.Y0, Y1: box.Y1})
		prims.Shapes = append(prims.Shapes, c.shape("rectangle", box, path))
	}
}

func (c *Collector) shape(kind string, box geom.Box, path wrapper.Path) Shape {
	s := Shape{Kind: kind, Box: box, LineWidth: geom.Round(path.LineWidth, 2)}
	if path.Stroke {
		s.StrokeColor = path.StrokeColor.Hex()
	}
	if path.Fill {
		s.FillColor = path.FillColor.Hex()
	}
	return s
}

// InBox returns the primitives that fall inside box grown by tol, used to
// restrict ruling to one table zone.
func (p Primitives) InBox(box geom.Box, tol float64) Primitives {
	area := box.Expand(tol)
	var out Primitives
	for _, h := range p.H {
		if h.Y >= area.Y0 && h.Y <= area.Y1 && h.X1 >= area.X0 && h.X0 <= area.X1 {
			out.H = append(out.H, h)
		}
	}
	for _, v := range p.V {
		if v.X >= area.X0 && v.X <= area.X1 && v.Y1 >= area.Y0 && v.Y0 <= area.Y1 {
			out.V = append(out.V, v)
		}
	}
	for _, r := range p.Rects {
		if r.Intersects(area) {
			out.Rects = append(out.Rects, r)
		}
	}
	return out
}
