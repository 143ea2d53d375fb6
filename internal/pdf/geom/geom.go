// Package geom holds the page-space geometry shared by every extraction
// stage. Coordinates are PDF points with the origin at the top-left corner
// of the page and y growing downward.
package geom

import "math"

// Box is an axis-aligned rectangle in page space
type Box struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Point is a location in page space
type Point struct {
	X float64
	Y float64
}

// Size holds page dimensions in points
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Position is the serialized placement of an element: absolute page
// coordinates plus the same box as percentages of the page size.
type Position struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	XPercent      float64 `json:"x_percent"`
	YPercent      float64 `json:"y_percent"`
	WidthPercent  float64 `json:"width_percent"`
	HeightPercent float64 `json:"height_percent"`
}

// NewBox builds a normalized box from two corners given in any order
func NewBox(x0, y0, x1, y1 float64) Box {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Box{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

func (b Box) Width() float64  { return b.X1 - b.X0 }
func (b Box) Height() float64 { return b.Y1 - b.Y0 }
func (b Box) Area() float64   { return math.Max(0, b.Width()) * math.Max(0, b.Height()) }

// Center returns the midpoint of the box
func (b Box) Center() Point {
	return Point{X: (b.X0 + b.X1) / 2, Y: (b.Y0 + b.Y1) / 2}
}

// Empty reports whether the box has no area
func (b Box) Empty() bool {
	return b.X1 <= b.X0 || b.Y1 <= b.Y0
}

// ContainsPoint uses half-open bounds on the far edges so that a point on a
// shared edge belongs to exactly one of two adjacent cells.
func (b Box) ContainsPoint(p Point) bool {
	return p.X >= b.X0 && p.X < b.X1 && p.Y >= b.Y0 && p.Y < b.Y1
}

// Union returns the smallest box covering both boxes
func (b Box) Union(o Box) Box {
	return Box{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// Intersect returns the overlapping region, which is Empty when the boxes
// are disjoint.
func (b Box) Intersect(o Box) Box {
	return Box{
		X0: math.Max(b.X0, o.X0),
		Y0: math.Max(b.Y0, o.Y0),
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
	}
}

// Intersects reports whether the boxes share any area
func (b Box) Intersects(o Box) bool {
	return !b.Intersect(o).Empty()
}

// OverlapRatio is the intersection area divided by the smaller box area
func (b Box) OverlapRatio(o Box) float64 {
	smaller := math.Min(b.Area(), o.Area())
	if smaller <= 0 {
		return 0
	}
	return b.Intersect(o).Area() / smaller
}

// Expand grows the box by d on every side
func (b Box) Expand(d float64) Box {
	return Box{X0: b.X0 - d, Y0: b.Y0 - d, X1: b.X1 + d, Y1: b.Y1 + d}
}

// Clamp limits the box to the page, never producing negative coordinates
// or sizes.
func (b Box) Clamp(page Size) Box {
	c := Box{
		X0: clamp(b.X0, 0, page.Width),
		Y0: clamp(b.Y0, 0, page.Height),
		X1: clamp(b.X1, 0, page.Width),
		Y1: clamp(b.Y1, 0, page.Height),
	}
	if c.X1 < c.X0 {
		c.X1 = c.X0
	}
	if c.Y1 < c.Y0 {
		c.Y1 = c.Y0
	}
	return c
}

// Position clamps the box to the page and derives its percentage placement
func (b Box) Position(page Size) Position {
	c := b.Clamp(page)
	p := Position{
		X:      Round(c.X0, 2),
		Y:      Round(c.Y0, 2),
		Width:  Round(c.Width(), 2),
		Height: Round(c.Height(), 2),
	}
	if page.Width > 0 {
		p.XPercent = Round(c.X0/page.Width*100, 3)
		p.WidthPercent = Round(c.Width()/page.Width*100, 3)
	}
	if page.Height > 0 {
		p.YPercent = Round(c.Y0/page.Height*100, 3)
		p.HeightPercent = Round(c.Height()/page.Height*100, 3)
	}
	return p
}

// Round rounds v to the given number of decimals
func Round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return clamp(v, lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
