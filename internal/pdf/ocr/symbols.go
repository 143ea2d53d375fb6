package ocr

import (
	"image"
)

// inkLevel is the gray value below which a pixel counts as ink
const inkLevel = 128

// maxComponentPixels bounds the components considered as symbol candidates
const maxComponentPixels = 2000

// component is a connected run of ink pixels
type component struct {
	box    image.Rectangle
	pixels int
	mask   []bool // box-relative, row-major
}

func (c component) at(x, y int) bool {
	w := c.box.Dx()
	if x < 0 || y < 0 || x >= w || y >= c.box.Dy() {
		return false
	}
	return c.mask[y*w+x]
}

// Symbol is a technical mark found by shape analysis
type Symbol struct {
	Text       string
	Kind       string
	Confidence float64
	Box        image.Rectangle
}

// DetectSymbols finds degree, plus-minus, prime, surface-finish and
// diameter marks that text recognition tends to miss.
func DetectSymbols(g *image.Gray) []Symbol {
	comps := components(g)
	ink := inkIntegral(g)

	var out []Symbol
	used := make(map[int]bool)
	for i, c := range comps {
		w, h := c.box.Dx(), c.box.Dy()
		switch {
		case isDiameter(c):
			out = append(out, Symbol{Text: "Ø", Kind: TypeDiameterSymbol, Confidence: 80, Box: c.box})
		case isDegree(c) && ink.count(image.Rect(c.box.Min.X-20, c.box.Min.Y-5, c.box.Min.X, c.box.Min.Y+10)) > 10:
			out = append(out, Symbol{Text: "°", Kind: TypeDegreeSymbol, Confidence: 75, Box: c.box})
		case isPlus(c):
			if j, ok := barBelow(comps, i); ok && !used[j] {
				used[j] = true
				out = append(out, Symbol{Text: "±", Kind: TypeToleranceSymbol, Confidence: 70, Box: c.box.Union(comps[j].box)})
			}
		case w >= 2 && w <= 6 && h >= 6 && h <= 15 && h > w*2 &&
			float64(c.box.Min.Y) < float64(g.Rect.Dy())*0.7 &&
			ink.count(image.Rect(c.box.Min.X-15, c.box.Min.Y, c.box.Min.X, c.box.Max.Y)) > 5:
			out = append(out, Symbol{Text: "'", Kind: TypePrimeSymbol, Confidence: 65, Box: c.box})
		case isDownTriangle(c):
			out = append(out, Symbol{Text: "▽", Kind: TypeSurfaceSymbol, Confidence: 60, Box: c.box})
		}
	}
	return out
}

// components labels 8-connected ink regions
func components(g *image.Gray) []component {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	seen := make([]bool, w*h)
	var out []component
	var stack []int

	for start := 0; start < w*h; start++ {
		if seen[start] || g.Pix[(start/w)*g.Stride+start%w] >= inkLevel {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		var members []int
		box := image.Rect(start%w, start/w, start%w+1, start/w+1)

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, p)
			x, y := p%w, p/w
			box = box.Union(image.Rect(x, y, x+1, y+1))
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					q := ny*w + nx
					if !seen[q] && g.Pix[ny*g.Stride+nx] < inkLevel {
						seen[q] = true
						stack = append(stack, q)
					}
				}
			}
		}

		if len(members) > maxComponentPixels {
			continue
		}
		c := component{box: box, pixels: len(members), mask: make([]bool, box.Dx()*box.Dy())}
		for _, p := range members {
			x, y := p%w-box.Min.X, p/w-box.Min.Y
			c.mask[y*box.Dx()+x] = true
		}
		out = append(out, c)
	}
	return out
}

// reachesSides reports whether ink reaches the middle of all four sides of the
// component box, within slack pixels of each edge.
func reachesSides(c component, slack int) bool {
	w, h := c.box.Dx(), c.box.Dy()
	top, bottom, left, right := false, false, false, false
	for d := 0; d <= slack; d++ {
		top = top || c.at(w/2, d)
		bottom = bottom || c.at(w/2, h-1-d)
		left = left || c.at(d, h/2)
		right = right || c.at(w-1-d, h/2)
	}
	return top && bottom && left && right
}

// ring reports whether the component is a closed loop around an empty
// center.
func ring(c component) bool {
	w, h := c.box.Dx(), c.box.Dy()
	if abs(w-h) > 2 || c.at(w/2, h/2) {
		return false
	}
	return reachesSides(c, 0)
}

func isDegree(c component) bool {
	w, h := c.box.Dx(), c.box.Dy()
	return w >= 4 && w <= 10 && h >= 4 && h <= 10 && ring(c)
}

// isDiameter finds a hollow loop crossed by a rising diagonal stroke. The
// interior off the stroke must be empty, so filled blobs never match.
func isDiameter(c component) bool {
	w, h := c.box.Dx(), c.box.Dy()
	if w < 10 || w > 32 || h < 10 || h > 32 || abs(w-h) > 4 {
		return false
	}
	if c.pixels*10 >= w*h*6 || !reachesSides(c, 1) {
		return false
	}
	// the falling diagonal crosses the interior away from the stroke
	if c.at(w*3/10, h*3/10) || c.at(w*7/10, h*7/10) {
		return false
	}
	// the stroke runs from bottom-left to top-right through the center
	hits, samples := 0, 0
	for i := 1; i < 9; i++ {
		x := w * i / 9
		y := h - 1 - h*i/9
		samples++
		if c.at(x, y) || c.at(x+1, y) || c.at(x-1, y) {
			hits++
		}
	}
	return hits*10 >= samples*8
}

// isPlus finds a cross whose middle row and column are mostly ink
func isPlus(c component) bool {
	w, h := c.box.Dx(), c.box.Dy()
	if w < 6 || w > 20 || h < 6 || h > 20 {
		return false
	}
	row, col := 0, 0
	for x := 0; x < w; x++ {
		if c.at(x, h/2) || c.at(x, h/2-1) || c.at(x, h/2+1) {
			row++
		}
	}
	for y := 0; y < h; y++ {
		if c.at(w/2, y) || c.at(w/2-1, y) || c.at(w/2+1, y) {
			col++
		}
	}
	return float64(row) > float64(w)*0.6 && float64(col) > float64(h)*0.6 && c.pixels < w*h/2
}

// barBelow finds a flat bar just under the plus at index i
func barBelow(comps []component, i int) (int, bool) {
	plus := comps[i].box
	for j, c := range comps {
		if j == i {
			continue
		}
		b := c.box
		gap := b.Min.Y - plus.Max.Y
		overlap := min(b.Max.X, plus.Max.X) - max(b.Min.X, plus.Min.X)
		if gap >= 0 && gap <= 6 && b.Dy() <= 3 && float64(overlap) >= float64(plus.Dx())*0.6 {
			return j, true
		}
	}
	return 0, false
}

// isDownTriangle finds a shape whose rows narrow steadily from a wide top
// to a point.
func isDownTriangle(c component) bool {
	w, h := c.box.Dx(), c.box.Dy()
	if w < 8 || w > 25 || h < 8 || h > 25 {
		return false
	}
	prev := w + 1
	for y := 0; y < h; y++ {
		lo, hi := -1, -1
		for x := 0; x < w; x++ {
			if c.at(x, y) {
				if lo < 0 {
					lo = x
				}
				hi = x
			}
		}
		if lo < 0 {
			return false
		}
		span := hi - lo + 1
		if span > prev+1 {
			return false
		}
		prev = span
	}
	return prev*10 <= w*3
}

// inkTable answers ink pixel counts over rectangles in constant time
type inkTable struct {
	w, h int
	sum  []int
}

func inkIntegral(g *image.Gray) inkTable {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	t := inkTable{w: w, h: h, sum: make([]int, (w+1)*(h+1))}
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			if g.Pix[y*g.Stride+x] < inkLevel {
				row++
			}
			t.sum[(y+1)*(w+1)+x+1] = t.sum[y*(w+1)+x+1] + row
		}
	}
	return t
}

func (t inkTable) count(r image.Rectangle) int {
	r = r.Intersect(image.Rect(0, 0, t.w, t.h))
	if r.Empty() {
		return 0
	}
	s := t.sum
	W := t.w + 1
	return s[r.Max.Y*W+r.Max.X] - s[r.Min.Y*W+r.Max.X] - s[r.Max.Y*W+r.Min.X] + s[r.Min.Y*W+r.Min.X]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
