package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	// decoders for embedded image payloads
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Variant is an enhanced copy of the source image. Scale maps variant
// pixels back to source pixels.
type Variant struct {
	Name  string
	Image *image.Gray
	Scale float64
}

// Decode decodes an embedded image payload
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Gray converts img to 8-bit grayscale with the origin at 0,0
func Gray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return g
}

// Variants returns the contrast-stretched, equalized, binarized, 2x
// upscaled and edge variants of img.
func Variants(img image.Image) []Variant {
	g := Gray(img)
	return []Variant{
		{Name: "contrast", Image: Contrast(g, 1.2, 10), Scale: 1},
		{Name: "equalized", Image: Equalize(g), Scale: 1},
		{Name: "binarized", Image: AdaptiveThreshold(g, 11, 2), Scale: 1},
		{Name: "upscaled", Image: Upscale(g, 2), Scale: 2},
		{Name: "edges", Image: Edges(g, 100), Scale: 1},
	}
}

// Contrast applies v*alpha + beta with saturation
func Contrast(g *image.Gray, alpha, beta float64) *image.Gray {
	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		out.Pix[i] = saturate(float64(v)*alpha + beta)
	}
	return out
}

// Equalize spreads the gray histogram over the full range
func Equalize(g *image.Gray) *image.Gray {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	var cdf [256]int
	run, minCDF := 0, 0
	for i, n := range hist {
		run += n
		cdf[i] = run
		if minCDF == 0 && run > 0 {
			minCDF = run
		}
	}
	out := image.NewGray(g.Rect)
	if total == minCDF {
		copy(out.Pix, g.Pix)
		return out
	}
	for i, v := range g.Pix {
		out.Pix[i] = saturate(float64(cdf[v]-minCDF) / float64(total-minCDF) * 255)
	}
	return out
}

// AdaptiveThreshold binarizes against the mean of a block × block
// neighbourhood minus c. Ink becomes 0, paper 255.
func AdaptiveThreshold(g *image.Gray, block int, c float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	// integral image with a zero border row and column
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(g.Pix[y*g.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}

	r := block / 2
	out := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-r), min(h, y+r+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-r), min(w, x+r+1)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := float64(sum) / float64((x1-x0)*(y1-y0))
			if float64(g.Pix[y*g.Stride+x]) > mean-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// Upscale enlarges g by factor with Catmull-Rom interpolation
func Upscale(g *image.Gray, factor int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.Rect.Dx()*factor, g.Rect.Dy()*factor))
	draw.CatmullRom.Scale(out, out.Bounds(), g, g.Rect, draw.Src, nil)
	return out
}

// Edges marks pixels whose Sobel gradient exceeds threshold as ink and
// thickens them by one pixel.
func Edges(g *image.Gray, threshold float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return float64(g.Pix[y*g.Stride+x])
	}
	edge := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) - at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) - at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			edge[y*w+x] = math.Hypot(gx, gy) > threshold
		}
	}

	out := image.NewGray(g.Rect)
	for i := range out.Pix {
		out.Pix[i] = 255
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !edge[y*w+x] {
				continue
			}
			for dy := 0; dy <= 1 && y+dy < h; dy++ {
				for dx := 0; dx <= 1 && x+dx < w; dx++ {
					out.Pix[(y+dy)*out.Stride+x+dx] = 0
				}
			}
		}
	}
	return out
}

func saturate(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
