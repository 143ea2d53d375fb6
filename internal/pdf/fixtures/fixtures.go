// Package fixtures builds small synthetic PDFs for tests. All coordinates
// are points from the top-left corner of an A4 page.
package fixtures

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/go-pdf/fpdf"
)

// A4 page size in points as laid out by fpdf
const (
	A4Width  = 595.28
	A4Height = 841.89
)

// Text is a string drawn with its baseline at Y
type Text struct {
	X, Y float64
	Size float64
	Bold bool
	Str  string
}

// Line is a stroked segment
type Line struct {
	X0, Y0, X1, Y1 float64
}

// Rect is a stroked rectangle
type Rect struct {
	X, Y, W, H float64
}

// Image places a JPEG at X, Y with size W × H
type Image struct {
	X, Y, W, H float64
	JPEG       []byte
}

// Page describes the content of one page
type Page struct {
	Texts  []Text
	Lines  []Line
	Rects  []Rect
	Images []Image
}

// Build renders the pages into an uncompressed PDF
func Build(pages ...Page) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(false)
	pdf.SetLineWidth(1)

	imageCount := 0
	for _, page := range pages {
		pdf.AddPage()
		for _, r := range page.Rects {
			pdf.Rect(r.X, r.Y, r.W, r.H, "D")
		}
		for _, l := range page.Lines {
			pdf.Line(l.X0, l.Y0, l.X1, l.Y1)
		}
		for _, t := range page.Texts {
			style := ""
			if t.Bold {
				style = "B"
			}
			size := t.Size
			if size == 0 {
				size = 12
			}
			pdf.SetFont("Helvetica", style, size)
			pdf.Text(t.X, t.Y, t.Str)
		}
		for _, img := range page.Images {
			imageCount++
			name := fmt.Sprintf("img%d", imageCount)
			opts := fpdf.ImageOptions{ImageType: "JPG"}
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.JPEG))
			pdf.ImageOptions(name, img.X, img.Y, img.W, img.H, false, opts, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Grid returns the ruling of a rows × cols table: an outer rectangle plus
// inner horizontal and vertical lines.
func Grid(x, y, cellW, cellH float64, rows, cols int) ([]Rect, []Line) {
	w := cellW * float64(cols)
	h := cellH * float64(rows)
	rects := []Rect{{X: x, Y: y, W: w, H: h}}
	var lines []Line
	for r := 1; r < rows; r++ {
		yy := y + cellH*float64(r)
		lines = append(lines, Line{X0: x, Y0: yy, X1: x + w, Y1: yy})
	}
	for c := 1; c < cols; c++ {
		xx := x + cellW*float64(c)
		lines = append(lines, Line{X0: xx, Y0: y, X1: xx, Y1: y + h})
	}
	return rects, lines
}

// CellTexts places one string per cell, left-padded and vertically
// centered on the baseline.
func CellTexts(x, y, cellW, cellH float64, cells [][]string, size float64) []Text {
	var texts []Text
	for r, row := range cells {
		for c, s := range row {
			texts = append(texts, Text{
				X:    x + cellW*float64(c) + 6,
				Y:    y + cellH*float64(r) + cellH/2 + size/3,
				Size: size,
				Str:  s,
			})
		}
	}
	return texts
}

// ScanJPEG returns a light gray JPEG with dark bars, standing in for a
// scanned page.
func ScanJPEG(w, h int) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(235)
			if (y/12)%3 == 1 && x > w/10 && x < w*9/10 {
				v = 30
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
