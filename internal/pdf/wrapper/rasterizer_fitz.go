//go:build fitz

package wrapper

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRasterizer renders pages with MuPDF through go-fitz
type FitzRasterizer struct{}

// NewRasterizer returns the MuPDF rasterizer
func NewRasterizer() (Rasterizer, error) {
	return &FitzRasterizer{}, nil
}

// Rasterize renders the 1-based page at dpi
func (f *FitzRasterizer) Rasterize(data []byte, pageNum int, dpi float64) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for rasterizing: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, fmt.Errorf("%w: %d", ErrPageNotFound, pageNum)
	}
	img, err := doc.ImageDPI(pageNum-1, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize page %d: %w", pageNum, err)
	}
	return img, nil
}
