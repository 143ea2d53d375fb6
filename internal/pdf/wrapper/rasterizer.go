package wrapper

import (
	"errors"
	"image"
)

// Rasterizer renders a page of an encoded PDF to a bitmap
type Rasterizer interface {
	Rasterize(data []byte, pageNum int, dpi float64) (image.Image, error)
}

// ErrRasterizerUnavailable is returned when the binary was built without
// the fitz tag.
var ErrRasterizerUnavailable = errors.New("page rasterizer not available: build with -tags fitz")
