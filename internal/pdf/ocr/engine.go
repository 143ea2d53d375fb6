// Package ocr recognizes text and technical symbols in raster images and
// turns the detections into an editable overlay.
package ocr

import (
	"context"
	"errors"
	"image"
)

// ErrEngineUnavailable is returned when no OCR engine was compiled in.
// Rebuild with -tags ocr to enable tesseract.
var ErrEngineUnavailable = errors.New("OCR engine not available; rebuild with -tags ocr")

// PageSegMode is a tesseract page segmentation mode
type PageSegMode int

// Segmentation modes used by the recognition passes.
const (
	ModeSingleBlock PageSegMode = 6
	ModeSingleWord  PageSegMode = 8
	ModeSparseText  PageSegMode = 11
	ModeRawLine     PageSegMode = 13
)

// Pass is one recognition configuration
type Pass struct {
	Name           string
	Mode           PageSegMode
	Whitelist      string
	PreserveSpaces bool
}

// DefaultPasses returns the general, sparse alphanumeric, digit-only,
// raw-line and letter-only passes.
func DefaultPasses() []Pass {
	return []Pass{
		{Name: "general", Mode: ModeSingleBlock, PreserveSpaces: true},
		{Name: "sparse", Mode: ModeSingleWord, Whitelist: "0123456789.,ØøABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"},
		{Name: "digits", Mode: ModeSingleWord, Whitelist: "0123456789.,"},
		{Name: "raw_line", Mode: ModeRawLine, PreserveSpaces: true},
		{Name: "letters", Mode: ModeSingleWord, Whitelist: "ABCDEFGHIJKLMNOPQRSTUVWXYZ-'"},
	}
}

// PagePass is the single pass used to read a scanned page
func PagePass() Pass {
	return Pass{Name: "page", Mode: ModeSingleBlock, PreserveSpaces: true}
}

// Word is one raw recognition result in image pixels
type Word struct {
	Text       string
	Confidence float64
	Box        image.Rectangle
}

// Engine recognizes words in an image. Implementations must be safe for
// concurrent use.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, pass Pass) ([]Word, error)
}
