//go:build ocr

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes words through gosseract. A gosseract client is not
// safe for concurrent use, so every call gets its own.
type Tesseract struct {
	languages []string
}

// NewTesseract creates an engine for the given "+" separated languages,
// e.g. "eng+fra".
func NewTesseract(lang string) (Engine, error) {
	if lang == "" {
		lang = "eng"
	}
	langs := strings.Split(lang, "+")

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	return &Tesseract{languages: langs}, nil
}

// Name returns the engine name
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize runs one pass over img and returns word boxes
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, pass Pass) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(pass.Mode)); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if pass.Whitelist != "" {
		if err := client.SetWhitelist(pass.Whitelist); err != nil {
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if pass.PreserveSpaces {
		if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
			return nil, fmt.Errorf("failed to set variable: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{Text: b.Word, Confidence: b.Confidence, Box: b.Box})
	}
	return words, nil
}
