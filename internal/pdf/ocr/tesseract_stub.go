//go:build !ocr

package ocr

// NewTesseract reports that OCR support was not compiled in.
// To enable it, rebuild with: go build -tags ocr
func NewTesseract(lang string) (Engine, error) {
	return nil, ErrEngineUnavailable
}
