package extraction

import (
	"go.uber.org/zap"

	"github.com/a3tai/faithful-pdf/internal/pdf/ocr"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// Capabilities lists what is available to an engine. It is built once at
// startup and injected, so tests can substitute backends and OCR engines.
type Capabilities struct {
	// Backends are tried in order until one extracts at least one page.
	Backends   []wrapper.Backend
	Rasterizer wrapper.Rasterizer
	OCR        ocr.Engine
}

// Capability keys reported in result metadata.
const (
	CapPositionedText = "positioned_text"
	CapPlainText      = "plain_text"
	CapVectorPaths    = "vector_paths"
	CapImagePayloads  = "image_payloads"
	CapRasterizer     = "rasterizer"
	CapOCR            = "ocr"
)

// DetectCapabilities builds the backend chain from factory and checks the
// optional rasterizer and OCR engine.
func DetectCapabilities(factory *wrapper.BackendFactory, ocrLanguage string, logger *zap.Logger) Capabilities {
	if logger == nil {
		logger = zap.NewNop()
	}
	caps := Capabilities{Backends: factory.Chain()}

	if r, err := wrapper.NewRasterizer(); err == nil {
		caps.Rasterizer = r
	} else {
		logger.Info("page rasterizer unavailable", zap.Error(err))
	}

	if ocrLanguage == "" {
		ocrLanguage = "eng"
	}
	if engine, err := ocr.NewTesseract(ocrLanguage); err == nil {
		caps.OCR = engine
	} else {
		logger.Info("OCR engine unavailable", zap.Error(err))
	}
	return caps
}

// Map flattens the capabilities into the metadata flags
func (c Capabilities) Map() map[string]bool {
	m := map[string]bool{
		CapPositionedText: false,
		CapPlainText:      false,
		CapVectorPaths:    false,
		CapImagePayloads:  false,
		CapRasterizer:     c.Rasterizer != nil,
		CapOCR:            c.OCR != nil,
	}
	for _, b := range c.Backends {
		bc := wrapper.GetBackendCapabilities(b.Type())
		m[CapPositionedText] = m[CapPositionedText] || bc.PositionedText
		m[CapPlainText] = m[CapPlainText] || bc.PlainText
		m[CapVectorPaths] = m[CapVectorPaths] || bc.VectorPaths
		m[CapImagePayloads] = m[CapImagePayloads] || bc.ImagePayloads
	}
	return m
}

// Report describes the capabilities for display
type Report struct {
	Backends   []string        `json:"backends"`
	OCREngine  string          `json:"ocr_engine,omitempty"`
	Rasterizer bool            `json:"rasterizer"`
	Flags      map[string]bool `json:"flags"`
}

// Report returns a serializable description of c
func (c Capabilities) Report() Report {
	r := Report{
		Backends:   make([]string, 0, len(c.Backends)),
		Rasterizer: c.Rasterizer != nil,
		Flags:      c.Map(),
	}
	for _, b := range c.Backends {
		r.Backends = append(r.Backends, string(b.Type()))
	}
	if c.OCR != nil {
		r.OCREngine = c.OCR.Name()
	}
	return r
}
