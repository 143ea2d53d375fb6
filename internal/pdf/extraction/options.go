package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/a3tai/faithful-pdf/internal/pdf/ocr"
	"github.com/a3tai/faithful-pdf/internal/pdf/render"
	"github.com/a3tai/faithful-pdf/internal/pdf/tables"
	"github.com/a3tai/faithful-pdf/internal/pdf/text"
	"github.com/a3tai/faithful-pdf/internal/pdf/vector"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// Default limits
const (
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultPageTimeout = 45 * time.Second
	DefaultOCRDPI      = 300
	DefaultMinNative   = 30
)

// Options tunes every stage of the pipeline. All thresholds are
// configuration; none is a hard invariant.
type Options struct {
	Vector vector.Config   `json:"vector"`
	Join   text.JoinConfig `json:"join"`
	Tables tables.Config   `json:"tables"`

	OCREnabled bool       `json:"ocr_enabled"`
	OCR        ocr.Config `json:"ocr"`
	// OCRDPI is the rasterization resolution of scanned pages.
	OCRDPI float64 `json:"ocr_dpi"`
	// OCRMinNativeChars is the native character count below which a page
	// is read with OCR.
	OCRMinNativeChars int `json:"ocr_min_native_chars"`

	Consensus bool           `json:"consensus"`
	Render    render.Options `json:"render"`

	Backends wrapper.FactoryConfig `json:"backends"`

	// PageTimeout bounds each page; an overrun page becomes a placeholder.
	PageTimeout time.Duration `json:"-"`
	// Workers is the number of pages processed at once; 0 uses NumCPU.
	Workers     int    `json:"-"`
	MaxFileSize int64  `json:"-"`
	PDFDir      string `json:"-"`
}

// DefaultOptions returns the standard pipeline settings
func DefaultOptions() Options {
	return Options{
		Vector:            vector.DefaultConfig(),
		Join:              text.DefaultJoinConfig(),
		Tables:            tables.DefaultConfig(),
		OCREnabled:        true,
		OCR:               ocr.DefaultConfig(),
		OCRDPI:            DefaultOCRDPI,
		OCRMinNativeChars: DefaultMinNative,
		Render:            render.DefaultOptions(),
		Backends:          wrapper.DefaultFactoryConfig(),
		PageTimeout:       DefaultPageTimeout,
		Workers:           1,
		MaxFileSize:       DefaultMaxFileSize,
	}
}

// Fingerprint identifies the settings that change the result. Two runs
// with equal fingerprints over the same bytes produce the same output.
func (o Options) Fingerprint() string {
	data, err := json.Marshal(o)
	if err != nil {
		return "unversioned"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
