package wrapper

import (
	"errors"
	"fmt"

	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
)

// Backend opens PDF documents with one underlying parsing library
type Backend interface {
	Type() BackendType
	Open(data []byte) (Document, error)
}

// Document is an open PDF. Close must be called exactly once by the owner;
// later calls are no-ops.
type Document interface {
	PageCount() int
	Page(pageNum int) (Page, error)
	Metadata() Metadata
	Close() error
}

// Page exposes the raw material of one page. Coordinates returned by every
// method are page space with a top-left origin.
type Page interface {
	Number() int
	Size() geom.Size
	TextRuns() ([]TextRun, error)
	Paths() ([]Path, error)
	Images() ([]ImageRef, error)
	PlainText() (string, error)
}

// BackendType names the library behind a Backend
type BackendType string

const (
	BackendLedongthuc BackendType = "ledongthuc"
	BackendPDFCPU     BackendType = "pdfcpu"
)

// Metadata contains the document information dictionary and the
// encryption state
type Metadata struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Creator  string `json:"creator,omitempty"`
	Producer string `json:"producer,omitempty"`

	// Encrypted documents are opened with the empty user password.
	// Permissions is their raw P entry.
	Encrypted   bool  `json:"encrypted,omitempty"`
	Permissions int32 `json:"permissions,omitempty"`
}

// Style flags carried on text runs.
const (
	FlagItalic = 2
	FlagBold   = 16
)

// TextRun is one positioned glyph run as reported by the parser
type TextRun struct {
	Text     string
	Font     string
	FontSize float64
	Box      geom.Box
	Flags    int
}

func (r TextRun) Bold() bool   { return r.Flags&FlagBold != 0 }
func (r TextRun) Italic() bool { return r.Flags&FlagItalic != 0 }

// PathOpKind is a path construction operator
type PathOpKind int

const (
	OpMoveTo PathOpKind = iota
	OpLineTo
	OpCurveTo
	OpRect
	OpClose
)

// PathOp is one path construction step. OpRect carries two corner points,
// OpCurveTo carries the end point only.
type PathOp struct {
	Kind   PathOpKind
	Points []geom.Point
}

// Color is an RGB color with components in [0,1]
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Hex renders the color as #rrggbb
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", to255(c.R), to255(c.G), to255(c.B))
}

func to255(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 255
	}
	return int(v*255 + 0.5)
}

// Path is one painted path with its graphics state at paint time
type Path struct {
	Ops         []PathOp
	Stroke      bool
	Fill        bool
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
}

// ImageRef is an image XObject drawn on the page. Data holds the encoded
// image (jpeg, png or tiff) when the backend could extract it.
type ImageRef struct {
	Name   string
	Box    geom.Box
	Data   []byte
	Format string
	Width  int
	Height int
}

// WrapperError represents errors from PDF library wrappers
type WrapperError struct {
	Backend BackendType
	Op      string
	Err     error
}

func (e *WrapperError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *WrapperError) Unwrap() error {
	return e.Err
}

var (
	ErrDocumentClosed = errors.New("document is closed")
	ErrPageNotFound   = errors.New("page not found")
	ErrNotSupported   = errors.New("operation not supported by backend")
)
