package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// PDFError is a typed extraction failure with page and component context.
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Component   string    `json:"component,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	FilePath    string    `json:"file_path,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Cause       error     `json:"-"`
}

// ErrorType represents the failure categories of the extraction pipeline
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeBackendUnavailable: a PDF parser, OCR engine or rasterizer is missing.
	ErrorTypeBackendUnavailable
	// ErrorTypePageProcessing: one page failed and was replaced by a placeholder.
	ErrorTypePageProcessing
	// ErrorTypeElementExtraction: one image, table or shape was skipped.
	ErrorTypeElementExtraction
	// ErrorTypeTotalExtractionFailure: every backend failed for the document.
	ErrorTypeTotalExtractionFailure
	ErrorTypeInvalidInput
	ErrorTypeTimeout
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityFatal
)

// Error implements the error interface
func (e *PDFError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type.String())
	if e.PageNumber > 0 {
		prefix += fmt.Sprintf(" page %d:", e.PageNumber)
	}
	if e.Component != "" {
		prefix += " " + e.Component + ":"
	}
	return prefix + " " + e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// Is matches any *PDFError of the same type, so sentinel values work with errors.Is
func (e *PDFError) Is(target error) bool {
	t, ok := target.(*PDFError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeBackendUnavailable:
		return "BACKEND_UNAVAILABLE"
	case ErrorTypePageProcessing:
		return "PAGE_PROCESSING_ERROR"
	case ErrorTypeElementExtraction:
		return "ELEMENT_EXTRACTION_ERROR"
	case ErrorTypeTotalExtractionFailure:
		return "TOTAL_EXTRACTION_FAILURE"
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeBackendUnavailable, ErrorTypeElementExtraction:
		return SeverityWarning
	case ErrorTypePageProcessing, ErrorTypeTimeout:
		return SeverityError
	case ErrorTypeInvalidInput:
		return SeverityCritical
	case ErrorTypeTotalExtractionFailure:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether extraction continues after this kind of failure
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeBackendUnavailable, ErrorTypePageProcessing, ErrorTypeElementExtraction, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is checks.
var (
	ErrBackendUnavailable     = &PDFError{Type: ErrorTypeBackendUnavailable}
	ErrPageProcessing         = &PDFError{Type: ErrorTypePageProcessing}
	ErrElementExtraction      = &PDFError{Type: ErrorTypeElementExtraction}
	ErrTotalExtractionFailure = &PDFError{Type: ErrorTypeTotalExtractionFailure}
	ErrInvalidInput           = &PDFError{Type: ErrorTypeInvalidInput}
	ErrTimeout                = &PDFError{Type: ErrorTypeTimeout}
)

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// WrapError wraps a standard error as a PDFError. An error that already is a
// *PDFError keeps its own type.
func WrapError(errorType ErrorType, err error) *PDFError {
	if err == nil {
		return nil
	}
	var existing *PDFError
	if stderrors.As(err, &existing) {
		return existing
	}
	e := NewPDFError(errorType, err.Error())
	e.Cause = err
	return e
}

// IsType reports whether err carries the given failure category
func IsType(err error, errorType ErrorType) bool {
	var pe *PDFError
	if stderrors.As(err, &pe) {
		return pe.Type == errorType
	}
	return false
}

// WithComponent names the pipeline stage that failed
func (e *PDFError) WithComponent(component string) *PDFError {
	e.Component = component
	return e
}

// WithFile adds file path information to an existing PDFError
func (e *PDFError) WithFile(filePath string) *PDFError {
	e.FilePath = filePath
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// GetSeverity returns the severity of this specific error
func (e *PDFError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsCritical returns true if this error is critical or fatal
func (e *PDFError) IsCritical() bool {
	severity := e.GetSeverity()
	return severity == SeverityCritical || severity == SeverityFatal
}

// ErrorCollection gathers failures from concurrently processed pages
type ErrorCollection struct {
	mu       sync.Mutex
	Errors   []*PDFError `json:"errors"`
	Warnings []*PDFError `json:"warnings"`
	FilePath string      `json:"file_path,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(filePath string) *ErrorCollection {
	return &ErrorCollection{
		Errors:   make([]*PDFError, 0),
		Warnings: make([]*PDFError, 0),
		FilePath: filePath,
	}
}

// Add adds an error to the appropriate collection based on severity
func (ec *ErrorCollection) Add(err *PDFError) {
	if err == nil {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if err.FilePath == "" && ec.FilePath != "" {
		err.FilePath = ec.FilePath
	}

	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.Warnings = append(ec.Warnings, err)
	} else {
		ec.Errors = append(ec.Errors, err)
	}
}

// HasCriticalErrors returns true if any critical errors exist
func (ec *ErrorCollection) HasCriticalErrors() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, err := range ec.Errors {
		if err.IsCritical() {
			return true
		}
	}
	return false
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errors, warnings int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.Errors), len(ec.Warnings)
}

// Strings renders every recorded failure as "page N: component: message",
// ordered by page so output does not depend on worker scheduling.
func (ec *ErrorCollection) Strings() []string {
	ec.mu.Lock()
	all := make([]*PDFError, 0, len(ec.Errors)+len(ec.Warnings))
	all = append(all, ec.Errors...)
	all = append(all, ec.Warnings...)
	ec.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PageNumber < all[j].PageNumber
	})

	out := make([]string, 0, len(all))
	for _, e := range all {
		var s string
		if e.PageNumber > 0 {
			s = fmt.Sprintf("page %d: ", e.PageNumber)
		}
		if e.Component != "" {
			s += e.Component + ": "
		}
		out = append(out, s+e.Message)
	}
	return out
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}

	summary := fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)

	if ec.HasCriticalErrors() {
		summary += " (including critical errors)"
	}

	return summary
}
