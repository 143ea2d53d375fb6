package wrapper

import (
	"fmt"
)

// BackendFactory creates backends and orders them into a fallback chain
type BackendFactory struct {
	config FactoryConfig
}

// FactoryConfig contains configuration options for the factory
type FactoryConfig struct {
	// PreferredBackend is tried first; the others follow as fallbacks.
	PreferredBackend BackendType `json:"preferred_backend"`

	// Disabled lists backends that must never be used
	Disabled []BackendType `json:"disabled,omitempty"`

	// ImagePayloads lets the native backend borrow pdfcpu for image bytes
	ImagePayloads bool `json:"image_payloads"`
}

// BackendCapabilities describes what a backend can contribute to a page
type BackendCapabilities struct {
	PositionedText bool `json:"positioned_text"`
	PlainText      bool `json:"plain_text"`
	VectorPaths    bool `json:"vector_paths"`
	ImagePlacement bool `json:"image_placement"`
	ImagePayloads  bool `json:"image_payloads"`
	Metadata       bool `json:"metadata"`
}

// DefaultFactoryConfig prefers the native backend with pdfcpu image payloads
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		PreferredBackend: BackendLedongthuc,
		ImagePayloads:    true,
	}
}

// NewBackendFactory creates a factory with the given configuration
func NewBackendFactory(config FactoryConfig) *BackendFactory {
	if config.PreferredBackend == "" {
		config.PreferredBackend = BackendLedongthuc
	}
	return &BackendFactory{config: config}
}

// Create instantiates a backend of the specified type
func (f *BackendFactory) Create(backendType BackendType) (Backend, error) {
	if f.disabled(backendType) {
		return nil, &WrapperError{Backend: backendType, Op: "create", Err: fmt.Errorf("backend %s is disabled", backendType)}
	}
	switch backendType {
	case BackendLedongthuc:
		if f.config.ImagePayloads && !f.disabled(BackendPDFCPU) {
			return NewLedongthucBackend(NewPDFCPUImageSource), nil
		}
		return NewLedongthucBackend(nil), nil
	case BackendPDFCPU:
		return NewPDFCPUBackend(), nil
	default:
		return nil, &WrapperError{
			Backend: backendType,
			Op:      "create",
			Err:     fmt.Errorf("unknown backend type: %s", backendType),
		}
	}
}

// Chain returns every enabled backend, preferred first
func (f *BackendFactory) Chain() []Backend {
	order := []BackendType{f.config.PreferredBackend}
	for _, t := range []BackendType{BackendLedongthuc, BackendPDFCPU} {
		if t != f.config.PreferredBackend {
			order = append(order, t)
		}
	}

	chain := make([]Backend, 0, len(order))
	for _, t := range order {
		if b, err := f.Create(t); err == nil {
			chain = append(chain, b)
		}
	}
	return chain
}

func (f *BackendFactory) disabled(t BackendType) bool {
	for _, d := range f.config.Disabled {
		if d == t {
			return true
		}
	}
	return false
}

// GetBackendCapabilities returns the capabilities of a backend type
func GetBackendCapabilities(backendType BackendType) BackendCapabilities {
	switch backendType {
	case BackendLedongthuc:
		return BackendCapabilities{
			PositionedText: true,
			PlainText:      true,
			VectorPaths:    true,
			ImagePlacement: true,
			ImagePayloads:  true,
			Metadata:       true,
		}
	case BackendPDFCPU:
		return BackendCapabilities{
			PlainText:     true,
			ImagePayloads: true,
			Metadata:      true,
		}
	default:
		return BackendCapabilities{}
	}
}
