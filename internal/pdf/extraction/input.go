package extraction

import (
	"fmt"
	"os"
	"strings"

	pdferrors "github.com/a3tai/faithful-pdf/internal/pdf/errors"
	"github.com/a3tai/faithful-pdf/internal/pdf/security"
)

// InputValidator checks a path before the engine reads it
type InputValidator struct {
	maxFileSize int64
	root        *security.Root
}

// NewInputValidator creates a validator. When dir is set, paths must lie
// inside it.
func NewInputValidator(maxFileSize int64, dir string) (*InputValidator, error) {
	v := &InputValidator{maxFileSize: maxFileSize}
	if dir != "" {
		r, err := security.NewRoot(dir)
		if err != nil {
			return nil, err
		}
		v.root = r
	}
	return v, nil
}

// Validate returns an InvalidInput error describing why path cannot be
// extracted, or nil.
func (v *InputValidator) Validate(path string) error {
	if err := v.validate(path); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeInvalidInput, err).
			WithFile(path).WithComponent("input")
	}
	return nil
}

func (v *InputValidator) validate(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if v.root != nil {
		if err := v.root.Check(path); err != nil {
			return err
		}
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	if v.maxFileSize > 0 && info.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), v.maxFileSize)
	}
	return nil
}
