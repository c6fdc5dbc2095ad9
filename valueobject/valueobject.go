// Package valueobject holds the validation shared by the domain's
// identifier and name value objects.
package valueobject

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is returned when a value object is constructed from an invalid primitive
var ErrValidation = errors.New("validation failed")

// NotBlank fails with ErrValidation if s is empty or consists of whitespace only
func NotBlank(kind, s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidation, kind)
	}

	return nil
}
