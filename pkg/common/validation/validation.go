// Package validation provides common validation utilities for the executors library.
package validation

import (
	"fmt"
	"time"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return gferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNotNil validates that an interface value is not nil.
// Returns a ValidationError if the value is nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil {
		return gferrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return gferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidateAtLeast validates that value is not below min.
// Returns a ValidationError naming the lower bound otherwise.
func ValidateAtLeast(module, field string, value, min int) error {
	if value < min {
		return gferrors.NewValidationError(module, field, value, fmt.Sprintf("must be at least %d", min)).
			WithHint(fmt.Sprintf("use %d or a larger value", min))
	}
	return nil
}

// ValidateDuration validates that a duration is not negative.
func ValidateDuration(module, field string, value time.Duration) error {
	if value < 0 {
		return gferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 to disable or a positive duration")
	}
	return nil
}
