package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxIDLength is the largest document id, in bytes, the API accepts
const MaxIDLength = 250

var nameRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]{0,127}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ValidateDocumentID checks that id can be stored as a document key: present,
// valid UTF-8, at most MaxIDLength bytes and free of control characters
func ValidateDocumentID(id string) error {
	if err := ValidateRequired("id", id); err != nil {
		return err
	}
	if err := ValidateMaxLength("id", id, MaxIDLength); err != nil {
		return err
	}
	if !utf8.ValidString(id) {
		return NewValidationError("id", "id must be valid UTF-8")
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return NewValidationError("id", "id must not contain control characters")
	}
	return nil
}

// ValidateName checks a design or view name
func ValidateName(field, name string) error {
	if err := ValidateRequired(field, name); err != nil {
		return err
	}
	if !nameRegex.MatchString(name) {
		return NewValidationError(field, "invalid "+field+" name format")
	}
	return nil
}

// ValidateRequired checks if a string field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, field+" is required")
	}
	return nil
}

// ValidateMaxLength validates maximum string length in bytes
func ValidateMaxLength(field, value string, maxLen int) error {
	if len(value) > maxLen {
		return NewValidationError(field, field+" too long")
	}
	return nil
}
