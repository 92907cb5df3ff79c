package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrForbidden        = errors.New("forbidden")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Validation error codes.
const (
	CodeMissingRequiredField = "missing_required_field"
	CodeDuplicateTitleField  = "duplicate_title_field"
	CodeImmutableField       = "immutable_field"
)

// FieldError describes one validation problem on one field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors collects every validation problem found in a
// request, so callers can report all of them in one response.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Code)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func missingRequired(field string) FieldError {
	return FieldError{
		Field:   field,
		Code:    CodeMissingRequiredField,
		Message: fmt.Sprintf("field %q is required", field),
	}
}
