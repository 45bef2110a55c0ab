package ledger

import (
	"fmt"
	"strings"
)

// EmptyCartError rejects a finalize attempt on a cart with no lines.
type EmptyCartError struct{}

func (EmptyCartError) Error() string {
	return "cart is empty"
}

// FieldError names one missing or malformed customer-info field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects a finalize attempt with per-field detail.
type ValidationError struct {
	Fields []FieldError
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}
