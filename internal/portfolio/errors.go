package portfolio

import (
	"errors"
	"fmt"
)

// ErrMalformedField is matched by every FieldError.
var ErrMalformedField = errors.New("malformed position field")

// FieldError reports a position field whose value has the wrong type.
type FieldError struct {
	Index    int
	Field    string
	Expected string
	Value    interface{}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("position %d: field %q must be %s, got %T", e.Index, e.Field, e.Expected, e.Value)
}

func (e *FieldError) Unwrap() error {
	return ErrMalformedField
}
