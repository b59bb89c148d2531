package mapper

import (
	"fmt"
	"strings"
)

// FieldMismatchError reports a server column a closed shape did not
// declare.
type FieldMismatchError struct {
	Column   string
	Declared []string
}

// Error implements the error interface.
func (e *FieldMismatchError) Error() string {
	return fmt.Sprintf("E_FIELD_MISMATCH: column %q not declared on closed shape (declared: %s)",
		e.Column, strings.Join(e.Declared, ", "))
}

// TypeMismatchError reports a value that cannot be coerced to the
// requested host type.
type TypeMismatchError struct {
	Field  string
	Value  interface{}
	Target string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("E_TYPE_MISMATCH: field %q value %v (%T) cannot be coerced to %s",
		e.Field, e.Value, e.Value, e.Target)
}
