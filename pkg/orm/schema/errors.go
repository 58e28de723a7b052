package schema

import (
	"errors"
	"strings"
)

// ErrSchemaConflict is matched by every SchemaConflictError via errors.Is
var ErrSchemaConflict = errors.New("schema conflict")

// SchemaConflictError is returned when a table cannot be registered: its name
// is already taken, one of its constraint names collides with an existing
// one, or the definition is structurally invalid. It is a programming error
// in the data model and must fail process startup.
type SchemaConflictError struct {
	Table      string
	Column     string
	Constraint string
	Reason     string
	Err        error
}

// Error implements the error interface
func (e *SchemaConflictError) Error() string {
	var b strings.Builder
	b.WriteString("schema conflict")

	if e.Table != "" {
		b.WriteString(": table ")
		b.WriteString(e.Table)
	}
	if e.Column != "" {
		b.WriteString(": column ")
		b.WriteString(e.Column)
	}
	if e.Constraint != "" {
		b.WriteString(": constraint ")
		b.WriteString(e.Constraint)
	}

	b.WriteString(": ")
	b.WriteString(e.Reason)

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Is lets errors.Is(err, ErrSchemaConflict) match any SchemaConflictError
func (e *SchemaConflictError) Is(target error) bool {
	return target == ErrSchemaConflict
}

// Unwrap returns the underlying cause, such as a naming input error
func (e *SchemaConflictError) Unwrap() error {
	return e.Err
}

func conflict(table, reason string) *SchemaConflictError {
	return &SchemaConflictError{Table: table, Reason: reason}
}

func columnConflict(table, column, reason string) *SchemaConflictError {
	return &SchemaConflictError{Table: table, Column: column, Reason: reason}
}
