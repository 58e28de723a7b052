package naming

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNamingInput is matched by every NamingInputError via errors.Is
var ErrNamingInput = errors.New("invalid naming input")

// NamingInputError is returned when a name cannot be generated from the given
// inputs: an unsupported category, a missing column list, a missing referred
// table, or a malformed template. It always indicates a caller bug.
type NamingInputError struct {
	Category Category
	Table    string
	Template string
	Reason   string
}

// Error implements the error interface
func (e *NamingInputError) Error() string {
	var b strings.Builder
	b.WriteString("naming")
	if e.Category != "" {
		b.WriteString(fmt.Sprintf(" [%s]", e.Category))
	}
	if e.Table != "" {
		b.WriteString(fmt.Sprintf(" table %s", e.Table))
	}
	if e.Template != "" {
		b.WriteString(fmt.Sprintf(" template %q", e.Template))
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Is lets errors.Is(err, ErrNamingInput) match any NamingInputError
func (e *NamingInputError) Is(target error) bool {
	return target == ErrNamingInput
}
