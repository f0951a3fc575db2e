// Package service holds the account, credit and request lifecycle rules.
// Handlers call into it and translate the sentinel errors below into HTTP
// responses; repositories stay unaware of them.
package service

import (
	"errors"
	"fmt"
)

// Error taxonomy.  Concrete failures wrap one of these so callers can use
// errors.Is regardless of the detail message.
var (
	ErrValidation         = errors.New("validation failed")
	ErrAuth               = errors.New("authentication failed")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrConflict           = errors.New("conflict")
	ErrDependency         = errors.New("dependency unavailable")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
