package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a wallet file does not exist.
	ErrNotFound = errors.New("wallet file not found")

	// ErrInvalidArgument is returned for non-positive counts and malformed record sets.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrKeyMismatch is returned when a private key does not derive the stored address.
	ErrKeyMismatch = errors.New("private key does not match address")
)

// ParseError reports a data row that cannot be turned into a Record.
type ParseError struct {
	Path   string
	Line   int
	Fields int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: line %d has %d field(s)", e.Path, e.Line, e.Fields)
}

// RotationError wraps the failure of one file-system step of a rotation.
// Step is 1 (archive old), 2 (promote new) or 3 (write fresh).
type RotationError struct {
	Step int
	Op   string
	Path string
	Err  error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("rotation step %d (%s %s): %v", e.Step, e.Op, e.Path, e.Err)
}

func (e *RotationError) Unwrap() error { return e.Err }
