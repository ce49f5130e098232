package commands

import (
	"errors"
	"fmt"
)

var (
	errMissingSchema = errors.New("--schema is required")
	errMissingType   = errors.New("--type is required")
)

type ambiguousTypeError struct{ name string }

func (e *ambiguousTypeError) Error() string {
	return fmt.Sprintf("type %q matches more than one declared type; use the qualified name", e.name)
}
