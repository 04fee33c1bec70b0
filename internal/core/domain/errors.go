// internal/core/domain/errors.go
package domain

import "errors"

// Domain errors of the runner and the registry.
var (
	ErrUnknownModule   = errors.New("unknown module")
	ErrDuplicateModule = errors.New("module already registered")
	ErrInvalidModule   = errors.New("invalid module registration")

	// ErrNoInput is returned for a module that requires an input file when
	// none of its declared paths exist in the bundle.
	ErrNoInput = errors.New("no input file found")

	ErrModulePanic = errors.New("module panicked")
)
