package model

import "errors"

var (
	// ErrUnknownKind is returned when an analysis kind name is not recognized.
	ErrUnknownKind = errors.New("unknown analysis kind")

	// ErrEmptyBinary is returned when a profiling target has no binary path.
	ErrEmptyBinary = errors.New("target binary is required")

	// ErrInvalidEnv is returned when an environment override is not KEY=VALUE.
	ErrInvalidEnv = errors.New("invalid environment override: expected KEY=VALUE")
)
