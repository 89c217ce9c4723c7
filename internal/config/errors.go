package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// The CLI maps every one of them to the invalid-arguments exit code.
var (
	// ErrNoBinary is returned when no target binary is given.
	ErrNoBinary = errors.New("no target binary specified")

	// ErrNoKinds is returned when no analysis kind is requested.
	ErrNoKinds = errors.New("no analysis kind specified")

	// ErrUnknownKind is returned for an analysis kind that does not exist.
	ErrUnknownKind = errors.New("unknown analysis kind: must be one of memory, cpu, cache, syscall, thread")

	// ErrDuplicateKind is returned when the same kind is requested twice.
	ErrDuplicateKind = errors.New("duplicate analysis kind")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDuration is returned when the CPU sampling window is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")

	// ErrInvalidFrequency is returned when the sampling frequency is not positive.
	ErrInvalidFrequency = errors.New("invalid frequency: must be positive")

	// ErrInvalidGrace is returned when the grace period is negative.
	ErrInvalidGrace = errors.New("invalid grace period: must be non-negative")

	// ErrInvalidTopK is returned when the Top-K limit is negative.
	ErrInvalidTopK = errors.New("invalid top: must be non-negative")

	// ErrInvalidJobs is returned when the concurrency limit is negative.
	ErrInvalidJobs = errors.New("invalid jobs: must be non-negative")

	// ErrInvalidCaptureSize is returned when the capture buffer size is not positive.
	ErrInvalidCaptureSize = errors.New("invalid capture size: must be positive")

	// ErrCPUOnlyOutput is returned when a flame graph or pprof export is
	// requested without CPU analysis.
	ErrCPUOnlyOutput = errors.New("--output and --pprof require cpu analysis")
)
