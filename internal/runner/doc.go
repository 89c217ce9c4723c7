// Package runner executes external analysis tools under a deadline.
//
// Each tool is a capability-typed Tool variant that knows how to build its
// command line for a ProfilingTarget. Runner.Run resolves the executable,
// spawns it in its own process group, drains stdout and stderr into bounded
// buffers, and on deadline or cancellation signals the whole group, waits
// for the grace period and finally kills it. The outcome is classified into
// a model.RunStatus.
//
// The package holds no shared mutable state; Run may be called from many
// goroutines at once.
package runner
