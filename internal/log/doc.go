// Package log provides the perflens logger: log/slog with a handler that
// masks sensitive attribute values before they reach the output.
//
// Target environment overrides are the main source of secrets in perflens
// logs (API tokens, database passwords passed to the profiled program), so
// the handler masks attributes whose key looks like a credential and values
// that look like tokens or private keys. Masking applies in verbose mode too.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("spawning tool", "tool", "valgrind", log.EnvAttr(target.Env))
//	slog.SetDefault(logger)
package log
