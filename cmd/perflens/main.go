// Package main provides the entry point for the perflens CLI.
//
// perflens runs a native binary under an external analysis tool (valgrind,
// perf or strace), parses the tool's output and reports ranked findings for
// memory leaks, CPU hotspots, cache misses, syscall overhead and thread
// contention.
//
// Usage:
//
//	perflens check
//	perflens analyze memory ./app -a --flag
//	perflens analyze all -k cpu,syscall ./app
//
// See --help for all available options.
package main

// main is the entry point for perflens.
func main() {
	Execute()
}
