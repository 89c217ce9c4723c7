package parser

import (
	"regexp"
	"strings"
)

// valgrindPrefix matches the "==pid==" and "--pid--" line prefixes.
var valgrindPrefix = regexp.MustCompile(`^(?:==|--)\d+(?:==|--) ?`)

// stripValgrind removes the valgrind prefix. ok is false for lines the
// target program printed itself.
func stripValgrind(s string) (string, bool) {
	loc := valgrindPrefix.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	return s[loc[1]:], true
}

// frameAddr matches the address part of a valgrind stack frame.
var frameAddr = regexp.MustCompile(`^0x[0-9A-Fa-f]+:\s*`)

// parseFrame returns the function and location of an "at"/"by" frame line.
func parseFrame(body string) (string, bool) {
	t := strings.TrimSpace(body)
	var rest string
	switch {
	case strings.HasPrefix(t, "at "):
		rest = t[3:]
	case strings.HasPrefix(t, "by "):
		rest = t[3:]
	default:
		return "", false
	}
	rest = frameAddr.ReplaceAllString(strings.TrimSpace(rest), "")
	if rest == "" {
		return "", false
	}
	return rest, true
}
