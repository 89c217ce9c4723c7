// Package parser turns raw analysis tool output into typed findings.
//
// There is one Parser per analysis kind. Parsers are tolerant: a record
// that can not be understood becomes a ParseWarning and parsing goes on.
// Only when a non-empty capture yields no record at all, and something was
// rejected or the expected report section is missing, does Parse return
// ErrNoRecords.
package parser
