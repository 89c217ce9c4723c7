// Package report renders canonical analysis reports.
//
// Writers project an AnalysisReport into one presentation:
//   - TerminalWriter: ranked tables for the terminal
//   - JSONWriter: the full report, readable again with ReadJSON
//   - MarkdownWriter: GitHub-flavored Markdown with a distribution chart
//
// CPU reports additionally export their stack samples as a flame graph SVG
// (through the external flamegraph.pl) and as a pprof profile. Renderer
// drives every requested output of one run and records each output's
// result separately.
package report
