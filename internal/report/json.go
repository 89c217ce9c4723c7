package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nao1215/perflens/internal/model"
)

// ErrNotAReport is returned by ReadJSON for JSON that holds no report.
var ErrNotAReport = errors.New("input is not a perflens report")

// JSONWriter outputs reports in JSON format.
// A single report is written as an object, several as an array.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one report as a JSON object.
func (w *JSONWriter) Write(report *model.AnalysisReport) (int, error) {
	return w.writeJSON(report)
}

// WriteAll outputs the reports as a JSON array.
func (w *JSONWriter) WriteAll(reports []*model.AnalysisReport) (int, error) {
	if reports == nil {
		reports = []*model.AnalysisReport{}
	}
	return w.writeJSON(reports)
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// ReadJSON decodes reports written by JSONWriter. Both the single object
// and the array form are accepted.
func ReadJSON(r io.Reader) ([]*model.AnalysisReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNotAReport
	}

	var reports []*model.AnalysisReport
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &reports); err != nil {
			return nil, fmt.Errorf("decode report array: %w", err)
		}
	case '{':
		var report model.AnalysisReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = []*model.AnalysisReport{&report}
	default:
		return nil, ErrNotAReport
	}

	for i, rep := range reports {
		if rep == nil || !rep.Kind.Valid() {
			return nil, fmt.Errorf("%w: entry %d has no valid kind", ErrNotAReport, i)
		}
	}
	return reports, nil
}

// ReadJSONFile reads reports from a JSON file.
func ReadJSONFile(path string) ([]*model.AnalysisReport, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reports, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reports, nil
}
