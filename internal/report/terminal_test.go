package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nao1215/perflens/internal/model"
)

func TestTerminalWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes title, rows and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewTerminalWriter(&buf).Write(newTestReport(model.KindSyscall))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"Syscall Analysis: /usr/local/bin/server --port 8080",
			"success",
			"write",
			"read",
			"Summary: Calls: 160",
			"Total time: 1.35ms",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Index(output, "write") > strings.Index(output, "read ") {
			t.Error("write should be listed before read")
		}
	})

	t.Run("no color outside a terminal", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTerminalWriter(&buf).Write(newTestReport(model.KindThread)); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "\x1b[") {
			t.Error("expected no ANSI escapes")
		}
	})

	t.Run("forced color", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTerminalWriter(&buf, WithColor(true)).Write(newTestReport(model.KindThread)); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\x1b[") {
			t.Error("expected ANSI escapes")
		}
	})

	t.Run("failed report shows error and diagnostics", func(t *testing.T) {
		t.Parallel()

		r := newTestReport(model.KindMemory)
		r.Status = model.StatusTimedOut
		r.Truncated = true
		r.Error = "deadline exceeded after 1s"
		r.Warnings = []model.ParseWarning{{Line: 7, Message: "loss record is not terminated; skipped"}}
		r.Anomalies = []model.Anomaly{{Code: model.AnomalyNegativeValue, Message: "bytes_lost clamped"}}

		var buf bytes.Buffer
		if _, err := NewTerminalWriter(&buf).Write(r); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		for _, want := range []string{
			"timed_out (partial output)",
			"Error:    deadline exceeded after 1s",
			"Warnings (1):",
			"line 7",
			"Anomalies (1):",
			"[negative_value]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("verbose adds run metadata", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewTerminalWriter(&buf, WithVerbose(true)).Write(newTestReport(model.KindCPU)); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Run ID:   0b9c1f2e-run") {
			t.Error("expected run id")
		}
		if !strings.Contains(buf.String(), "Ranked by total_pct, top 2 of 2") {
			t.Error("expected ranking line")
		}
	})

	t.Run("top-k cut is announced", func(t *testing.T) {
		t.Parallel()

		r := newTestReport(model.KindCache)
		r.TotalFindings = 5

		var buf bytes.Buffer
		if _, err := NewTerminalWriter(&buf).Write(r); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "(3 more not shown)") {
			t.Error("expected truncation note")
		}
	})
}

func TestTerminalWriterWriteAll(t *testing.T) {
	t.Parallel()

	reports := []*model.AnalysisReport{newTestReport(model.KindMemory), newTestReport(model.KindCache)}

	var buf bytes.Buffer
	if _, err := NewTerminalWriter(&buf).WriteAll(reports); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Memory Analysis", "Cache Analysis", "Overview", "make_buffer (buf.c:42)", "4.0 KiB"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestFormatMicros(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0µs"},
		{in: 3.75, want: "3.75µs"},
		{in: 1350, want: "1.35ms"},
		{in: 2e6, want: "2s"},
	}
	for _, tt := range tests {
		if got := FormatMicros(tt.in); got != tt.want {
			t.Errorf("FormatMicros(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	if got := Title(model.KindSyscall); got != "Syscall Analysis" {
		t.Errorf("Title() = %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	if got := truncateString("abcdefghij", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateString("µµµµµ", 2); got != "µµ" {
		t.Errorf("got %q", got)
	}
}
