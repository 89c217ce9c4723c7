package parser

import (
	"errors"
	"testing"

	"github.com/nao1215/perflens/internal/model"
)

func TestSyscallParserCompactRows(t *testing.T) {
	t.Parallel()

	res, err := SyscallParser{}.Parse(model.RawCapture{Stderr: []byte("read 120 450.0 3.75\nwrite 40 900.0 22.5\n")})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(res.Findings))
	}

	read := res.Findings[0].Syscall
	if read.Name != "read" || read.Count != 120 {
		t.Errorf("first row = %+v, want read x120", read)
	}
	if !near(read.TotalTimeUS, 450) || !near(read.AvgTimeUS, 3.75) {
		t.Errorf("read times = %v/%v, want 450/3.75", read.TotalTimeUS, read.AvgTimeUS)
	}

	write := res.Findings[1].Syscall
	if write.Name != "write" || !near(write.TotalTimeUS, 900) {
		t.Errorf("second row = %+v, want write 900us", write)
	}
	if res.Summary["total_calls"] != 160 {
		t.Errorf("total_calls = %v, want 160", res.Summary["total_calls"])
	}
}

const straceSummary = `strace: Process 4242 attached
% time     seconds  usecs/call     calls    errors syscall
------ ----------- ----------- --------- --------- ----------------
 66.67    0.000900          22        40         2 write
 33.33    0.000450           3       120           read
------ ----------- ----------- --------- --------- ----------------
100.00    0.001350           8       160         2 total
`

func TestSyscallParserStraceTable(t *testing.T) {
	t.Parallel()

	res, err := SyscallParser{}.Parse(model.RawCapture{Stderr: []byte(straceSummary)})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(res.Findings))
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	write := res.Findings[0].Syscall
	if write.Name != "write" || write.Count != 40 || write.Errors != 2 {
		t.Errorf("write row = %+v", write)
	}
	if !near(write.TotalTimeUS, 900) || !near(write.AvgTimeUS, 22.5) {
		t.Errorf("write times = %v/%v, want 900/22.5", write.TotalTimeUS, write.AvgTimeUS)
	}

	read := res.Findings[1].Syscall
	if read.Errors != 0 || !near(read.AvgTimeUS, 3.75) {
		t.Errorf("read row = %+v", read)
	}

	if !near(res.Summary["total_time_us"], 1350) {
		t.Errorf("total_time_us = %v, want 1350", res.Summary["total_time_us"])
	}
	if res.Summary["total_errors"] != 2 {
		t.Errorf("total_errors = %v, want 2", res.Summary["total_errors"])
	}
}

func TestSyscallParserIgnoresTargetOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		capture model.RawCapture
	}{
		{
			name: "target stdout next to the table",
			capture: model.RawCapture{
				Stdout: []byte("Result 42 10 5\nProcessing 3 files now\n"),
				Stderr: []byte(straceSummary),
			},
		},
		{
			name: "target stderr around the table",
			capture: model.RawCapture{
				Stderr: []byte("Result 42 10 5\nProcessing 3 files now\n" + straceSummary + "done 1 2 3\n"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := SyscallParser{}.Parse(tt.capture)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(res.Findings) != 2 {
				t.Fatalf("expected 2 findings, got %d", len(res.Findings))
			}
			for _, f := range res.Findings {
				if f.Syscall.Name != "write" && f.Syscall.Name != "read" {
					t.Errorf("target output parsed as syscall: %+v", f.Syscall)
				}
			}
			if len(res.Warnings) != 0 {
				t.Errorf("unexpected warnings: %v", res.Warnings)
			}
		})
	}
}

func TestSyscallParserBadRow(t *testing.T) {
	t.Parallel()

	res, err := SyscallParser{}.Parse(model.RawCapture{Stderr: []byte("read 120 450.0 3.75\nwrite 4x0 900.0\n")})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(res.Findings))
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", res.Warnings)
	}
	if res.Warnings[0].Line != 2 {
		t.Errorf("warning line = %d, want 2", res.Warnings[0].Line)
	}
}

func TestSyscallParserNoRecords(t *testing.T) {
	t.Parallel()

	if _, err := (SyscallParser{}).Parse(model.RawCapture{Stderr: []byte("open 1x 2 3\n")}); !errors.Is(err, ErrNoRecords) {
		t.Errorf("Parse() error = %v, want ErrNoRecords", err)
	}

	// Only target output and no strace summary at all.
	if _, err := (SyscallParser{}).Parse(model.RawCapture{Stdout: []byte("read 120 450.0 3.75\n")}); !errors.Is(err, ErrNoRecords) {
		t.Errorf("Parse() error = %v, want ErrNoRecords", err)
	}

	res, err := SyscallParser{}.Parse(model.RawCapture{Stderr: []byte("% time     seconds  usecs/call     calls    errors syscall\n")})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(res.Findings))
	}
}
