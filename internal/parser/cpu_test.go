package parser

import (
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/perflens/internal/model"
)

const perfReport = `# To display the perf.data header info, please use --header/--header-only options.
#
# Total Lost Samples: 0
#
# Samples: 1K of event 'cpu-clock:pppH'
# Event count (approx.): 250,000,000
#
# Overhead       Samples  Shared Object      Symbol
# ........  ............  .................  ..........................
#
    45.00%           450  app                [.] compute
    30.00%           300  libc.so.6          [.] memcpy
    10.00%           100  app                [.] fib
     5.00%            50  app                [.] fib
     5.00%            50  [kernel.kallsyms]  [k] clear_page
`

const perfScript = `app  4242 [001] 100.000001:     250000 cpu-clock:pppH:
	    55d4c3a0b1c9 compute+0x19 (/usr/bin/app)
	    55d4c3a0b200 main+0x30 (/usr/bin/app)

app  4242 [001] 100.000002:     250000 cpu-clock:pppH:
	    55d4c3a0b1c9 compute+0x19 (/usr/bin/app)
	    55d4c3a0b200 main+0x30 (/usr/bin/app)

app  4242 [001] 100.000003:     250000 cpu-clock:pppH:
	    7f0000001000 memcpy+0x10 (/usr/lib/libc.so.6)
	    55d4c3a0b1c9 compute+0x40 (/usr/bin/app)
	    55d4c3a0b200 main+0x30 (/usr/bin/app)

app  4242 [001] 100.000004:     250000 cpu-clock:pppH:
	    55d4c3a0c000 fib+0x5 (/usr/bin/app)
	    55d4c3a0c000 fib+0x22 (/usr/bin/app)
	    55d4c3a0b200 main+0x44 (/usr/bin/app)
`

func cpuCapture() model.RawCapture {
	var c model.RawCapture
	c.SetArtifact(model.ArtifactPerfReport, []byte(perfReport))
	c.SetArtifact(model.ArtifactPerfScript, []byte(perfScript))
	return c
}

func TestCPUParser(t *testing.T) {
	t.Parallel()

	res, err := CPUParser{}.Parse(cpuCapture())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	// Recursive fib rows collapse into one hotspot.
	if len(res.Findings) != 4 {
		t.Fatalf("expected 4 findings, got %d", len(res.Findings))
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	compute := res.Findings[0].Hotspot
	if compute.Symbol != "compute" || compute.Module != "app" {
		t.Errorf("first hotspot = %s in %s", compute.Symbol, compute.Module)
	}
	if !near(compute.SelfPct, 45) || !near(compute.TotalPct, 45) || compute.Samples != 450 {
		t.Errorf("compute = %+v", compute)
	}
	if !slices.Equal(compute.CallStack, []string{"main", "compute"}) {
		t.Errorf("compute call stack = %v", compute.CallStack)
	}

	fib := res.Findings[2].Hotspot
	if fib.Symbol != "fib" || !near(fib.SelfPct, 15) || fib.Samples != 150 {
		t.Errorf("fib = %+v", fib)
	}
	if !slices.Equal(fib.CallStack, []string{"main", "fib", "fib"}) {
		t.Errorf("fib call stack = %v", fib.CallStack)
	}

	kernel := res.Findings[3].Hotspot
	if kernel.Module != "[kernel.kallsyms]" || len(kernel.CallStack) != 0 {
		t.Errorf("kernel hotspot = %+v", kernel)
	}

	if res.Summary["event_count"] != 250000000 {
		t.Errorf("event_count = %v", res.Summary["event_count"])
	}
	if res.Summary["samples"] != 4 {
		t.Errorf("samples = %v, want 4", res.Summary["samples"])
	}
	if len(res.Stacks) != 3 {
		t.Errorf("expected 3 stacks, got %d", len(res.Stacks))
	}
}

func TestCPUParserChildrenColumns(t *testing.T) {
	t.Parallel()

	report := "    80.00%     5.00%  app  [.] main\n    60.00%    60.00%  app  [.] compute\n"
	res, err := CPUParser{}.Parse(model.RawCapture{Stdout: []byte(report)})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(res.Findings))
	}
	main := res.Findings[0].Hotspot
	if !near(main.TotalPct, 80) || !near(main.SelfPct, 5) {
		t.Errorf("main total/self = %v/%v, want 80/5", main.TotalPct, main.SelfPct)
	}
}

func TestCPUParserFromStacksOnly(t *testing.T) {
	t.Parallel()

	var c model.RawCapture
	c.SetArtifact(model.ArtifactPerfScript, []byte(perfScript))

	res, err := CPUParser{}.Parse(c)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(res.Findings))
	}

	bySymbol := map[string]*model.CPUHotspot{}
	for _, f := range res.Findings {
		bySymbol[f.Hotspot.Symbol] = f.Hotspot
	}
	if got := bySymbol["compute"].SelfPct; !near(got, 50) {
		t.Errorf("compute self = %v, want 50", got)
	}
	if got := bySymbol["memcpy"]; !near(got.SelfPct, 25) || got.Module != "libc.so.6" {
		t.Errorf("memcpy = %+v", got)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", res.Warnings)
	}
}

func TestCPUParserMalformedRow(t *testing.T) {
	t.Parallel()

	report := "    45.00%   450  app  [.] compute\n    12.5%  garbage\n"
	res, err := CPUParser{}.Parse(model.RawCapture{Stdout: []byte(report)})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(res.Findings))
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Line != 2 {
		t.Fatalf("expected one warning on line 2, got %v", res.Warnings)
	}

	_, err = CPUParser{}.Parse(model.RawCapture{Stdout: []byte("    12.5%  garbage\n")})
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("Parse() error = %v, want ErrNoRecords", err)
	}
}

func TestCollapseStacks(t *testing.T) {
	t.Parallel()

	got := CollapseStacks([]byte(perfScript))
	if got.Samples != 4 {
		t.Errorf("samples = %d, want 4", got.Samples)
	}
	want := "app;main;compute 2\napp;main;compute;memcpy 1\napp;main;fib;fib 1\n"
	if folded := FoldedLines(got.Stacks); folded != want {
		t.Errorf("FoldedLines() = %q, want %q", folded, want)
	}
	if got.Modules["main"] != "app" {
		t.Errorf("module of main = %q, want app", got.Modules["main"])
	}
	if len(got.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", got.Warnings)
	}
}

func TestCleanSymbol(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"compute+0x19":        "compute",
		"ns::f(int;char)+0x1": "ns::f(int:char)",
		" ":                   "[unknown]",
	}
	for in, want := range tests {
		if got := cleanSymbol(in); got != want {
			t.Errorf("cleanSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
