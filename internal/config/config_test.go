package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/perflens/internal/model"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default timeouts are 300s except thread", func(t *testing.T) {
		t.Parallel()
		for _, k := range []model.Kind{model.KindMemory, model.KindCache, model.KindSyscall} {
			if got := cfg.Timeout(k); got != 300*time.Second {
				t.Errorf("expected %s timeout 300s, got %v", k, got)
			}
		}
		if got := cfg.Timeout(model.KindThread); got != 600*time.Second {
			t.Errorf("expected thread timeout 600s, got %v", got)
		}
	})

	t.Run("cpu timeout is the sampling duration", func(t *testing.T) {
		t.Parallel()
		if got := cfg.Timeout(model.KindCPU); got != 30*time.Second {
			t.Errorf("expected cpu window 30s, got %v", got)
		}
	})

	t.Run("default Frequency is 99", func(t *testing.T) {
		t.Parallel()
		if cfg.Frequency != 99 {
			t.Errorf("expected Frequency 99, got %d", cfg.Frequency)
		}
	})

	t.Run("default TopK is 10", func(t *testing.T) {
		t.Parallel()
		if cfg.TopK != 10 {
			t.Errorf("expected TopK 10, got %d", cfg.TopK)
		}
	})

	t.Run("default Grace is 3 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Grace != 3*time.Second {
			t.Errorf("expected Grace 3s, got %v", cfg.Grace)
		}
	})

	t.Run("scratch root lives in the XDG cache dir", func(t *testing.T) {
		t.Parallel()
		if filepath.Dir(cfg.ScratchRoot) != XDGCacheDir() {
			t.Errorf("expected scratch root under %s, got %s", XDGCacheDir(), cfg.ScratchRoot)
		}
	})
}

// TestConfigValidate tests configuration validation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Binary = "/bin/true"
		cfg.Kinds = []model.Kind{model.KindMemory}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid config", mutate: func(_ *Config) {}, wantErr: nil},
		{name: "missing binary", mutate: func(c *Config) { c.Binary = "" }, wantErr: ErrNoBinary},
		{name: "no kinds", mutate: func(c *Config) { c.Kinds = nil }, wantErr: ErrNoKinds},
		{name: "unknown kind", mutate: func(c *Config) { c.Kinds = []model.Kind{"gpu"} }, wantErr: ErrUnknownKind},
		{
			name:    "duplicate kind",
			mutate:  func(c *Config) { c.Kinds = []model.Kind{model.KindCPU, model.KindCPU} },
			wantErr: ErrDuplicateKind,
		},
		{name: "zero timeout", mutate: func(c *Config) { c.SetTimeout(0) }, wantErr: ErrInvalidTimeout},
		{
			name: "zero cpu duration",
			mutate: func(c *Config) {
				c.Kinds = []model.Kind{model.KindCPU}
				c.Duration = 0
			},
			wantErr: ErrInvalidDuration,
		},
		{
			name: "zero cpu frequency",
			mutate: func(c *Config) {
				c.Kinds = []model.Kind{model.KindCPU}
				c.Frequency = 0
			},
			wantErr: ErrInvalidFrequency,
		},
		{name: "negative grace", mutate: func(c *Config) { c.Grace = -time.Second }, wantErr: ErrInvalidGrace},
		{name: "negative top", mutate: func(c *Config) { c.TopK = -1 }, wantErr: ErrInvalidTopK},
		{name: "negative jobs", mutate: func(c *Config) { c.Jobs = -1 }, wantErr: ErrInvalidJobs},
		{name: "zero capture size", mutate: func(c *Config) { c.MaxCaptureBytes = 0 }, wantErr: ErrInvalidCaptureSize},
		{name: "svg without cpu", mutate: func(c *Config) { c.SVGPath = "out.svg" }, wantErr: ErrCPUOnlyOutput},
		{name: "pprof without cpu", mutate: func(c *Config) { c.PprofPath = "cpu.pb.gz" }, wantErr: ErrCPUOnlyOutput},
		{
			name: "svg with cpu",
			mutate: func(c *Config) {
				c.Kinds = []model.Kind{model.KindCPU, model.KindMemory}
				c.SVGPath = "out.svg"
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestRunConfigFor tests the derivation of per-worker settings.
func TestRunConfigFor(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Binary = "/bin/true"
	cfg.ToolPaths[ToolPerf] = "/opt/perf"
	cfg.KeepScratch = true

	t.Run("cpu uses the sampling duration", func(t *testing.T) {
		t.Parallel()
		rc := cfg.RunConfigFor(model.KindCPU)
		if rc.Timeout != DefaultDuration {
			t.Errorf("expected %v, got %v", DefaultDuration, rc.Timeout)
		}
		if rc.Frequency != DefaultFrequency {
			t.Errorf("expected frequency %d, got %d", DefaultFrequency, rc.Frequency)
		}
	})

	t.Run("thread uses the longer timeout", func(t *testing.T) {
		t.Parallel()
		rc := cfg.RunConfigFor(model.KindThread)
		if rc.Timeout != DefaultThreadTimeout {
			t.Errorf("expected %v, got %v", DefaultThreadTimeout, rc.Timeout)
		}
		if !rc.KeepScratch {
			t.Error("expected KeepScratch to be propagated")
		}
	})

	t.Run("tool paths are copied", func(t *testing.T) {
		t.Parallel()
		rc := cfg.RunConfigFor(model.KindCPU)
		if rc.ToolPath(ToolPerf) != "/opt/perf" {
			t.Errorf("expected /opt/perf, got %s", rc.ToolPath(ToolPerf))
		}
		if rc.ToolPath(ToolStrace) != ToolStrace {
			t.Errorf("expected bare strace name, got %s", rc.ToolPath(ToolStrace))
		}
		rc.ToolPaths[ToolPerf] = "/tmp/other"
		if cfg.ToolPaths[ToolPerf] != "/opt/perf" {
			t.Error("RunConfig must not alias the Config tool paths")
		}
	})
}

// TestSetTimeout tests that SetTimeout leaves the CPU window untouched.
func TestSetTimeout(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.SetTimeout(5 * time.Second)

	if cfg.Timeout(model.KindThread) != 5*time.Second {
		t.Errorf("expected thread timeout 5s, got %v", cfg.Timeout(model.KindThread))
	}
	if cfg.Timeout(model.KindCPU) != DefaultDuration {
		t.Errorf("expected cpu window unchanged, got %v", cfg.Timeout(model.KindCPU))
	}

	cfg.Kinds = []model.Kind{model.KindMemory, model.KindCPU}
	if cfg.MaxTimeout() != DefaultDuration {
		t.Errorf("expected max timeout %v, got %v", DefaultDuration, cfg.MaxTimeout())
	}
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.perflens")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".perflens")
		content := `defaults:
  timeout: 2m
  top: 5
  grace: 1s
kinds:
  thread:
    timeout: 10m
  cpu:
    duration: 15s
    frequency: 199
tools:
  perf: /usr/local/bin/perf
env:
  MALLOC_ARENA_MAX: "2"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		file, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if file.Defaults.Timeout != 2*time.Minute {
			t.Errorf("expected default timeout 2m, got %v", file.Defaults.Timeout)
		}
		if got := file.KindSettings(model.KindThread).Timeout; got != 10*time.Minute {
			t.Errorf("expected thread timeout 10m, got %v", got)
		}
		if got := file.KindSettings(model.KindMemory).Timeout; got != 2*time.Minute {
			t.Errorf("expected memory timeout to fall back to 2m, got %v", got)
		}
		if file.Tools[ToolPerf] != "/usr/local/bin/perf" {
			t.Errorf("unexpected perf path %q", file.Tools[ToolPerf])
		}

		cfg := NewConfig()
		cfg.ApplyFile(file)
		if cfg.Timeout(model.KindThread) != 10*time.Minute {
			t.Errorf("expected applied thread timeout 10m, got %v", cfg.Timeout(model.KindThread))
		}
		if cfg.Duration != 15*time.Second || cfg.Frequency != 199 {
			t.Errorf("expected cpu settings 15s/199, got %v/%d", cfg.Duration, cfg.Frequency)
		}
		if cfg.TopK != 5 || cfg.Grace != time.Second {
			t.Errorf("expected top 5 and grace 1s, got %d and %v", cfg.TopK, cfg.Grace)
		}
		if cfg.Env["MALLOC_ARENA_MAX"] != "2" {
			t.Error("expected env override from file")
		}
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".perflens")
		content := "kinds:\n  gpu:\n    timeout: 1s\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if !errors.Is(err, model.ErrUnknownKind) {
			t.Errorf("expected ErrUnknownKind, got %v", err)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".perflens")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil maps", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".perflens")
		if err := os.WriteFile(configPath, []byte("defaults:\n  top: 3\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		file, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if file.Kinds == nil || file.Tools == nil || file.Env == nil {
			t.Error("expected maps to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if XDGConfigDir() == "" {
		t.Error("expected non-empty XDG config dir")
	}
	if XDGCacheDir() == "" {
		t.Error("expected non-empty XDG cache dir")
	}
}
