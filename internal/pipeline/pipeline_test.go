package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/perflens/internal/config"
	"github.com/nao1215/perflens/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, job *Job) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, job *Job) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, job)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func newTestJob(t *testing.T, kind model.Kind) *Job {
	t.Helper()

	target, err := model.NewProfilingTarget("/usr/bin/app", []string{"--iterations", "3"}, "", nil)
	if err != nil {
		t.Fatalf("NewProfilingTarget() error = %v", err)
	}
	job, err := NewJob(kind, target, config.RunConfig{TopK: 5})
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	return job
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	t.Run("binds the tool for the kind", func(t *testing.T) {
		t.Parallel()

		job := newTestJob(t, model.KindSyscall)
		if job.Tool == nil {
			t.Fatal("expected tool to be set")
		}
		if job.Tool.Kind() != model.KindSyscall {
			t.Errorf("tool kind = %q, want syscall", job.Tool.Kind())
		}
		if job.Config.Kind != model.KindSyscall {
			t.Errorf("config kind = %q, want syscall", job.Config.Kind)
		}
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		t.Parallel()

		_, err := NewJob("gpu", model.ProfilingTarget{Binary: "/bin/true"}, config.RunConfig{})
		if !errors.Is(err, model.ErrUnknownKind) {
			t.Errorf("expected ErrUnknownKind, got %v", err)
		}
	})
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))

		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})

	t.Run("analysis pipeline has three steps", func(t *testing.T) {
		t.Parallel()

		p := NewAnalysis(nil)
		want := []string{"execute", "parse", "normalize"}
		got := p.StepNames()
		if len(got) != len(want) {
			t.Fatalf("StepNames() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("step %d = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		executionOrder := make([]string, 0)

		p := New()
		p.AddStep(&mockStep{
			name: "step-1",
			doFunc: func(_ context.Context, _ *Job) error {
				executionOrder = append(executionOrder, "step-1")
				return nil
			},
		})
		p.AddStep(&mockStep{
			name: "step-2",
			doFunc: func(_ context.Context, _ *Job) error {
				executionOrder = append(executionOrder, "step-2")
				return nil
			},
		})

		job := newTestJob(t, model.KindMemory)
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(executionOrder) != 2 {
			t.Fatalf("expected 2 executions, got %d", len(executionOrder))
		}
		if executionOrder[0] != "step-1" || executionOrder[1] != "step-2" {
			t.Errorf("wrong execution order: %v", executionOrder)
		}
		if len(job.PerformedSteps) != 2 {
			t.Errorf("expected 2 performed steps, got %d", len(job.PerformedSteps))
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		second := &mockStep{name: "should-not-run"}

		p := New()
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *Job) error {
				return expectedErr
			},
		})
		p.AddStep(second)

		job := newTestJob(t, model.KindMemory)
		err := p.Execute(context.Background(), job)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if second.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if job.Report == nil {
			t.Fatal("expected a failure report")
		}
		if job.Report.Status != model.StatusNonZeroExit {
			t.Errorf("status = %q, want non_zero_exit", job.Report.Status)
		}
		if job.Report.Error != expectedErr.Error() {
			t.Errorf("error = %q, want %q", job.Report.Error, expectedErr.Error())
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "should-run"}

		p := New(WithContinueOnError(true))
		p.AddStep(&mockStep{
			name: "failing-step",
			doFunc: func(_ context.Context, _ *Job) error {
				return errors.New("step failed")
			},
		})
		p.AddStep(second)

		job := newTestJob(t, model.KindMemory)
		if err := p.Execute(context.Background(), job); err != nil {
			t.Errorf("expected nil error with continueOnError, got %v", err)
		}
		if second.callCount != 1 {
			t.Error("second step should have been called")
		}
	})

	t.Run("cancelled context yields cancelled report", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		p := New()
		p.AddStep(step)

		job := newTestJob(t, model.KindCPU)
		err := p.Execute(ctx, job)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
		if job.Report == nil || job.Report.Status != model.StatusCancelled {
			t.Fatalf("expected cancelled report, got %+v", job.Report)
		}
		if job.Report.Kind != model.KindCPU {
			t.Errorf("report kind = %q, want cpu", job.Report.Kind)
		}
		if job.Report.Findings == nil {
			t.Error("findings must be an empty slice, not nil")
		}
	})

	t.Run("report built by a step is kept", func(t *testing.T) {
		t.Parallel()

		want := &model.AnalysisReport{Kind: model.KindCache, Status: model.StatusSuccess}
		p := New()
		p.AddStep(&mockStep{
			name: "build",
			doFunc: func(_ context.Context, job *Job) error {
				job.Report = want
				return nil
			},
		})

		job := newTestJob(t, model.KindCache)
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Report != want {
			t.Error("expected report from step to be kept")
		}
	})
}

func TestPipelineStepNames(t *testing.T) {
	t.Parallel()

	p := New()
	if len(p.StepNames()) != 0 {
		t.Errorf("expected no names, got %v", p.StepNames())
	}
	p.AddSteps(&mockStep{name: "first"}, &mockStep{name: "second"})
	names := p.StepNames()
	if len(names) != 2 || names[0] != "first" || names[1] != "second" {
		t.Errorf("StepNames() = %v", names)
	}
}
