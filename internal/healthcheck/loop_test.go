package healthcheck

import (
	"context"
	"testing"
	"time"

	"github.com/compote-dev/compote/internal/manifest"
)

func TestResolveSpecAppliesDefaults(t *testing.T) {
	spec, err := ResolveSpec(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Interval != 30*time.Second || spec.Timeout != 30*time.Second || spec.Retries != 3 || spec.StartPeriod != 0 {
		t.Errorf("got %+v, want defaults 30s/30s/3/0s", spec)
	}
}

func TestResolveSpecShellSplitsStringTest(t *testing.T) {
	hc := &manifest.Healthcheck{Test: manifest.NewCommandFromString("curl -f http://localhost/health")}
	spec, err := ResolveSpec(hc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"curl", "-f", "http://localhost/health"}
	if len(spec.Test) != len(want) {
		t.Fatalf("Test = %v, want %v", spec.Test, want)
	}
	for i := range want {
		if spec.Test[i] != want[i] {
			t.Errorf("Test[%d] = %q, want %q", i, spec.Test[i], want[i])
		}
	}
}

func TestResolveSpecUsesListTestVerbatim(t *testing.T) {
	hc := &manifest.Healthcheck{Test: manifest.NewCommandFromList([]string{"CMD", "true"})}
	spec, err := ResolveSpec(hc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"CMD", "true"}
	for i := range want {
		if spec.Test[i] != want[i] {
			t.Errorf("Test[%d] = %q, want %q", i, spec.Test[i], want[i])
		}
	}
}

func execSequence(results ...int) Execer {
	calls := 0
	return func(ctx context.Context, argv []string, env []string) (int, error) {
		code := results[calls]
		calls++
		return code, nil
	}
}

func TestTrackerRunPassesOnFirstAttempt(t *testing.T) {
	tr := NewTracker()
	spec := Spec{Test: []string{"true"}, Retries: 1, Interval: time.Millisecond, Timeout: time.Second}

	if err := tr.Run(context.Background(), execSequence(0), "app", 1, spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Status("app", 1) != StatusHealthy {
		t.Errorf("Status = %v, want StatusHealthy", tr.Status("app", 1))
	}
}

func TestTrackerRunFailsAfterRetriesExhausted(t *testing.T) {
	tr := NewTracker()
	spec := Spec{Test: []string{"false"}, Retries: 2, Interval: time.Millisecond, Timeout: time.Second}

	err := tr.Run(context.Background(), execSequence(1, 1), "app", 1, spec)
	if err == nil {
		t.Fatal("expected error after exhausting retries, got none")
	}
	if tr.Status("app", 1) != StatusUnhealthy {
		t.Errorf("Status = %v, want StatusUnhealthy", tr.Status("app", 1))
	}
}

func TestTrackerWaitReturnsImmediatelyWhenAlreadyHealthy(t *testing.T) {
	tr := NewTracker()
	tr.set("app", 1, StatusHealthy)
	if err := tr.Wait(context.Background(), "app", 1, time.Second); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTrackerWaitTimesOut(t *testing.T) {
	tr := NewTracker()
	err := tr.Wait(context.Background(), "app", 1, 10*time.Millisecond)
	if _, ok := err.(*ErrTimeout); !ok {
		t.Fatalf("expected *ErrTimeout, got %T: %v", err, err)
	}
}
