package healthcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/compote-dev/compote/internal/manifest"

	"github.com/mattn/go-shellwords"
)

// Status is a service replica's last-recorded healthcheck outcome.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

// Spec is the resolved healthcheck configuration, defaults applied (§4.6.7: 30s/30s/3/0s).
type Spec struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration
}

// ResolveSpec applies the shell-split-on-spaces rule for a string-form test, and the §4.6.7
// defaults for any absent field. Grounded on go-shellwords, the shell-splitting library the pack's
// dependency surface already carries.
func ResolveSpec(hc *manifest.Healthcheck) (Spec, error) {
	spec := Spec{
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		Retries:     3,
		StartPeriod: 0,
	}
	if hc == nil {
		return spec, nil
	}

	if raw, isString := hc.Test.Source(); isString {
		parser := shellwords.NewParser()
		argv, err := parser.Parse(raw)
		if err != nil {
			return Spec{}, fmt.Errorf("healthcheck: invalid test command %q: %w", raw, err)
		}
		spec.Test = argv
	} else {
		spec.Test = hc.Test.AsArray()
	}

	if hc.Interval != "" {
		spec.Interval = ParseDuration(hc.Interval)
	}
	if hc.Timeout != "" {
		spec.Timeout = ParseDuration(hc.Timeout)
	}
	if hc.Retries > 0 {
		spec.Retries = hc.Retries
	}
	if hc.StartPeriod != "" {
		spec.StartPeriod = ParseDuration(hc.StartPeriod)
	}

	return spec, nil
}

// Tracker records the last-known healthcheck status per (service, replica), polled by the
// service_healthy waiter in Wait.
type Tracker struct {
	statuses map[string]Status
}

func NewTracker() *Tracker {
	return &Tracker{statuses: make(map[string]Status)}
}

func key(service string, replica int) string {
	return fmt.Sprintf("%s#%d", service, replica)
}

func (t *Tracker) set(service string, replica int, status Status) {
	t.statuses[key(service, replica)] = status
}

func (t *Tracker) Status(service string, replica int) Status {
	return t.statuses[key(service, replica)]
}

// ErrUnhealthy and ErrTimeout are the two ways a healthcheck aborts up() (§7).
type ErrUnhealthy struct{ Service string }

func (e *ErrUnhealthy) Error() string { return fmt.Sprintf("service %q is unhealthy", e.Service) }

type ErrTimeout struct{ Service string }

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("timed out waiting for service %q to become healthy", e.Service)
}

// Execer runs a healthcheck test command inside a running container; capability.ContainerHandle's
// Exec method satisfies it directly.
type Execer func(ctx context.Context, argv []string, env []string) (exitCode int, err error)

// Run executes the §4.6.7 procedure against a single running replica: sleep startPeriod, then
// exec the test up to retries times, sleeping interval between attempts, until it exits 0 or the
// retry budget is exhausted.
func (t *Tracker) Run(ctx context.Context, exec Execer, service string, replica int, spec Spec) error {
	if len(spec.Test) == 0 {
		t.set(service, replica, StatusHealthy)
		return nil
	}

	if spec.StartPeriod > 0 {
		if err := sleepCtx(ctx, spec.StartPeriod); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < spec.Retries; attempt++ {
		execCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
		exitCode, err := exec(execCtx, spec.Test, nil)
		cancel()

		if err == nil && exitCode == 0 {
			t.set(service, replica, StatusHealthy)
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("healthcheck exited %d", exitCode)
		}

		if attempt < spec.Retries-1 {
			if err := sleepCtx(ctx, spec.Interval); err != nil {
				return err
			}
		}
	}

	t.set(service, replica, StatusUnhealthy)
	return &ErrUnhealthy{Service: fmt.Sprintf("%s (last error: %v)", service, lastErr)}
}

// Wait blocks until service reaches healthy status or timeout elapses, polling the tracker's
// last-recorded status (§4.6.7's service_healthy waiter).
func (t *Tracker) Wait(ctx context.Context, service string, replica int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	const pollInterval = 50 * time.Millisecond
	for {
		switch t.Status(service, replica) {
		case StatusHealthy:
			return nil
		case StatusUnhealthy:
			return &ErrUnhealthy{Service: service}
		}
		if time.Now().After(deadline) {
			return &ErrTimeout{Service: service}
		}
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
