package portforward

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/compote-dev/compote/internal/state"
)

type fakeSupervisor struct {
	nextPid     int
	terminated  []int
	spawnedArgv [][]string
}

func (f *fakeSupervisor) Spawn(ctx context.Context, argv []string) (int, error) {
	f.nextPid++
	f.spawnedArgv = append(f.spawnedArgv, argv)
	return f.nextPid, nil
}

func (f *fakeSupervisor) Terminate(pid int) error {
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *fakeSupervisor) Which(tool string) bool { return true }

func newTestManager(t *testing.T) (*Manager, *fakeSupervisor, *state.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := state.NewStore(dir, "myproj", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	sup := &fakeSupervisor{}
	return NewManager(sup, store, zap.NewNop(), "/usr/bin/compote"), sup, store
}

func TestManagerStartRecordsPortForward(t *testing.T) {
	m, sup, store := newTestManager(t)

	id, err := m.Start(context.Background(), "web", 1, Spec{
		Proto: ProtoTCP, HostIP: "0.0.0.0", HostPort: 18080, TargetIP: "172.18.0.2", TargetPort: 80,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id != "web#1#tcp#18080" {
		t.Errorf("Start() id = %q, want %q", id, "web#1#tcp#18080")
	}
	if len(sup.spawnedArgv) != 1 {
		t.Fatalf("expected exactly one spawn, got %d", len(sup.spawnedArgv))
	}

	st, _ := store.Load()
	if _, ok := st.PortForwards[id]; !ok {
		t.Fatalf("expected %q recorded in state", id)
	}
}

func TestManagerStopTerminatesAndClears(t *testing.T) {
	m, sup, store := newTestManager(t)
	id, err := m.Start(context.Background(), "web", 1, Spec{Proto: ProtoTCP, HostIP: "0.0.0.0", HostPort: 18080, TargetIP: "172.18.0.2", TargetPort: 80})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.Stop(id); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(sup.terminated) != 1 || sup.terminated[0] != 1 {
		t.Errorf("expected pid 1 terminated, got %v", sup.terminated)
	}

	st, _ := store.Load()
	if _, ok := st.PortForwards[id]; ok {
		t.Error("expected port forward record removed after Stop")
	}
}

func TestManagerStopAllClearsEverything(t *testing.T) {
	m, _, store := newTestManager(t)
	m.Start(context.Background(), "web", 1, Spec{Proto: ProtoTCP, HostIP: "0.0.0.0", HostPort: 18080, TargetIP: "172.18.0.2", TargetPort: 80})
	m.Start(context.Background(), "web", 2, Spec{Proto: ProtoTCP, HostIP: "0.0.0.0", HostPort: 18081, TargetIP: "172.18.0.3", TargetPort: 80})

	if err := m.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	st, _ := store.Load()
	if len(st.PortForwards) != 0 {
		t.Errorf("expected all forwards cleared, got %d remaining", len(st.PortForwards))
	}
}

func TestManagerReconcileOrphansClearsDeadPids(t *testing.T) {
	m, _, store := newTestManager(t)
	m.Start(context.Background(), "web", 1, Spec{Proto: ProtoTCP, HostIP: "0.0.0.0", HostPort: 18080, TargetIP: "172.18.0.2", TargetPort: 80})

	if err := m.ReconcileOrphans(func(pid int) bool { return false }); err != nil {
		t.Fatalf("ReconcileOrphans: %v", err)
	}
	st, _ := store.Load()
	if len(st.PortForwards) != 0 {
		t.Errorf("expected orphaned forward cleared, got %d remaining", len(st.PortForwards))
	}
}

func TestManagerReconcileOrphansKeepsLivePids(t *testing.T) {
	m, _, store := newTestManager(t)
	id, _ := m.Start(context.Background(), "web", 1, Spec{Proto: ProtoTCP, HostIP: "0.0.0.0", HostPort: 18080, TargetIP: "172.18.0.2", TargetPort: 80})

	if err := m.ReconcileOrphans(func(pid int) bool { return true }); err != nil {
		t.Fatalf("ReconcileOrphans: %v", err)
	}
	st, _ := store.Load()
	if _, ok := st.PortForwards[id]; !ok {
		t.Error("expected live forward to survive reconciliation")
	}
}
