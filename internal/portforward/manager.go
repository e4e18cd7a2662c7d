package portforward

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/compote-dev/compote/internal/capability"
	"github.com/compote-dev/compote/internal/state"
)

// RelaySubcommand is the argv[0] marker main.go dispatches on to re-exec itself as a relay child
// process, grounded on the teacher's sidecar dispatch pattern (a single binary that behaves
// differently depending on how it's invoked).
const RelaySubcommand = "relay"

// ArgvForSpec builds the argv a Manager passes to ProcessSupervisor.Spawn to re-exec the current
// binary as a relay for spec. main.go's relay dispatch parses these back with SpecFromArgs.
func ArgvForSpec(exe string, spec Spec) []string {
	return []string{
		exe, RelaySubcommand,
		string(spec.Proto), spec.HostIP, strconv.Itoa(spec.HostPort),
		spec.TargetIP, strconv.Itoa(spec.TargetPort),
	}
}

// SpecFromArgs parses the argv produced by ArgvForSpec, starting at the arguments following the
// "relay" subcommand word.
func SpecFromArgs(args []string) (Spec, error) {
	if len(args) != 5 {
		return Spec{}, fmt.Errorf("portforward: relay expects 5 arguments, got %d", len(args))
	}
	hostPort, err := strconv.Atoi(args[2])
	if err != nil {
		return Spec{}, fmt.Errorf("portforward: invalid host port %q: %w", args[2], err)
	}
	targetPort, err := strconv.Atoi(args[4])
	if err != nil {
		return Spec{}, fmt.Errorf("portforward: invalid target port %q: %w", args[4], err)
	}
	return Spec{
		Proto:      Proto(args[0]),
		HostIP:     args[1],
		HostPort:   hostPort,
		TargetIP:   args[3],
		TargetPort: targetPort,
	}, nil
}

// Manager spawns and tracks relay child processes for one project, persisting each forward's pid
// into the state store so a later process can find and reap orphans (§4.5, §12.6).
type Manager struct {
	supervisor capability.ProcessSupervisor
	store      *state.Store
	logger     *zap.Logger
	exe        string
}

func NewManager(supervisor capability.ProcessSupervisor, store *state.Store, logger *zap.Logger, exePath string) *Manager {
	return &Manager{supervisor: supervisor, store: store, logger: logger, exe: exePath}
}

// Start spawns a relay for the given service/replica port mapping and records it in the state
// store under state.PortForwardID.
func (m *Manager) Start(ctx context.Context, service string, replica int, spec Spec) (string, error) {
	id := state.PortForwardID(service, replica, string(spec.Proto), spec.HostPort)

	pid, err := m.supervisor.Spawn(ctx, ArgvForSpec(m.exe, spec))
	if err != nil {
		return "", fmt.Errorf("portforward: spawn relay for %s: %w", id, err)
	}

	info := state.PortForwardInfo{
		ID: id, ServiceName: service, ReplicaIndex: replica,
		HostIP: spec.HostIP, HostPort: spec.HostPort,
		TargetIP: spec.TargetIP, TargetPort: spec.TargetPort,
		Proto: string(spec.Proto), Pid: pid,
	}
	if err := m.store.UpdatePortForward(info); err != nil {
		m.supervisor.Terminate(pid)
		return "", fmt.Errorf("portforward: persist %s: %w", id, err)
	}

	m.logger.Info("port forward started",
		zap.String("id", id), zap.String("service", service), zap.Int("replica", replica),
		zap.Int("hostPort", spec.HostPort), zap.Int("pid", pid),
	)
	return id, nil
}

// Stop terminates the relay for id and removes it from the state store. It is best-effort:
// termination failures are logged, not fatal, since the process may already be gone (§9's stale
// pid open question — resolved by always attempting termination and always clearing the record).
func (m *Manager) Stop(id string) error {
	st, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("portforward: load state to stop %s: %w", id, err)
	}
	info, ok := st.PortForwards[id]
	if !ok {
		return nil
	}

	if err := m.supervisor.Terminate(info.Pid); err != nil {
		m.logger.Warn("port forward terminate failed, pid may already be gone",
			zap.String("id", id), zap.Int("pid", info.Pid), zap.Error(err))
	}

	if err := m.store.RemovePortForward(id); err != nil {
		return fmt.Errorf("portforward: clear record %s: %w", id, err)
	}
	m.logger.Info("port forward stopped", zap.String("id", id))
	return nil
}

// StopAll tears down every forward this project's state store knows about; down() calls it to
// sweep orphaned forwards.
func (m *Manager) StopAll() error {
	st, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("portforward: load state for StopAll: %w", err)
	}
	for id := range st.PortForwards {
		if err := m.Stop(id); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileOrphans clears the persisted record of every forward whose pid fails the given liveness
// check; records whose pid is alive are kept. It sends no signal to any process, and
// internal/orchestrator does not call it.
func (m *Manager) ReconcileOrphans(isAlive func(pid int) bool) error {
	st, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("portforward: load state for reconciliation: %w", err)
	}
	for id, info := range st.PortForwards {
		if !isAlive(info.Pid) {
			m.logger.Info("clearing orphaned port forward record", zap.String("id", id), zap.Int("pid", info.Pid))
			if err := m.store.RemovePortForward(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessIsAlive is the default liveness probe passed to ReconcileOrphans outside of tests: it
// sends signal 0, which succeeds iff the process exists and is signalable by this user.
func ProcessIsAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(processCheckSignal) == nil
}
