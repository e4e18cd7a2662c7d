package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/compote-dev/compote/internal/logmux"
	"github.com/compote-dev/compote/internal/orcherr"
	"github.com/compote-dev/compote/internal/registry"
)

// Exec implements §4.6's exec(service, replica?, command, env?). replica == 0 means "pick the
// lowest-indexed running replica".
func (o *Orchestrator) Exec(ctx context.Context, service string, replica int, argv []string, env []string) (int, error) {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	if _, ok := o.serviceByName(service); !ok {
		return 0, &orcherr.ServiceNotFound{Service: service}
	}

	if replica == 0 {
		indices := o.reg.KnownReplicaIndices(service)
		var chosen int
		for _, i := range indices {
			if o.reg.IsRunning(ctx, service, i) {
				chosen = i
				break
			}
		}
		if chosen == 0 {
			return 0, &orcherr.ServiceNotRunning{Service: service}
		}
		replica = chosen
	}

	handle, ok := o.reg.RuntimeHandle(service, replica)
	if !ok {
		if len(o.reg.KnownReplicaIndices(service)) == 0 {
			return 0, &orcherr.ServiceNotFound{Service: service}
		}
		return 0, &orcherr.ServiceReplicaNotFound{Service: service, Replica: replica}
	}
	running, _ := handle.IsRunning(ctx)
	if !running {
		return 0, &orcherr.ServiceNotRunning{Service: service}
	}

	invocationID := uuid.New().String()
	fields := append(zapFields(o.project, service, replica), zap.String("invocation_id", invocationID))
	o.logger.Debug("exec invocation starting", fields...)
	exitCode, err := handle.Exec(ctx, argv, env)
	if err != nil {
		o.logger.Debug("exec invocation failed", append(fields, zap.Error(err))...)
	} else {
		o.logger.Debug("exec invocation finished", append(fields, zap.Int("exitCode", exitCode))...)
	}
	return exitCode, err
}

// Logs implements §4.6's logs(selectors?, includeStderr, tail?, follow). Selectors resolve only
// against `runtime` (§4.6: "non-attached containers yield nothing"); replicas that aren't attached
// are reported back in the second return value as a warning list, never as an error by themselves.
func (o *Orchestrator) Logs(ctx context.Context, selectors []Selector, tail int, follow bool) (<-chan logmux.Line, []string, error) {
	o.actorMu.Lock()
	o.hydrate()

	targets, err := o.resolveTargets(selectors)
	o.actorMu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	mux := logmux.NewMultiplexer()
	var warnings []string
	attached := 0

	for service, replicas := range targets {
		for _, replica := range replicas {
			handle, ok := o.reg.RuntimeHandle(service, replica)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("%s not running, skipping logs", registry.FormatLogLabel(service, replica)))
				continue
			}
			stream, err := handle.Logs(ctx, tail, follow)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: failed to open log stream: %v", registry.FormatLogLabel(service, replica), err))
				continue
			}
			mux.Add(ctx, registry.FormatLogLabel(service, replica), stream)
			attached++
		}
	}

	if attached == 0 {
		return nil, warnings, fmt.Errorf("orchestrator: logs: no running services matched the given selectors")
	}

	go mux.CloseWhenDone()
	return mux.Lines(), warnings, nil
}

// ServiceStatus is the §3.4 derived status view.
type ServiceStatus struct {
	Name            string
	IsRunning       bool
	IsKnown         bool
	RunningReplicas int
	KnownReplicas   int
}

// Ps implements §4.6's ps(): status for the union of manifest and known services, sorted by name.
func (o *Orchestrator) Ps(ctx context.Context) []ServiceStatus {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	known := o.reg.Known()
	names := registry.Services(o.allServiceNames(), known)

	statuses := make([]ServiceStatus, 0, len(names))
	for _, name := range names {
		knownReplicas := o.reg.KnownReplicaIndices(name)
		running := o.reg.RunningReplicaCount(ctx, name)
		statuses = append(statuses, ServiceStatus{
			Name:            name,
			IsKnown:         len(knownReplicas) > 0,
			IsRunning:       running > 0,
			RunningReplicas: running,
			KnownReplicas:   len(knownReplicas),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
