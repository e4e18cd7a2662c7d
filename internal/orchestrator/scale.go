package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/compote-dev/compote/internal/orcherr"
)

// Scale implements §4.6's scale(service, N): create replicas ascending when growing, remove
// descending when shrinking, sequential per replica for determinism (§5).
func (o *Orchestrator) Scale(ctx context.Context, service string, n int) error {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	if n < 0 {
		return &orcherr.InvalidScale{Service: service, Replicas: n}
	}
	if _, ok := o.serviceByName(service); !ok {
		return &orcherr.ServiceNotFound{Service: service}
	}

	if err := o.ensureNetworks(ctx); err != nil {
		return err
	}
	if err := o.ensureVolumes(ctx); err != nil {
		return err
	}

	current := o.reg.KnownReplicaIndices(service)
	currentSet := make(map[int]bool, len(current))
	currentMax := 0
	for _, r := range current {
		currentSet[r] = true
		if r > currentMax {
			currentMax = r
		}
	}

	if n > len(current) {
		for i := 1; i <= n; i++ {
			if currentSet[i] {
				continue
			}
			if err := o.startService(ctx, service, i); err != nil {
				return err
			}
		}
	} else if n < len(current) {
		for i := currentMax; i > n; i-- {
			if !currentSet[i] {
				continue
			}
			if err := o.removeReplica(ctx, service, i); err != nil {
				return err
			}
		}
	}

	o.logger.Info("service scaled", zap.String("service", service), zap.Int("replicas", n))
	if o.recorder != nil {
		o.recorder.Info(o.project, "service scaled", service, 0)
	}
	return nil
}

// removeReplica implements the internal removeReplica transition: * -> deleted.
func (o *Orchestrator) removeReplica(ctx context.Context, service string, replica int) error {
	if handle, ok := o.reg.RuntimeHandle(service, replica); ok {
		running, _ := handle.IsRunning(ctx)
		if running {
			if err := handle.Stop(ctx, 10); err != nil {
				return &orcherr.FailedToStop{Service: service, Cause: err}
			}
		}
		if err := handle.Delete(ctx); err != nil {
			return &orcherr.FailedToStop{Service: service, Cause: err}
		}
		o.reg.DetachRuntime(service, replica)
	}

	o.dropPortForwards(service, replica)

	containerID := o.containerName(service, replica)
	if err := o.store.RemoveContainer(containerID); err != nil {
		return err
	}
	o.reg.RemoveKnown(service, replica)

	o.logger.Info("replica removed", zap.String("service", service), zap.Int("replica", replica))
	return nil
}
