package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/compote-dev/compote/internal/orcherr"
)

// Start implements §4.6's start(selectorsFilter?): revive known, not-currently-running replicas,
// in batch order, sequentially within each batch for deterministic retry behavior. No healthcheck
// gating.
func (o *Orchestrator) Start(ctx context.Context, selectors []Selector) error {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	targets, err := o.resolveTargets(selectors)
	if err != nil {
		return err
	}

	batches, err := o.graph.ResolveBatches()
	if err != nil {
		return err
	}

	for _, batch := range batches {
		for _, service := range batch {
			replicas, ok := targets[service]
			if !ok {
				continue
			}
			for _, replica := range replicas {
				if o.reg.IsRunning(ctx, service, replica) {
					continue
				}
				if err := o.startService(ctx, service, replica); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Stop implements §4.6's stop(selectorsFilter?, timeout): walk batches in reverse, stopping every
// selected running replica and dropping its port forwards; handles stay in `runtime`.
func (o *Orchestrator) Stop(ctx context.Context, selectors []Selector, timeoutSeconds int) error {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	targets, err := o.resolveTargets(selectors)
	if err != nil {
		return err
	}

	batches, err := o.graph.ResolveBatches()
	if err != nil {
		return err
	}
	batches = reverseBatches(batches)

	for _, batch := range batches {
		if err := runBatchParallel(ctx, batch, func(ctx context.Context, service string) error {
			replicas, ok := targets[service]
			if !ok {
				return nil
			}
			for _, replica := range replicas {
				if err := o.pauseReplica(ctx, service, replica, timeoutSeconds); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// pauseReplica implements the internal pauseService transition: running -> stopped (no delete).
func (o *Orchestrator) pauseReplica(ctx context.Context, service string, replica int, timeoutSeconds int) error {
	handle, ok := o.reg.RuntimeHandle(service, replica)
	if !ok {
		return nil
	}
	running, _ := handle.IsRunning(ctx)
	if !running {
		return nil
	}

	if err := handle.Stop(ctx, timeoutSeconds); err != nil {
		return &orcherr.FailedToStop{Service: service, Cause: err}
	}

	o.dropPortForwards(service, replica)

	o.logger.Info("service stopped", zap.String("service", service), zap.Int("replica", replica))
	if o.recorder != nil {
		o.recorder.Info(o.project, "service stopped", service, replica)
	}
	return nil
}

func (o *Orchestrator) dropPortForwards(service string, replica int) {
	st, err := o.store.Load()
	if err != nil {
		o.logger.Warn("failed to load state while dropping port forwards", zap.String("service", service), zap.Error(err))
		return
	}
	for id, pf := range st.PortForwards {
		if pf.ServiceName == service && pf.ReplicaIndex == replica {
			if err := o.pf.Stop(id); err != nil {
				o.logger.Warn("failed to stop port forward", zap.String("id", id), zap.Error(err))
			}
		}
	}
}

// Restart implements §4.6's restart(selectorsFilter?, timeout): stop then start.
func (o *Orchestrator) Restart(ctx context.Context, selectors []Selector, timeoutSeconds int) error {
	if err := o.Stop(ctx, selectors, timeoutSeconds); err != nil {
		return err
	}
	return o.Start(ctx, selectors)
}
