package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Down implements §4.6's down(removeVolumes): walk batches in reverse tearing down every known
// container, sweep orphaned port forwards, remove project networks, and optionally project
// volumes.
func (o *Orchestrator) Down(ctx context.Context, removeVolumes bool) error {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	batches, err := o.graph.ResolveBatches()
	if err != nil {
		return err
	}
	batches = reverseBatches(batches)

	for _, batch := range batches {
		if err := runBatchParallel(ctx, batch, func(ctx context.Context, service string) error {
			for _, replica := range o.reg.KnownReplicaIndices(service) {
				if err := o.removeReplica(ctx, service, replica); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}

	if err := o.pf.StopAll(); err != nil {
		o.logger.Warn("failed to sweep orphaned port forwards", zap.Error(err))
	}

	if err := o.removeProjectNetworks(ctx); err != nil {
		return err
	}

	if removeVolumes {
		if err := o.removeProjectVolumes(ctx); err != nil {
			return err
		}
	}

	o.logger.Info("down complete", zap.String("project", o.project))
	if o.recorder != nil {
		o.recorder.Info(o.project, "down complete", "", 0)
	}
	return nil
}

func (o *Orchestrator) removeProjectNetworks(ctx context.Context) error {
	st, err := o.store.Load()
	if err != nil {
		return err
	}
	prefix := o.project + "_"
	for name := range st.Networks {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := o.caps.Network.Remove(ctx, name); err != nil {
			o.logger.Warn("failed to remove network", zap.String("network", name), zap.Error(err))
			continue
		}
		if err := o.store.RemoveNetwork(name); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) removeProjectVolumes(ctx context.Context) error {
	st, err := o.store.Load()
	if err != nil {
		return err
	}
	prefix := o.project + "_"
	for name, info := range st.Volumes {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := o.caps.Volume.Remove(ctx, name, info.IsExternal); err != nil {
			o.logger.Warn("failed to remove volume", zap.String("volume", name), zap.Error(err))
			continue
		}
		if err := o.store.RemoveVolume(name); err != nil {
			return err
		}
	}
	return nil
}
