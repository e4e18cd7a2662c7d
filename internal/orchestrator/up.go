package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/compote-dev/compote/internal/healthcheck"
	"github.com/compote-dev/compote/internal/manifest"
	"github.com/compote-dev/compote/internal/state"
)

// Up implements §4.6's up(servicesFilter?, detach). When detach is false, it blocks until every
// attached container handle exits.
func (o *Orchestrator) Up(ctx context.Context, servicesFilter []string, detach bool) error {
	o.actorMu.Lock()
	defer o.actorMu.Unlock()
	o.hydrate()

	o.logger.Info("up starting", zap.String("project", o.project))

	if err := o.ensureNetworks(ctx); err != nil {
		return err
	}
	if err := o.ensureVolumes(ctx); err != nil {
		return err
	}

	batches, err := o.graph.ResolveBatches()
	if err != nil {
		return err
	}

	var allowed map[string]bool
	if len(servicesFilter) > 0 {
		allowed = make(map[string]bool, len(servicesFilter))
		for _, s := range servicesFilter {
			allowed[s] = true
		}
	}
	batches = filterBatches(batches, allowed)
	healthDeps := o.graph.GetHealthDependencies()

	for _, batch := range batches {
		if err := runBatchParallel(ctx, batch, func(ctx context.Context, service string) error {
			return o.startService(ctx, service, 1)
		}); err != nil {
			return err
		}

		for _, service := range batch {
			if _, needsHealth := healthDeps[service]; !needsHealth {
				continue
			}
			svc, _ := o.serviceByName(service)
			if svc.Healthcheck == nil || svc.Healthcheck.Disable {
				continue
			}
			if err := o.runHealthcheck(ctx, service, 1, svc.Healthcheck); err != nil {
				return err
			}
		}
	}

	o.logger.Info("up complete", zap.String("project", o.project))

	if !detach {
		return o.waitForAllExits(ctx)
	}
	return nil
}

// runHealthcheck implements §4.6.7 for one just-started replica: resolve the spec, run the
// retry loop against the attached handle's Exec, and record the result in the shared tracker so
// service_healthy waiters elsewhere can poll it.
func (o *Orchestrator) runHealthcheck(ctx context.Context, service string, replica int, hc *manifest.Healthcheck) error {
	invocationID := uuid.New().String()
	fields := append(zapFields(o.project, service, replica), zap.String("invocation_id", invocationID))
	o.logger.Debug("healthcheck invocation starting", fields...)

	spec, err := healthcheck.ResolveSpec(hc)
	if err != nil {
		return err
	}
	handle, ok := o.reg.RuntimeHandle(service, replica)
	if !ok {
		return &healthcheck.ErrUnhealthy{Service: service}
	}

	exec := healthcheck.Execer(func(ctx context.Context, argv []string, env []string) (int, error) {
		return handle.Exec(ctx, argv, env)
	})

	err = o.hc.Run(ctx, exec, service, replica, spec)
	if err != nil {
		o.logger.Debug("healthcheck invocation failed", append(fields, zap.Error(err))...)
	} else {
		o.logger.Debug("healthcheck invocation passed", fields...)
	}
	if o.recorder != nil {
		if err != nil {
			o.recorder.Warn(o.project, "healthcheck failed", service, replica, err)
		} else {
			o.recorder.Info(o.project, "healthcheck passed", service, replica)
		}
	}
	return err
}

func (o *Orchestrator) ensureNetworks(ctx context.Context) error {
	name := o.resourceName(defaultNetworkName)
	driver := "bridge"
	if len(o.manifest.Networks) > 0 {
		if def, ok := o.manifest.Networks[defaultNetworkName]; ok && def.Driver != "" {
			driver = def.Driver
		}
	}
	if err := o.caps.Network.Create(ctx, name, driver); err != nil {
		return fmt.Errorf("orchestrator: create network %q: %w", name, err)
	}
	if err := o.store.UpdateNetwork(state.NetworkInfo{Name: name, Driver: driver}); err != nil {
		return err
	}

	for netName, def := range o.manifest.Networks {
		if netName == defaultNetworkName {
			continue
		}
		resName := o.resourceName(netName)
		d := def.Driver
		if d == "" {
			d = "bridge"
		}
		if err := o.caps.Network.Create(ctx, resName, d); err != nil {
			return fmt.Errorf("orchestrator: create network %q: %w", resName, err)
		}
		if err := o.store.UpdateNetwork(state.NetworkInfo{Name: resName, Driver: d}); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) ensureVolumes(ctx context.Context) error {
	for name, def := range o.manifest.Volumes {
		resName := o.resourceName(name)
		driver := def.Driver
		if driver == "" {
			driver = "local"
		}
		path, err := o.caps.Volume.Create(ctx, resName, driver, def.External.Enabled)
		if err != nil {
			return fmt.Errorf("orchestrator: create volume %q: %w", resName, err)
		}
		if err := o.store.UpdateVolume(state.VolumeInfo{Name: resName, Driver: driver, MountPath: path, IsExternal: def.External.Enabled}); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) waitForAllExits(ctx context.Context) error {
	for service, replicas := range o.reg.Known() {
		for replica := range replicas {
			handle, ok := o.reg.RuntimeHandle(service, replica)
			if !ok {
				continue
			}
			exitCode, err := handle.Wait(ctx)
			fields := append(zapFields(o.project, service, replica), zap.Int("exitCode", exitCode))
			if err != nil {
				o.logger.Error("container wait failed", append(fields, zap.Error(err))...)
				continue
			}
			o.logger.Info("container exited", fields...)
			if o.recorder != nil {
				o.recorder.Info(o.project, "container exited", service, replica)
			}
		}
	}
	return nil
}

func zapFields(project, service string, replica int) []zap.Field {
	return []zap.Field{zap.String("project", project), zap.String("service", service), zap.Int("replica", replica)}
}
