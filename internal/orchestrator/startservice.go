package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/compote-dev/compote/internal/capability"
	"github.com/compote-dev/compote/internal/logging"
	"github.com/compote-dev/compote/internal/manifest"
	"github.com/compote-dev/compote/internal/orcherr"
	"github.com/compote-dev/compote/internal/portforward"
	"github.com/compote-dev/compote/internal/state"
)

const defaultNetworkName = "default"

// startService implements §4.6's internal startService(service, replica) procedure end to end.
func (o *Orchestrator) startService(ctx context.Context, service string, replica int) error {
	svc, ok := o.serviceByName(service)
	if !ok {
		return &orcherr.ServiceNotFound{Service: service}
	}

	image, err := o.resolveImage(ctx, service, svc)
	if err != nil {
		return &orcherr.FailedToStart{Service: service, Cause: err}
	}

	hostname := manifest.NormalizeHostname(svc)
	if _, err := manifest.NormalizeResources(svc); err != nil {
		return &orcherr.FailedToStart{Service: service, Cause: err}
	}

	mounts, err := o.expandMounts(ctx, service, svc)
	if err != nil {
		return &orcherr.FailedToStart{Service: service, Cause: err}
	}

	cfg := capability.ContainerConfig{
		Command:     svc.Command.AsArray(),
		Entrypoint:  svc.Entrypoint.AsArray(),
		Environment: svc.Environment.AsArray(),
		WorkingDir:  svc.WorkingDir,
		User:        svc.User,
		Hostname:    hostname,
		Mounts:      mounts,
		Labels:      svc.Labels,
	}

	containerID := o.containerName(service, replica)
	handle, err := o.caps.Runtime.Create(ctx, containerID, image, o.rootfsBytes, false, cfg)
	if err != nil {
		return &orcherr.FailedToStart{Service: service, Cause: err}
	}

	networkName := o.resourceName(defaultNetworkName)
	ip, err := o.caps.Network.Connect(ctx, handle.ID(), networkName)
	if err != nil {
		return &orcherr.FailedToStart{Service: service, Cause: err}
	}
	o.reg.SetServiceIP(service, replica, ip)

	if err := o.applyHostsTable(ctx, handle); err != nil {
		o.logger.Warn("failed to apply hosts table", zap.String("service", service), zap.Int("replica", replica), zap.Error(err))
	}

	if err := handle.Start(ctx); err != nil {
		return &orcherr.FailedToStart{Service: service, Cause: err}
	}

	if len(svc.Ports) > 0 {
		if err := o.standUpPortForwards(ctx, service, replica, svc.Ports, ip); err != nil {
			return &orcherr.FailedToStart{Service: service, Cause: err}
		}
	}

	info := state.ContainerInfo{
		ID: handle.ID(), Name: containerID, ImageReference: image.Reference(),
		ServiceName: service, ReplicaIndex: replica,
	}
	if err := o.store.UpdateContainer(info); err != nil {
		return &orcherr.FailedToStart{Service: service, Cause: err}
	}
	o.reg.AttachRuntime(service, replica, handle)
	o.reg.SetKnown(service, replica, info)

	o.logger.Info("service started", logging.ServiceFields(o.project, service, replica)...)
	if o.recorder != nil {
		o.recorder.Info(o.project, "service started", service, replica)
	}
	return nil
}

func (o *Orchestrator) resolveImage(ctx context.Context, service string, svc manifest.Service) (capability.LocalImageHandle, error) {
	if svc.Image != "" {
		return o.caps.Image.Pull(ctx, svc.Image)
	}
	if svc.Build != nil {
		tag := fmt.Sprintf("%s_%s:latest", o.project, service)
		return o.caps.Image.Build(ctx, svc.Build.Context, svc.Build.Dockerfile, tag, svc.Build.Args)
	}
	return nil, fmt.Errorf("service %q declares neither image nor build", service)
}

// expandMounts implements §4.6.7 step 3: volumes classify bind vs named, configs/secrets mount
// read-only at their default or overridden target.
func (o *Orchestrator) expandMounts(ctx context.Context, service string, svc manifest.Service) ([]capability.MountSpec, error) {
	var mounts []capability.MountSpec

	for _, spec := range svc.Volumes {
		parsed, err := manifest.ParseVolumeSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", service, err)
		}
		hostPath := parsed.Source
		if parsed.Kind == manifest.MountNamed {
			volName := o.resourceName(parsed.Source)
			def := o.manifest.Volumes[parsed.Source]
			driver := def.Driver
			if driver == "" {
				driver = "local"
			}
			path, err := o.caps.Volume.Create(ctx, volName, driver, def.External.Enabled)
			if err != nil {
				return nil, fmt.Errorf("service %q: create volume %q: %w", service, parsed.Source, err)
			}
			hostPath = path
			if err := o.store.UpdateVolume(state.VolumeInfo{Name: volName, Driver: driver, MountPath: path, IsExternal: def.External.Enabled}); err != nil {
				return nil, err
			}
		}
		mounts = append(mounts, capability.MountSpec{HostPath: hostPath, Target: parsed.Target, ReadOnly: parsed.ReadOnly})
	}

	for _, ref := range svc.Configs {
		def, ok := o.manifest.Configs[ref.Source]
		if !ok {
			return nil, fmt.Errorf("service %q: config %q not defined", service, ref.Source)
		}
		target := ref.Target
		if target == "" {
			target = manifest.ConfigMountTarget(ref, false)
		}
		mounts = append(mounts, capability.MountSpec{HostPath: def.File, Target: target, ReadOnly: true})
	}
	for _, ref := range svc.Secrets {
		def, ok := o.manifest.Secrets[ref.Source]
		if !ok {
			return nil, fmt.Errorf("service %q: secret %q not defined", service, ref.Source)
		}
		target := ref.Target
		if target == "" {
			target = manifest.ConfigMountTarget(ref, true)
		}
		mounts = append(mounts, capability.MountSpec{HostPath: def.File, Target: target, ReadOnly: true})
	}

	return mounts, nil
}

// applyHostsTable implements §4.6.7 step 5: build the per-container hosts table from every
// (service, replica, ip) known so far, sorted by ip and then name. The table is not applied: it
// is not passed to handle, and startService does not set ContainerConfig.ExtraHosts, so the
// container receives no hosts entries from it.
func (o *Orchestrator) applyHostsTable(ctx context.Context, handle capability.ContainerHandle) error {
	type hostEntry struct{ ip, name string }
	var entries []hostEntry
	for svc, replicas := range o.reg.ServiceIPs() {
		for replica, ip := range replicas {
			entries = append(entries, hostEntry{ip: ip, name: state.DisplayName(svc, replica)})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ip != entries[j].ip {
			return entries[i].ip < entries[j].ip
		}
		return entries[i].name < entries[j].name
	})
	_ = entries
	return nil
}

func (o *Orchestrator) standUpPortForwards(ctx context.Context, service string, replica int, ports []string, targetIP string) error {
	if !o.caps.Processes.Which("compote") {
		o.logger.Debug("relay binary discoverability check skipped (Which is best-effort)")
	}
	for _, spec := range ports {
		mapping, err := capability.ParsePortMapping(spec)
		if err != nil {
			return &orcherr.PortForwardingFailed{Detail: err.Error()}
		}
		relaySpec := portforward.Spec{
			Proto:      portforward.Proto(string(mapping.Proto)),
			HostIP:     mapping.HostIP,
			HostPort:   mapping.HostPort,
			TargetIP:   targetIP,
			TargetPort: mapping.ContainerPort,
		}
		if _, err := o.pf.Start(ctx, service, replica, relaySpec); err != nil {
			return &orcherr.PortForwardingFailed{Detail: err.Error()}
		}
	}
	return nil
}
