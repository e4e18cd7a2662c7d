package manifest

import (
	"fmt"
	"sort"

	"github.com/compose-spec/compose-go/v2/types"
)

// FromComposeProject is the sole boundary between this package and YAML decoding. It accepts an
// already-decoded compose-go/v2 project (SPEC_FULL.md §12.4 — decoding the document itself is a
// Non-goal of the core) and produces the tagged-variant model the rest of the orchestrator works
// against. Nothing downstream of this function ever imports compose-go/v2 types.
func FromComposeProject(project *types.Project) (*ComposeFile, error) {
	if project == nil {
		return nil, fmt.Errorf("manifest: nil compose project")
	}

	cf := &ComposeFile{
		Version:  project.Environment["COMPOSE_PROJECT_VERSION"],
		Services: make(map[string]Service, len(project.Services)),
		Networks: make(map[string]Network, len(project.Networks)),
		Volumes:  make(map[string]Volume, len(project.Volumes)),
		Configs:  make(map[string]ConfigDef, len(project.Configs)),
		Secrets:  make(map[string]SecretDef, len(project.Secrets)),
	}

	for name, svc := range project.Services {
		converted, err := convertService(name, svc)
		if err != nil {
			return nil, fmt.Errorf("manifest: service %q: %w", name, err)
		}
		cf.Services[name] = converted
	}

	for name, net := range project.Networks {
		cf.Networks[name] = convertNetwork(net)
	}
	for name, vol := range project.Volumes {
		cf.Volumes[name] = convertVolume(vol)
	}
	for name, cfg := range project.Configs {
		cf.Configs[name] = ConfigDef{
			File:     cfg.File,
			External: NewExternalFromBool(bool(cfg.External)),
		}
	}
	for name, sec := range project.Secrets {
		cf.Secrets[name] = SecretDef{
			File:     sec.File,
			External: NewExternalFromBool(bool(sec.External)),
		}
	}

	return cf, nil
}

func convertService(name string, svc types.ServiceConfig) (Service, error) {
	out := Service{
		Name:       name,
		Image:      svc.Image,
		Hostname:   svc.Hostname,
		WorkingDir: svc.WorkingDir,
		User:       svc.User,
		Restart:    svc.Restart,
		Labels:     map[string]string(svc.Labels),
		Profiles:   append([]string(nil), svc.Profiles...),
		Ports:      convertPorts(svc.Ports),
		Volumes:    convertVolumeMounts(svc.Volumes),
		Tmpfs:      append([]string(nil), svc.Tmpfs...),
	}

	if len(svc.Command) > 0 {
		out.Command = NewCommandFromList([]string(svc.Command))
	}
	if len(svc.Entrypoint) > 0 {
		out.Entrypoint = NewCommandFromList([]string(svc.Entrypoint))
	}

	env := make(map[string]string, len(svc.Environment))
	for k, v := range svc.Environment {
		if v != nil {
			env[k] = *v
		} else {
			env[k] = ""
		}
	}
	out.Environment = NewEnvironmentFromMap(env)

	if len(svc.EnvFiles) > 0 {
		paths := make([]string, len(svc.EnvFiles))
		for i, ef := range svc.EnvFiles {
			paths[i] = ef.Path
		}
		out.EnvFiles = NewEnvFileFromList(paths)
	}

	if svc.Build != nil {
		out.Build = &Build{
			Context:    svc.Build.Context,
			Dockerfile: svc.Build.Dockerfile,
			Args:       stringPtrMapToMap(svc.Build.Args),
			Target:     svc.Build.Target,
		}
	}

	deps := make(map[string]DependsOnEntry, len(svc.DependsOn))
	for depName, dep := range svc.DependsOn {
		cond := ConditionServiceStarted
		if dep.Condition == types.ServiceConditionHealthy {
			cond = ConditionServiceHealthy
		}
		deps[depName] = DependsOnEntry{Condition: cond, Restart: dep.Restart}
	}
	out.DependsOn = NewDependsOnFromMap(deps)

	if svc.HealthCheck != nil {
		out.Healthcheck = convertHealthcheck(svc.HealthCheck)
	}

	if svc.Deploy != nil {
		out.Deploy = convertDeploy(svc.Deploy)
	}

	out.Configs = convertConfigRefs(svc.Configs)
	out.Secrets = convertSecretRefs(svc.Secrets)

	if len(svc.Networks) > 0 {
		attachments := make(map[string]NetworkAttachment, len(svc.Networks))
		for netName, cfg := range svc.Networks {
			if cfg == nil {
				attachments[netName] = NetworkAttachment{}
				continue
			}
			attachments[netName] = NetworkAttachment{
				Aliases:     append([]string(nil), cfg.Aliases...),
				IPv4Address: cfg.Ipv4Address,
			}
		}
		out.Networks = NewNetworksFromMap(attachments)
	}

	return out, nil
}

func convertPorts(ports []types.ServicePortConfig) []string {
	out := make([]string, 0, len(ports))
	for _, p := range ports {
		spec := fmt.Sprintf("%s:%d", p.Published, p.Target)
		if p.Protocol != "" {
			spec = fmt.Sprintf("%s/%s", spec, p.Protocol)
		}
		if p.HostIP != "" {
			spec = fmt.Sprintf("%s:%s", p.HostIP, spec)
		}
		out = append(out, spec)
	}
	return out
}

func convertVolumeMounts(vols []types.ServiceVolumeConfig) []string {
	out := make([]string, 0, len(vols))
	for _, v := range vols {
		spec := v.Source + ":" + v.Target
		if v.ReadOnly {
			spec += ":ro"
		}
		out = append(out, spec)
	}
	return out
}

func convertConfigRefs(refs []types.ServiceConfigObjConfig) []ConfigReference {
	out := make([]ConfigReference, 0, len(refs))
	for _, r := range refs {
		target := r.Target
		out = append(out, ConfigReference{Source: r.Source, Target: target})
	}
	return out
}

func convertSecretRefs(refs []types.ServiceSecretConfig) []ConfigReference {
	out := make([]ConfigReference, 0, len(refs))
	for _, r := range refs {
		target := r.Target
		out = append(out, ConfigReference{Source: r.Source, Target: target})
	}
	return out
}

func convertHealthcheck(hc *types.HealthCheckConfig) *Healthcheck {
	out := &Healthcheck{Disable: hc.Disable}
	if len(hc.Test) > 1 {
		out.Test = NewCommandFromList(hc.Test[1:])
	}
	if hc.Interval != nil {
		out.Interval = hc.Interval.String()
	}
	if hc.Timeout != nil {
		out.Timeout = hc.Timeout.String()
	}
	if hc.Retries != nil {
		out.Retries = int(*hc.Retries)
	}
	if hc.StartPeriod != nil {
		out.StartPeriod = hc.StartPeriod.String()
	}
	return out
}

func convertDeploy(d *types.DeployConfig) *Deploy {
	out := &Deploy{Replicas: 1}
	if d.Replicas != nil {
		out.Replicas = *d.Replicas
	}
	if d.RestartPolicy != nil {
		out.RestartPolicy = d.RestartPolicy.Condition
	}
	if d.Resources.Limits != nil {
		out.Resources = &ResourceLimits{
			CPUs:   fmt.Sprintf("%g", float32(d.Resources.Limits.NanoCPUs)),
			Memory: fmt.Sprintf("%d", int64(d.Resources.Limits.MemoryBytes)),
		}
	}
	return out
}

func convertNetwork(n types.NetworkConfig) Network {
	pools := make([]IPAMPool, 0, len(n.Ipam.Config))
	for _, p := range n.Ipam.Config {
		pools = append(pools, IPAMPool{Subnet: p.Subnet, Gateway: p.Gateway})
	}
	return Network{
		Driver:     n.Driver,
		DriverOpts: n.DriverOpts,
		IPAMPools:  pools,
		External:   NewExternalFromBool(bool(n.External)),
		Internal:   n.Internal,
		Attachable: n.Attachable,
		Labels:     map[string]string(n.Labels),
		Name:       n.Name,
	}
}

func convertVolume(v types.VolumeConfig) Volume {
	return Volume{
		Driver:     v.Driver,
		DriverOpts: v.DriverOpts,
		External:   NewExternalFromBool(bool(v.External)),
		Labels:     map[string]string(v.Labels),
		Name:       v.Name,
	}
}

func stringPtrMapToMap(m types.MappingWithEquals) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// sortedKeys is used by validate.go and normalize.go wherever deterministic map iteration matters.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
