package manifest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/docker/go-units"
)

// NormalizedResources is startService's view of a container's resource limits (§4.6.7): a byte
// count and a whole CPU count, ready for the runtime capability's create() call.
type NormalizedResources struct {
	MemoryBytes int64
	CPUs        int
}

// NormalizeHostname applies the "default: service name" rule of §4.6.7 step 2.
func NormalizeHostname(svc Service) string {
	if svc.Hostname != "" {
		return svc.Hostname
	}
	return svc.Name
}

// NormalizeResources parses deploy.resources.limits.{cpus,memory} with docker/go-units, the same
// library the teacher's runtime adapter uses for memory-string parsing. A missing Deploy or
// Resources block normalizes to the zero value (no limit).
func NormalizeResources(svc Service) (NormalizedResources, error) {
	var out NormalizedResources
	if svc.Deploy == nil || svc.Deploy.Resources == nil {
		return out, nil
	}
	limits := svc.Deploy.Resources

	if limits.Memory != "" {
		bytes, err := units.RAMInBytes(limits.Memory)
		if err != nil {
			return out, fmt.Errorf("service %q: invalid memory limit %q: %w", svc.Name, limits.Memory, err)
		}
		out.MemoryBytes = bytes
	}

	if limits.CPUs != "" {
		cpus, err := strconv.ParseFloat(limits.CPUs, 64)
		if err != nil {
			return out, fmt.Errorf("service %q: invalid cpu limit %q: %w", svc.Name, limits.CPUs, err)
		}
		out.CPUs = int(math.Floor(cpus))
	}

	return out, nil
}

// NormalizeEnvironment merges a resolved env-file view (already interpolated by internal/envsubst)
// under the service's own `environment:` entries, which win on conflict per §4.1 "merging multiple
// environments applies later overrides".
func NormalizeEnvironment(svc Service, fromFiles map[string]string) Environment {
	merged := make(map[string]string, len(fromFiles)+len(svc.Environment.AsDictionary()))
	for k, v := range fromFiles {
		merged[k] = v
	}
	for k, v := range svc.Environment.AsDictionary() {
		merged[k] = v
	}
	return NewEnvironmentFromMap(merged)
}

// MountKind distinguishes a bind mount from a named volume per the §6.2 volume-mount grammar.
type MountKind int

const (
	MountBind MountKind = iota
	MountNamed
)

type ParsedMount struct {
	Kind     MountKind
	Source   string
	Target   string
	ReadOnly bool
}

// ParseVolumeSpec implements the `src[:dst[:ro]]` grammar of §6.2. A source beginning with `/`,
// `.`, or `~` is a bind mount; anything else is a named volume, which the caller maps to
// `"{project}_{source}"` before calling the volume capability (§4.6.7 step 3).
func ParseVolumeSpec(spec string) (ParsedMount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 1 || len(parts) > 3 || parts[0] == "" {
		return ParsedMount{}, fmt.Errorf("invalid volume mount spec %q", spec)
	}

	m := ParsedMount{Source: parts[0]}
	if len(parts) >= 2 {
		m.Target = parts[1]
	} else {
		m.Target = parts[0]
	}
	if len(parts) == 3 {
		if parts[2] != "ro" {
			return ParsedMount{}, fmt.Errorf("invalid volume mount spec %q: unknown option %q", spec, parts[2])
		}
		m.ReadOnly = true
	}

	if strings.HasPrefix(m.Source, "/") || strings.HasPrefix(m.Source, ".") || strings.HasPrefix(m.Source, "~") {
		m.Kind = MountBind
	} else {
		m.Kind = MountNamed
	}
	return m, nil
}

// ConfigMountTarget resolves the default mount path for a configs[*]/secrets[*] reference
// (§4.6.7 step 3): `/{name}` for configs, `/run/secrets/{name}` for secrets.
func ConfigMountTarget(ref ConfigReference, isSecret bool) string {
	if ref.Target != "" {
		return ref.Target
	}
	if isSecret {
		return "/run/secrets/" + ref.Source
	}
	return "/" + ref.Source
}
