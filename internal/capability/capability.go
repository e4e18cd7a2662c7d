// Package capability declares the narrow, injected interfaces the orchestrator core consumes to
// manipulate images, volumes, networks, containers, and host processes (SPEC_FULL.md §6.1). The
// core never imports a concrete runtime; internal/dockerrt is one implementation of these
// interfaces, wired at the composition root, not by the core itself.
package capability

import (
	"context"
	"io"
)

// ImageCapability pulls, builds, and pushes container images.
type ImageCapability interface {
	// Pull fetches reference, returning a handle usable by RuntimeCapability.Create. Idempotent.
	Pull(ctx context.Context, reference string) (LocalImageHandle, error)
	// Build produces an image from a local build context, tagged with tag.
	Build(ctx context.Context, buildContext, dockerfile, tag string, buildArgs map[string]string) (LocalImageHandle, error)
	Push(ctx context.Context, reference string) error
}

// LocalImageHandle is an opaque, runtime-resolvable reference to a pulled or built image.
type LocalImageHandle interface {
	Reference() string
}

// VolumeCapability manages named and bind-mounted volumes.
type VolumeCapability interface {
	// Create is idempotent by name; hostPath is where the volume's data lives on the host.
	Create(ctx context.Context, name, driver string, external bool) (hostPath string, err error)
	// Remove is a no-op if the volume is absent, and skipped entirely for external volumes.
	Remove(ctx context.Context, name string, external bool) error
}

// NetworkCapability manages project-scoped bridge networks.
type NetworkCapability interface {
	Create(ctx context.Context, name, driver string) error
	Connect(ctx context.Context, containerID, networkName string) (ipAddress string, err error)
	Remove(ctx context.Context, name string) error
}

// ContainerConfig is the normalized per-container spec startService builds before calling Create.
type ContainerConfig struct {
	Command     []string
	Entrypoint  []string
	Environment []string
	WorkingDir  string
	User        string
	Hostname    string
	Mounts      []MountSpec
	ExtraHosts  map[string]string
	Labels      map[string]string
}

type MountSpec struct {
	HostPath string
	Target   string
	ReadOnly bool
}

// RuntimeCapability drives one container's lifecycle end to end.
type RuntimeCapability interface {
	Create(ctx context.Context, id string, image LocalImageHandle, rootfsBytes int64, readOnly bool, cfg ContainerConfig) (ContainerHandle, error)
}

// ContainerHandle is the live handle to a created container.
type ContainerHandle interface {
	ID() string
	Start(ctx context.Context) error
	Stop(ctx context.Context, timeout int) error
	Delete(ctx context.Context) error
	Wait(ctx context.Context) (exitCode int, err error)
	Exec(ctx context.Context, argv []string, env []string) (exitCode int, err error)
	Logs(ctx context.Context, tail int, follow bool) (io.ReadCloser, error)
	IsRunning(ctx context.Context) (bool, error)
}

// ProcessSupervisor spawns and terminates host-side child processes (port-forward relays).
type ProcessSupervisor interface {
	Spawn(ctx context.Context, argv []string) (pid int, err error)
	Terminate(pid int) error
	Which(tool string) bool
}
