package dockerrt

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/compote-dev/compote/internal/capability"
)

// Runtime implements capability.RuntimeCapability over the Docker container API. Create accepts
// rootfsBytes but does not pass it to Docker: the container's root filesystem size is not
// constrained by this adapter.
type Runtime struct {
	client *Client
}

func NewRuntime(c *Client) *Runtime { return &Runtime{client: c} }

func (r *Runtime) Create(ctx context.Context, id string, image capability.LocalImageHandle, rootfsBytes int64, readOnly bool, cfg capability.ContainerConfig) (capability.ContainerHandle, error) {
	mounts := make([]mount.Mount, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.HostPath,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	extraHosts := make([]string, 0, len(cfg.ExtraHosts))
	for ip, name := range cfg.ExtraHosts {
		extraHosts = append(extraHosts, name+":"+ip)
	}

	resp, err := r.client.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      image.Reference(),
			Cmd:        cfg.Command,
			Entrypoint: cfg.Entrypoint,
			Env:        cfg.Environment,
			WorkingDir: cfg.WorkingDir,
			User:       cfg.User,
			Hostname:   cfg.Hostname,
			Labels:     cfg.Labels,
		},
		&container.HostConfig{
			Mounts:         mounts,
			ExtraHosts:     extraHosts,
			ReadonlyRootfs: readOnly,
		},
		nil, nil, id,
	)
	if err != nil {
		return nil, fmt.Errorf("dockerrt: create container %q: %w", id, err)
	}

	return &ContainerHandle{client: r.client, id: resp.ID}, nil
}

// ContainerHandle implements capability.ContainerHandle against a live Docker container.
type ContainerHandle struct {
	client *Client
	id     string
}

func (h *ContainerHandle) ID() string { return h.id }

func (h *ContainerHandle) Start(ctx context.Context) error {
	if err := h.client.cli.ContainerStart(ctx, h.id, container.StartOptions{}); err != nil {
		return fmt.Errorf("dockerrt: start %q: %w", h.id, err)
	}
	return nil
}

func (h *ContainerHandle) Stop(ctx context.Context, timeout int) error {
	if err := h.client.cli.ContainerStop(ctx, h.id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("dockerrt: stop %q: %w", h.id, err)
	}
	return nil
}

func (h *ContainerHandle) Delete(ctx context.Context) error {
	if err := h.client.cli.ContainerRemove(ctx, h.id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("dockerrt: delete %q: %w", h.id, err)
	}
	return nil
}

func (h *ContainerHandle) Wait(ctx context.Context) (int, error) {
	statusCh, errCh := h.client.cli.ContainerWait(ctx, h.id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return 0, fmt.Errorf("dockerrt: wait %q: %w", h.id, err)
	case status := <-statusCh:
		return int(status.StatusCode), nil
	}
}

func (h *ContainerHandle) Exec(ctx context.Context, argv []string, env []string) (int, error) {
	created, err := h.client.cli.ContainerExecCreate(ctx, h.id, container.ExecOptions{
		Cmd: argv, Env: env, AttachStdout: true, AttachStderr: true,
	})
	if err != nil {
		return 0, fmt.Errorf("dockerrt: exec create on %q: %w", h.id, err)
	}

	resp, err := h.client.cli.ContainerExecAttach(ctx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return 0, fmt.Errorf("dockerrt: exec attach on %q: %w", h.id, err)
	}
	defer resp.Close()
	io.Copy(io.Discard, resp.Reader)

	inspect, err := h.client.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return 0, fmt.Errorf("dockerrt: exec inspect on %q: %w", h.id, err)
	}
	return inspect.ExitCode, nil
}

func (h *ContainerHandle) Logs(ctx context.Context, tail int, follow bool) (io.ReadCloser, error) {
	opts := container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: follow}
	if tail > 0 {
		opts.Tail = fmt.Sprintf("%d", tail)
	}
	raw, err := h.client.cli.ContainerLogs(ctx, h.id, opts)
	if err != nil {
		return nil, fmt.Errorf("dockerrt: logs %q: %w", h.id, err)
	}
	return demultiplexedLogs(raw), nil
}

// demultiplexedLogs strips Docker's stdout/stderr multiplexing frame headers so callers see plain
// lines, using docker's own stdcopy the way the daemon's CLI does.
func demultiplexedLogs(raw io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, raw)
		raw.Close()
		pw.CloseWithError(err)
	}()
	return pr
}

func (h *ContainerHandle) IsRunning(ctx context.Context) (bool, error) {
	inspect, err := h.client.cli.ContainerInspect(ctx, h.id)
	if err != nil {
		return false, fmt.Errorf("dockerrt: inspect %q: %w", h.id, err)
	}
	return inspect.State.Running, nil
}

var (
	_ capability.RuntimeCapability = (*Runtime)(nil)
	_ capability.ContainerHandle   = (*ContainerHandle)(nil)
)
