package dockerrt

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"

	"github.com/compote-dev/compote/internal/capability"
)

// Volumes implements capability.VolumeCapability over named Docker volumes.
type Volumes struct {
	client *Client
}

var _ capability.VolumeCapability = (*Volumes)(nil)

func NewVolumes(c *Client) *Volumes { return &Volumes{client: c} }

func (v *Volumes) Create(ctx context.Context, name, driver string, external bool) (string, error) {
	if external {
		vol, err := v.client.cli.VolumeInspect(ctx, name)
		if err != nil {
			return "", fmt.Errorf("dockerrt: external volume %q not found: %w", name, err)
		}
		return vol.Mountpoint, nil
	}

	vol, err := v.client.cli.VolumeCreate(ctx, volume.CreateOptions{Name: name, Driver: driver})
	if err != nil {
		return "", fmt.Errorf("dockerrt: create volume %q: %w", name, err)
	}
	return vol.Mountpoint, nil
}

func (v *Volumes) Remove(ctx context.Context, name string, external bool) error {
	if external {
		return nil
	}
	if err := v.client.cli.VolumeRemove(ctx, name, false); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("dockerrt: remove volume %q: %w", name, err)
	}
	return nil
}
