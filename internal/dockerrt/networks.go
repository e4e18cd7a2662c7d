package dockerrt

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/network"

	"github.com/compote-dev/compote/internal/capability"
)

// Networks implements capability.NetworkCapability over Docker bridge networks, grounded on the
// teacher's internal/docker.Client network inspection helpers.
type Networks struct {
	client *Client
}

var _ capability.NetworkCapability = (*Networks)(nil)

func NewNetworks(c *Client) *Networks { return &Networks{client: c} }

func (n *Networks) Create(ctx context.Context, name, driver string) error {
	if driver == "" {
		driver = "bridge"
	}
	existing, err := n.client.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return fmt.Errorf("dockerrt: list networks: %w", err)
	}
	for _, net := range existing {
		if net.Name == name {
			return nil
		}
	}
	if _, err := n.client.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: driver}); err != nil {
		return fmt.Errorf("dockerrt: create network %q: %w", name, err)
	}
	return nil
}

func (n *Networks) Connect(ctx context.Context, containerID, networkName string) (string, error) {
	if err := n.client.cli.NetworkConnect(ctx, networkName, containerID, nil); err != nil {
		return "", fmt.Errorf("dockerrt: connect %q to %q: %w", containerID, networkName, err)
	}
	inspected, err := n.client.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("dockerrt: inspect %q after connect: %w", containerID, err)
	}
	if settings, ok := inspected.NetworkSettings.Networks[networkName]; ok {
		return settings.IPAddress, nil
	}
	return "", fmt.Errorf("dockerrt: %q has no address on network %q after connect", containerID, networkName)
}

func (n *Networks) Remove(ctx context.Context, name string) error {
	if err := n.client.cli.NetworkRemove(ctx, name); err != nil {
		return fmt.Errorf("dockerrt: remove network %q: %w", name, err)
	}
	return nil
}
