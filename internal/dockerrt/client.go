// Package dockerrt is the concrete, Docker-backed implementation of internal/capability's five
// interfaces (SPEC_FULL.md §12). It is demo-only wiring: the orchestrator core never imports it,
// only main.go's composition root does, grounded on the teacher's internal/docker.Client wrapper
// around docker/docker/client.
package dockerrt

import (
	"fmt"

	"github.com/docker/docker/client"
)

// Client wraps a negotiated Docker API client the way the teacher's docker.Client does.
type Client struct {
	cli *client.Client
}

func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("dockerrt: failed to create docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}
