package dockerrt

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"

	"github.com/compote-dev/compote/internal/capability"
)

// imageHandle carries the fully normalized reference a pulled or built image resolves to, per
// §9's open question: normalization happens here, not in the manifest.
type imageHandle struct{ ref string }

func (h *imageHandle) Reference() string { return h.ref }

var (
	_ capability.LocalImageHandle = (*imageHandle)(nil)
	_ capability.ImageCapability  = (*Images)(nil)
)

// Images implements capability.ImageCapability against the Docker daemon, grounded on the
// reference-normalization pattern in PlanktoScope-forklift's internal/clients/docker/images.go.
type Images struct {
	client *Client
}

func NewImages(c *Client) *Images { return &Images{client: c} }

func normalizeReference(raw string) (string, error) {
	named, err := reference.ParseNormalizedNamed(raw)
	if err != nil {
		return "", fmt.Errorf("dockerrt: invalid image reference %q: %w", raw, err)
	}
	if reference.IsNameOnly(named) {
		named = reference.TagNameOnly(named)
	}
	return named.String(), nil
}

func (im *Images) Pull(ctx context.Context, ref string) (capability.LocalImageHandle, error) {
	normalized, err := normalizeReference(ref)
	if err != nil {
		return nil, err
	}
	rc, err := im.client.cli.ImagePull(ctx, normalized, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("dockerrt: pull %q: %w", normalized, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return nil, fmt.Errorf("dockerrt: pull %q: reading progress stream: %w", normalized, err)
	}
	return &imageHandle{ref: normalized}, nil
}

func (im *Images) Build(ctx context.Context, buildContext, dockerfile, tag string, buildArgs map[string]string) (capability.LocalImageHandle, error) {
	tarBuf, err := tarDirectory(buildContext)
	if err != nil {
		return nil, fmt.Errorf("dockerrt: build %q: package context: %w", tag, err)
	}

	args := make(map[string]*string, len(buildArgs))
	for k, v := range buildArgs {
		v := v
		args[k] = &v
	}

	resp, err := im.client.cli.ImageBuild(ctx, tarBuf, types.ImageBuildOptions{
		Dockerfile: dockerfile,
		Tags:       []string{tag},
		BuildArgs:  args,
		Remove:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("dockerrt: build %q: %w", tag, err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return nil, fmt.Errorf("dockerrt: build %q: reading build stream: %w", tag, err)
	}
	return &imageHandle{ref: tag}, nil
}

func (im *Images) Push(ctx context.Context, ref string) error {
	rc, err := im.client.cli.ImagePush(ctx, ref, image.PushOptions{})
	if err != nil {
		return fmt.Errorf("dockerrt: push %q: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("dockerrt: push %q: reading progress stream: %w", ref, err)
	}
	return nil
}

// tarDirectory packages a build context directory into an in-memory tar stream. The Docker build
// API only accepts a tar reader; the core never sees this, it lives entirely behind ImageCapability.
func tarDirectory(dir string) (io.Reader, error) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)

	err := filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dockerrt: walk build context %q: %w", dir, err)
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}
