// Package orchestrator implements the single logical actor that drives up/down/start/stop/
// restart/scale/pull/push/exec/logs/ps (SPEC_FULL.md §4.6, §5). It is the composition point for
// every other internal package: manifest, depgraph, envsubst, capability, healthcheck, state,
// registry, events, and logging.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/compote-dev/compote/internal/capability"
	"github.com/compote-dev/compote/internal/depgraph"
	"github.com/compote-dev/compote/internal/events"
	"github.com/compote-dev/compote/internal/healthcheck"
	"github.com/compote-dev/compote/internal/logging"
	"github.com/compote-dev/compote/internal/manifest"
	"github.com/compote-dev/compote/internal/portforward"
	"github.com/compote-dev/compote/internal/registry"
	"github.com/compote-dev/compote/internal/state"
)

// Capabilities bundles every injected runtime dependency the orchestrator drives (§6.1). It is
// the single seam a test double or the real internal/dockerrt adapter fills in.
type Capabilities struct {
	Image     capability.ImageCapability
	Volume    capability.VolumeCapability
	Network   capability.NetworkCapability
	Runtime   capability.RuntimeCapability
	Processes capability.ProcessSupervisor
}

// Orchestrator owns one project's manifest and all mutable orchestration state. Every public
// method takes actorMu, matching §5's "single logical actor" requirement: no two commands
// interleave on runtime/known/serviceIPs/portForwardPids.
type Orchestrator struct {
	actorMu sync.Mutex

	project  string
	manifest *manifest.ComposeFile
	graph    *depgraph.Graph

	caps  Capabilities
	store *state.Store
	reg   *registry.Registry
	pf    *portforward.Manager
	hc    *healthcheck.Tracker

	rootfsBytes int64

	logger   *logging.Logger
	recorder *events.Recorder
}

// New builds an Orchestrator for one project. cf must already satisfy manifest.Validate.
func New(
	project string,
	cf *manifest.ComposeFile,
	caps Capabilities,
	store *state.Store,
	pf *portforward.Manager,
	rootfsBytes int64,
	logger *logging.Logger,
	recorder *events.Recorder,
) (*Orchestrator, error) {
	graph, err := depgraph.Build(cf)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build dependency graph: %w", err)
	}

	return &Orchestrator{
		project:     project,
		manifest:    cf,
		graph:       graph,
		caps:        caps,
		store:       store,
		reg:         registry.New(store),
		pf:          pf,
		hc:          healthcheck.NewTracker(),
		rootfsBytes: rootfsBytes,
		logger:      logger,
		recorder:    recorder,
	}, nil
}

// hydrate performs the one-shot registry hydration required before any command touches runtime
// state (§4.3). It is idempotent and called at the top of every public command.
func (o *Orchestrator) hydrate() {
	o.reg.Hydrate(func(err error) {
		fields := append(logging.ServiceFields(o.project, "", 0), zap.Error(err))
		o.logger.Warn("state hydration failed, treating project state as empty", fields...)
		if o.recorder != nil {
			o.recorder.Warn(o.project, "state hydration failed", "", 0, err)
		}
	})
}

func (o *Orchestrator) resourceName(name string) string {
	return state.ResourceName(o.project, name)
}

func (o *Orchestrator) containerName(service string, replica int) string {
	return state.ContainerName(o.project, service, replica)
}

// serviceByName looks up a manifest service; ok is false if it is absent. Callers turn a miss into
// orcherr.ServiceNotFound themselves; this just centralizes the map lookup.
func (o *Orchestrator) serviceByName(name string) (manifest.Service, bool) {
	svc, ok := o.manifest.Services[name]
	return svc, ok
}

func (o *Orchestrator) allServiceNames() []string {
	names := make([]string, 0, len(o.manifest.Services))
	for name := range o.manifest.Services {
		names = append(names, name)
	}
	return names
}

// filterBatches restricts each batch to services present in allowed (nil allowed means no
// filter), dropping batches that become empty, preserving batch order.
func filterBatches(batches [][]string, allowed map[string]bool) [][]string {
	if allowed == nil {
		return batches
	}
	out := make([][]string, 0, len(batches))
	for _, batch := range batches {
		var kept []string
		for _, svc := range batch {
			if allowed[svc] {
				kept = append(kept, svc)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}

func reverseBatches(batches [][]string) [][]string {
	out := make([][]string, len(batches))
	for i, b := range batches {
		out[len(batches)-1-i] = b
	}
	return out
}

// runBatchParallel runs fn for every service in a batch concurrently, returning the first error
// encountered (after every goroutine has finished, per §5's "wait for the batch to complete").
func runBatchParallel(ctx context.Context, batch []string, fn func(ctx context.Context, service string) error) error {
	var wg sync.WaitGroup
	errs := make([]error, len(batch))
	for i, svc := range batch {
		wg.Add(1)
		go func(i int, svc string) {
			defer wg.Done()
			errs[i] = fn(ctx, svc)
		}(i, svc)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
