package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/compote-dev/compote/config"
	"github.com/compote-dev/compote/internal/dockerrt"
	"github.com/compote-dev/compote/internal/events"
	"github.com/compote-dev/compote/internal/logging"
	"github.com/compote-dev/compote/internal/orchestrator"
	"github.com/compote-dev/compote/internal/portforward"
)

// main dispatches on argv[1] the way the teacher's main.go dispatches "sidecar" into runSidecar:
// re-invoking the same executable in a stripped-down mode instead of shipping a second binary.
// The relay mode never touches fx: it is a short-lived byte pump, not a service with a lifecycle.
func main() {
	if len(os.Args) > 1 && os.Args[1] == portforward.RelaySubcommand {
		if err := runRelay(os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "compote relay:", err)
			os.Exit(1)
		}
		return
	}

	runAgent()
}

func runRelay(args []string) error {
	spec, err := portforward.SpecFromArgs(args)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	relay := portforward.NewRelay(spec, logger)
	return relay.Run(ctx)
}

// runAgent assembles the composition root: config, structured logging, the JSONL event recorder,
// and the Docker-backed capability adapter (internal/dockerrt) standing in for the Linux-VM-backed
// container manager of SPEC_FULL.md §1. The orchestrator core is a library with no CLI or HTTP
// surface by design (§11 Non-goals); this binary exists only to prove the capability interfaces
// wire to a real runtime, the demo role the teacher's main.go plays for its agent and sidecar
// processes.
func runAgent() {
	fx.New(
		config.Module,
		logging.Module,
		events.Module,
		fx.Provide(dockerrt.NewClient),
		fx.Provide(dockerrt.NewImages),
		fx.Provide(dockerrt.NewVolumes),
		fx.Provide(dockerrt.NewNetworks),
		fx.Provide(dockerrt.NewRuntime),
		fx.Provide(portforward.NewOSSupervisor),
		fx.Provide(NewCapabilities),
		fx.Invoke(registerDockerShutdown),
		fx.Invoke(LogReady),
	).Run()
}

// NewCapabilities bundles the concrete dockerrt adapters into the orchestrator.Capabilities seam,
// the only shape internal/orchestrator is willing to accept.
func NewCapabilities(images *dockerrt.Images, volumes *dockerrt.Volumes, networks *dockerrt.Networks, runtime *dockerrt.Runtime, supervisor *portforward.OSSupervisor) orchestrator.Capabilities {
	return orchestrator.Capabilities{
		Image:     images,
		Volume:    volumes,
		Network:   networks,
		Runtime:   runtime,
		Processes: supervisor,
	}
}

func registerDockerShutdown(lc fx.Lifecycle, client *dockerrt.Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}

// LogReady confirms the composition root wired every capability without error. A real product
// would construct an internal/orchestrator.Orchestrator here, one per project, from whatever
// surface it exposes on top of this library.
func LogReady(logger *logging.Logger, cfg *config.Config, caps orchestrator.Capabilities) {
	logger.Info("compote composition root ready",
		zap.String("state_root", cfg.StateRoot),
		zap.String("relay_binary", cfg.RelayBinary),
	)
}
