package events

import (
	"context"

	"github.com/compote-dev/compote/config"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewRecorderFromConfig),
	fx.Invoke(registerShutdown),
)

func NewRecorderFromConfig(cfg *config.Config) (*Recorder, error) {
	maxSizeBytes := int64(cfg.EventsLogSizeLimitMB) * 1024 * 1024
	return NewRecorder(cfg.EventsLogEnabled, cfg.EventsLogFilePath, maxSizeBytes)
}

func registerShutdown(lc fx.Lifecycle, r *Recorder) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.Close()
		},
	})
}
