package logging

import (
	"context"

	"github.com/compote-dev/compote/config"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewLoggerFromConfig),
	fx.Invoke(registerShutdown),
)

func NewLoggerFromConfig(cfg *config.Config) (*Logger, error) {
	return NewLogger(cfg.LogLevel)
}

func registerShutdown(lc fx.Lifecycle, logger *Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return logger.Sync()
		},
	})
}
