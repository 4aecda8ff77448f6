package tool

import (
	"go.uber.org/zap"

	"github.com/lazyvibe/vibeshell/internal/app"
	"github.com/lazyvibe/vibeshell/internal/runtime"
	"github.com/lazyvibe/vibeshell/internal/runtime/strategy"
)

// StrategyOptions maps configured timeouts onto strategy options. Zero values
// keep the defaults.
func StrategyOptions(t app.TimeoutConfig, log *zap.Logger) strategy.Options {
	return strategy.Options{
		RichIdle:         t.RichIdle,
		BasicLongIdle:    t.BasicLongIdle,
		BasicConfirmIdle: t.BasicConfirmIdle,
		SettleIdle:       t.Settle,
		NoneIdle:         t.NoneIdle,
		FlushGrace:       t.FlushGrace,
		Log:              log,
	}
}

// RegistryOptions maps configured timeouts onto registry options.
func RegistryOptions(t app.TimeoutConfig, dir string) runtime.RegistryOptions {
	return runtime.RegistryOptions{
		IntegrationTimeout: t.IntegrationWait,
		RichGrace:          t.RichGrace,
		Dir:                dir,
	}
}

// ConfigFrom builds the runner config from the application config.
func ConfigFrom(cfg *app.Config, log *zap.Logger) Config {
	return Config{
		Shell:          cfg.Shell,
		WorkspaceRoots: cfg.WorkspaceRoots,
		Strategy:       StrategyOptions(cfg.Timeouts, log),
	}
}
