// Package observability records stage spans and metric datapoints through
// the structured logger. It is silent until Setup enables it.
package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
}

// ShutdownFunc tears down whatever Setup installed.
type ShutdownFunc func(context.Context) error

var (
	loggerMu             sync.RWMutex
	instrumentationLog   *slog.Logger
	instrumentationState Config
)

func currentLogger() (*slog.Logger, Config) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if !instrumentationState.Enabled {
		return nil, instrumentationState
	}
	return instrumentationLog, instrumentationState
}

// Setup routes spans and metrics to logger when cfg.Enabled is set. The
// returned func restores the silent state.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	loggerMu.Lock()
	instrumentationLog = logger
	instrumentationState = cfg
	loggerMu.Unlock()

	if logger != nil {
		state := "disabled"
		if cfg.Enabled {
			state = "enabled"
		}
		logger.DebugContext(ctx, "[BOOT] observability "+state)
	}
	return func(context.Context) error {
		loggerMu.Lock()
		instrumentationLog = nil
		instrumentationState = Config{}
		loggerMu.Unlock()
		return nil
	}, nil
}
