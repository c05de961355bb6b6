// Package app assembles the settings, logger, registry and market data client shared by the commands.
package app

import (
	"github.com/rxtech-lab/argo-research/internal/backtest/engine"
	"github.com/rxtech-lab/argo-research/internal/backtest/results"
	"github.com/rxtech-lab/argo-research/internal/backtest/runner"
	"github.com/rxtech-lab/argo-research/internal/config"
	"github.com/rxtech-lab/argo-research/internal/logger"
	"github.com/rxtech-lab/argo-research/internal/registry"
	"github.com/rxtech-lab/argo-research/pkg/marketdata"
)

// Environment holds everything a command needs.
type Environment struct {
	Settings *config.Settings
	Logger   *logger.Logger
	Registry *registry.Registry
	Client   *marketdata.Client
}

// Bootstrap loads the settings from configPath (optional) and builds the environment.
// A non-empty logLevel overrides the configured one.
func Bootstrap(configPath, logLevel string) (*Environment, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		settings.LogLevel = logLevel

		if err := settings.Validate(); err != nil {
			return nil, err
		}
	}

	log, err := logger.NewLogger(settings.LogLevel)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load(settings.RegistryPath)
	if err != nil {
		return nil, err
	}

	clientConfig, err := marketdata.ClientConfigFromSettings(settings)
	if err != nil {
		return nil, err
	}

	client, err := marketdata.NewClient(clientConfig, reg, log)
	if err != nil {
		return nil, err
	}

	return &Environment{
		Settings: settings,
		Logger:   log,
		Registry: reg,
		Client:   client,
	}, nil
}

// Runner builds a backtest runner over the canonical dataset writing below the backtests dir.
func (e *Environment) Runner() *runner.Runner {
	return runner.NewRunner(
		e.Client,
		e.Registry,
		engine.NewVectorizedEngine(e.Logger),
		results.NewManager(e.Settings.BacktestsDir(), e.Logger),
		e.Logger,
	)
}

// Close flushes the logger.
func (e *Environment) Close() {
	// stderr does not support fsync on every platform
	_ = e.Logger.Sync()
}
