// Package config loads the research settings from an optional YAML file and ALGO_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/rxtech-lab/argo-research/pkg/errors"
)

const envPrefix = "algo"

// Settings are the process-wide knobs shared by the data and backtest commands.
type Settings struct {
	// DataDir holds the raw provider caches and the canonical dataset.
	DataDir string `mapstructure:"data_dir" validate:"required"`
	// ArtifactsDir holds backtest run directories.
	ArtifactsDir string `mapstructure:"artifacts_dir" validate:"required"`
	// RegistryPath points at the instrument registry YAML file.
	RegistryPath string `mapstructure:"registry_path" validate:"required"`
	// ProviderPriority is the order in which providers are tried for each instrument.
	ProviderPriority []string `mapstructure:"provider_priority" validate:"min=1,dive,oneof=stooq yahoo polygon binance"`
	// PolygonAPIKey enables the polygon provider when set.
	PolygonAPIKey string `mapstructure:"polygon_api_key"`
	StooqBaseURL  string `mapstructure:"stooq_base_url" validate:"required,url"`
	YahooBaseURL  string `mapstructure:"yahoo_base_url" validate:"required,url"`
	// HTTPTimeout bounds every provider call.
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	// Concurrency is the number of instruments updated in parallel during a build.
	Concurrency int    `mapstructure:"concurrency" validate:"min=1,max=64"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// Load reads settings from path (skipped when empty) and the environment, applies defaults and validates.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %q", path)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, decodeHook()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to decode settings", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("artifacts_dir", "artifacts")
	v.SetDefault("registry_path", "configs/assets.yaml")
	v.SetDefault("provider_priority", []string{"stooq", "yahoo"})
	v.SetDefault("polygon_api_key", "")
	v.SetDefault("stooq_base_url", "https://stooq.com")
	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("concurrency", 1)
	v.SetDefault("log_level", "info")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate checks every field and reports all violations at once.
func (s *Settings) Validate() error {
	err := validator.New().Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if !ok {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid settings", err)
	}

	var combined error
	for _, fe := range validationErrors {
		combined = multierr.Append(combined, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}

	return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid settings", combined)
}

// RawPricesDir is the root of the per-provider caches.
func (s *Settings) RawPricesDir() string {
	return filepath.Join(s.DataDir, "raw_prices")
}

// CanonicalPath is the location of the canonical dataset.
func (s *Settings) CanonicalPath() string {
	return filepath.Join(s.DataDir, "canonical", "ohlcv.parquet")
}

// BacktestsDir is the parent of every backtest run directory.
func (s *Settings) BacktestsDir() string {
	return filepath.Join(s.ArtifactsDir, "backtests")
}
