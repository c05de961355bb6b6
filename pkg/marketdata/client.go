package marketdata

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-research/internal/config"
	"github.com/rxtech-lab/argo-research/internal/logger"
	"github.com/rxtech-lab/argo-research/internal/registry"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/cache"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
)

// ClientConfig holds the configuration for the market data client.
// A nil provider config leaves that provider out of every fallback chain.
type ClientConfig struct {
	RawPricesDir  string                  `validate:"required"`
	CanonicalPath string                  `validate:"required"`
	Priority      []provider.ProviderType `validate:"required,min=1,dive,oneof=stooq yahoo polygon binance"`
	Concurrency   int                     `validate:"min=1"`

	Stooq   *provider.StooqConfig
	Yahoo   *provider.YahooConfig
	Polygon *provider.PolygonConfig
	Binance *provider.BinanceConfig
}

// ClientConfigFromSettings derives the client configuration from the process settings.
// Polygon is only enabled when an API key is configured.
func ClientConfigFromSettings(s *config.Settings) (ClientConfig, error) {
	priority, err := provider.ParseProviderTypes(s.ProviderPriority)
	if err != nil {
		return ClientConfig{}, err
	}

	cfg := ClientConfig{
		RawPricesDir:  s.RawPricesDir(),
		CanonicalPath: s.CanonicalPath(),
		Priority:      priority,
		Concurrency:   s.Concurrency,
		Stooq: &provider.StooqConfig{
			HTTPConfig: provider.HTTPConfig{BaseURL: s.StooqBaseURL, Timeout: s.HTTPTimeout},
		},
		Yahoo: &provider.YahooConfig{
			HTTPConfig: provider.HTTPConfig{BaseURL: s.YahooBaseURL, Timeout: s.HTTPTimeout},
			UserAgent:  "",
		},
		Polygon: nil,
		Binance: &provider.BinanceConfig{Timeout: s.HTTPTimeout, Since: time.Time{}},
	}

	if s.PolygonAPIKey != "" {
		cfg.Polygon = &provider.PolygonConfig{ApiKey: s.PolygonAPIKey, Timeout: s.HTTPTimeout, Since: time.Time{}}
	}

	return cfg, nil
}

// Client ties the registry, the provider clients, the raw cache and the canonical dataset together.
type Client struct {
	config   ClientConfig
	registry *registry.Registry
	store    *cache.Store
	updater  *Updater
	builder  *CanonicalBuilder
	logger   *logger.Logger

	onProgress OnProgress
}

// NewClient creates a market data client with one provider per configured source.
func NewClient(config ClientConfig, reg *registry.Registry, log *logger.Logger) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	providers, err := buildProviders(config)
	if err != nil {
		return nil, err
	}

	return NewClientWithProviders(config, reg, providers, log)
}

// NewClientWithProviders creates a client around already constructed providers.
func NewClientWithProviders(config ClientConfig, reg *registry.Registry, providers []provider.Provider, log *logger.Logger) (*Client, error) {
	if reg == nil {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "registry is required")
	}

	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	log = logger.OrNop(log)
	store := cache.NewStore(config.RawPricesDir, log)
	updater := NewUpdater(reg, providers, store, log)

	return &Client{
		config:     config,
		registry:   reg,
		store:      store,
		updater:    updater,
		builder:    NewCanonicalBuilder(updater, config.CanonicalPath, config.Concurrency, log),
		logger:     log,
		onProgress: nil,
	}, nil
}

func buildProviders(config ClientConfig) ([]provider.Provider, error) {
	configs := make(map[provider.ProviderType]any)

	if config.Stooq != nil {
		configs[provider.ProviderStooq] = config.Stooq
	}

	if config.Yahoo != nil {
		configs[provider.ProviderYahoo] = config.Yahoo
	}

	if config.Polygon != nil {
		configs[provider.ProviderPolygon] = config.Polygon
	}

	if config.Binance != nil {
		configs[provider.ProviderBinance] = config.Binance
	}

	var providers []provider.Provider

	for _, t := range provider.AllProviderTypes() {
		cfg, ok := configs[t]
		if !ok {
			continue
		}

		p, err := provider.NewMarketDataProvider(t, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s provider: %w", t, err)
		}

		providers = append(providers, p)
	}

	return providers, nil
}

// SetOnProgress registers a callback invoked after each instrument is updated.
func (c *Client) SetOnProgress(fn OnProgress) {
	c.onProgress = fn
	c.builder.SetOnProgress(fn)
}

// Registry returns the instrument registry the client resolves symbols with.
func (c *Client) Registry() *registry.Registry {
	return c.registry
}

// CanonicalPath returns the location of the canonical dataset.
func (c *Client) CanonicalPath() string {
	return c.builder.Path()
}

func (c *Client) priorityOrDefault(priority []provider.ProviderType) []provider.ProviderType {
	if len(priority) == 0 {
		return c.config.Priority
	}

	return priority
}

func (c *Client) universeOrDefault(instruments []string) ([]string, error) {
	if len(instruments) == 0 {
		return c.registry.ListUniverse(), nil
	}

	for _, key := range instruments {
		if _, ok := c.registry.Get(key); !ok {
			return nil, errors.Newf(errors.ErrCodeDataNotFound, "unknown instrument %q", key)
		}
	}

	return instruments, nil
}

// Update refreshes the raw caches of the given instruments, or the whole registry when none
// are given, one at a time. It stops at the first instrument no provider could serve and
// returns which provider served each instrument.
func (c *Client) Update(ctx context.Context, instruments []string, priority []provider.ProviderType) (map[string]provider.ProviderType, error) {
	universe, err := c.universeOrDefault(instruments)
	if err != nil {
		return nil, err
	}

	priority = c.priorityOrDefault(priority)
	used := make(map[string]provider.ProviderType, len(universe))

	for i, key := range universe {
		result, err := c.updater.Update(ctx, key, priority)
		if err != nil {
			return nil, err
		}

		used[key] = result.Provider

		if c.onProgress != nil {
			c.onProgress(i+1, len(universe), key)
		}
	}

	return used, nil
}

// UpdateAll refreshes every instrument in the registry.
func (c *Client) UpdateAll(ctx context.Context, priority []provider.ProviderType) (map[string]provider.ProviderType, error) {
	return c.Update(ctx, nil, priority)
}

// Export updates the given instruments (the whole registry when none are given) and
// writes the canonical dataset.
func (c *Client) Export(ctx context.Context, instruments []string, priority []provider.ProviderType) (BuildResult, error) {
	universe, err := c.universeOrDefault(instruments)
	if err != nil {
		return BuildResult{}, err
	}

	return c.builder.Build(ctx, universe, c.priorityOrDefault(priority))
}

// Rebuild removes every raw cache and the canonical dataset, then exports the whole registry
// from scratch.
func (c *Client) Rebuild(ctx context.Context, priority []provider.ProviderType) (BuildResult, error) {
	c.logger.Info("Removing raw caches", zap.String("path", c.store.Root()))

	if err := c.store.Clear(); err != nil {
		return BuildResult{}, err
	}

	c.logger.Info("Removing canonical dataset", zap.String("path", c.builder.Path()))

	if err := c.builder.Remove(); err != nil {
		return BuildResult{}, err
	}

	if err := os.MkdirAll(c.store.Root(), 0o755); err != nil {
		return BuildResult{}, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to create %s", c.store.Root())
	}

	return c.Export(ctx, nil, priority)
}

// LoadField returns one field of the canonical dataset as a date x instrument table.
func (c *Client) LoadField(field types.Field) (types.Table, error) {
	return c.builder.Load(field)
}

// LoadDataset returns the whole canonical dataset.
func (c *Client) LoadDataset() (types.CanonicalDataset, error) {
	return c.builder.LoadDataset()
}

// Fields lists the fields of the canonical dataset.
func (c *Client) Fields() ([]types.Field, error) {
	return c.builder.Fields()
}

// ReadRaw reads the raw cache of one instrument for one provider.
func (c *Client) ReadRaw(p provider.ProviderType, instrument string) (optional.Option[types.PriceSeries], error) {
	return c.store.Read(p, instrument)
}
