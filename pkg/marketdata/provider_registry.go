package marketdata

import (
	"encoding/json"
	"fmt"

	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-research/pkg/utils"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
	// AdjustedClose reports whether the provider serves dividend and split adjusted closes.
	AdjustedClose bool `json:"adjustedClose"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[provider.ProviderType]ProviderInfo{
	provider.ProviderStooq: {
		Name:          string(provider.ProviderStooq),
		DisplayName:   "Stooq",
		Description:   "Free daily OHLCV history for equities, ETFs, indices and currencies as CSV",
		RequiresAuth:  false,
		AdjustedClose: false,
	},
	provider.ProviderYahoo: {
		Name:          string(provider.ProviderYahoo),
		DisplayName:   "Yahoo Finance",
		Description:   "Daily OHLCV history with adjusted close from the Yahoo Finance chart API",
		RequiresAuth:  false,
		AdjustedClose: true,
	},
	provider.ProviderPolygon: {
		Name:          string(provider.ProviderPolygon),
		DisplayName:   "Polygon.io",
		Description:   "US stock market data provider with split adjusted daily aggregates",
		RequiresAuth:  true,
		AdjustedClose: false,
	},
	provider.ProviderBinance: {
		Name:          string(provider.ProviderBinance),
		DisplayName:   "Binance",
		Description:   "Cryptocurrency exchange with daily klines for spot trading pairs",
		RequiresAuth:  false,
		AdjustedClose: false,
	},
}

// GetSupportedProviders returns the names of all supported providers in name order.
func GetSupportedProviders() []string {
	all := provider.AllProviderTypes()
	providers := make([]string, len(all))

	for i, p := range all {
		providers[i] = string(p)
	}

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[provider.ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}

// emptyProviderConfig returns a zero config of the provider's config type.
func emptyProviderConfig(providerName string) (any, error) {
	switch provider.ProviderType(providerName) {
	case provider.ProviderStooq:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return &provider.StooqConfig{}, nil
	case provider.ProviderYahoo:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return &provider.YahooConfig{}, nil
	case provider.ProviderPolygon:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return &provider.PolygonConfig{}, nil
	case provider.ProviderBinance:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return &provider.BinanceConfig{}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}
}

// GetProviderConfigSchema returns the JSON schema for a provider's configuration.
func GetProviderConfigSchema(providerName string) (string, error) {
	cfg, err := emptyProviderConfig(providerName)
	if err != nil {
		return "", err
	}

	return utils.GetSchemaFromConfig(cfg)
}

// GetProviderKeychainFields returns the names of the secret fields of a provider's configuration.
func GetProviderKeychainFields(providerName string) ([]string, error) {
	cfg, err := emptyProviderConfig(providerName)
	if err != nil {
		return nil, err
	}

	return utils.GetKeychainFields(cfg), nil
}

// validatable is implemented by every provider config.
type validatable interface {
	Validate() error
}

// ParseProviderConfig parses a JSON configuration string for the given provider.
// The result is the matching *XxxConfig and can be passed to provider.NewMarketDataProvider.
func ParseProviderConfig(providerName string, jsonConfig string) (any, error) {
	cfg, err := emptyProviderConfig(providerName)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(jsonConfig), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if v, ok := cfg.(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
