package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderStooq   ProviderType = "stooq"
	ProviderYahoo   ProviderType = "yahoo"
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// String returns the provider name as used in the registry and on disk.
func (p ProviderType) String() string {
	return string(p)
}

// AllProviderTypes lists every supported provider in name order.
func AllProviderTypes() []ProviderType {
	all := []ProviderType{ProviderStooq, ProviderYahoo, ProviderPolygon, ProviderBinance}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	return all
}

// ParseProviderType validates a provider name.
func ParseProviderType(name string) (ProviderType, error) {
	for _, p := range AllProviderTypes() {
		if string(p) == name {
			return p, nil
		}
	}

	return "", errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", name)
}

// ParseProviderTypes validates a priority list.
func ParseProviderTypes(names []string) ([]ProviderType, error) {
	out := make([]ProviderType, 0, len(names))

	for _, n := range names {
		p, err := ParseProviderType(n)
		if err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	return out, nil
}

// Provider fetches daily price history from one external source.
type Provider interface {
	// Name identifies the provider.
	Name() ProviderType
	// Fetch returns the full daily history the source offers for symbol, normalized.
	// It returns an ErrCodeTransportError error when the call did not complete and an
	// ErrCodeDataUnavailable error when it completed without usable bars.
	// Fetch never retries.
	Fetch(ctx context.Context, symbol string) (types.PriceSeries, error)
}

// NewMarketDataProvider creates a new market data provider based on the provider type.
// config must be the matching *XxxConfig.
func NewMarketDataProvider(providerType ProviderType, config any) (Provider, error) {
	switch providerType {
	case ProviderStooq:
		cfg, ok := config.(*StooqConfig)
		if !ok || cfg == nil {
			return nil, fmt.Errorf("stooq provider requires *StooqConfig, got %T", config)
		}

		client, err := NewStooqClient(*cfg)

		return asProvider(client, err)
	case ProviderYahoo:
		cfg, ok := config.(*YahooConfig)
		if !ok || cfg == nil {
			return nil, fmt.Errorf("yahoo provider requires *YahooConfig, got %T", config)
		}

		client, err := NewYahooClient(*cfg)

		return asProvider(client, err)
	case ProviderPolygon:
		cfg, ok := config.(*PolygonConfig)
		if !ok || cfg == nil {
			return nil, fmt.Errorf("polygon provider requires *PolygonConfig, got %T", config)
		}

		client, err := NewPolygonClient(*cfg)

		return asProvider(client, err)
	case ProviderBinance:
		cfg, ok := config.(*BinanceConfig)
		if !ok || cfg == nil {
			return nil, fmt.Errorf("binance provider requires *BinanceConfig, got %T", config)
		}

		client, err := NewBinanceClient(*cfg)

		return asProvider(client, err)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}

// asProvider drops the typed nil a constructor returns alongside an error.
func asProvider[P Provider](p P, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}

	return p, nil
}

func transportError(provider ProviderType, symbol string, cause error) error {
	return errors.Wrapf(errors.ErrCodeTransportError, cause, "%s request for %s failed", provider, symbol)
}

func unavailableError(provider ProviderType, symbol string, reason string) error {
	return errors.Newf(errors.ErrCodeDataUnavailable, "%s returned no usable data for %s: %s", provider, symbol, reason)
}
