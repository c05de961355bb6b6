package marketdata

import (
	"context"
	"fmt"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-research/internal/logger"
	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
	"github.com/rxtech-lab/argo-research/pkg/marketdata/provider"
)

// SymbolResolver maps an instrument key to a provider-specific symbol.
type SymbolResolver interface {
	Resolve(key, provider string) (string, bool)
}

// PriceCache is the storage the Updater reads from and commits to.
type PriceCache interface {
	Read(p provider.ProviderType, instrument string) (optional.Option[types.PriceSeries], error)
	Write(p provider.ProviderType, instrument string, series types.PriceSeries) error
}

// InstrumentUpdater refreshes the cached history of one instrument.
type InstrumentUpdater interface {
	Update(ctx context.Context, instrument string, priority []provider.ProviderType) (UpdateResult, error)
}

// UpdateResult is the outcome of a successful update.
type UpdateResult struct {
	Instrument string
	Provider   provider.ProviderType
	// Series is the merged series that was committed to the cache.
	Series types.PriceSeries
}

// Updater tries providers in priority order and commits the first success to the cache.
type Updater struct {
	resolver  SymbolResolver
	providers map[provider.ProviderType]provider.Provider
	cache     PriceCache
	logger    *logger.Logger
}

// NewUpdater creates an Updater. Providers are keyed by their Name.
func NewUpdater(resolver SymbolResolver, providers []provider.Provider, cache PriceCache, log *logger.Logger) *Updater {
	byType := make(map[provider.ProviderType]provider.Provider, len(providers))
	for _, p := range providers {
		byType[p.Name()] = p
	}

	return &Updater{
		resolver:  resolver,
		providers: byType,
		cache:     cache,
		logger:    logger.OrNop(log),
	}
}

// Update refreshes one instrument. Providers without a configured client or without a
// symbol for the instrument are skipped. The first provider whose read, fetch, merge and
// write all succeed wins and no later provider is tried. When every candidate fails, the
// returned ErrCodeAllProvidersFailed error wraps an *errors.AttemptsError listing every
// failure (it unwraps to the last one), or an ErrCodeDataNotFound error when no provider
// could be tried at all. Nothing is written on failure.
func (u *Updater) Update(ctx context.Context, instrument string, priority []provider.ProviderType) (UpdateResult, error) {
	var cancelled error

	attempts := &errors.AttemptsError{Instrument: instrument, Attempts: nil}

	for _, p := range priority {
		if err := ctx.Err(); err != nil {
			cancelled = err

			break
		}

		client, ok := u.providers[p]
		if !ok {
			u.logger.Debug("Skipping unconfigured provider", zap.String("instrument", instrument), zap.String("provider", string(p)))

			continue
		}

		symbol, ok := u.resolver.Resolve(instrument, string(p))
		if !ok {
			u.logger.Debug("Skipping provider without symbol", zap.String("instrument", instrument), zap.String("provider", string(p)))

			continue
		}

		series, err := u.updateFrom(ctx, client, instrument, symbol)
		if err != nil {
			u.logger.Warn("Provider failed",
				zap.String("instrument", instrument),
				zap.String("provider", string(p)),
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			attempts.Add(string(p), symbol, err)

			continue
		}

		u.logger.Info("Updated prices",
			zap.String("instrument", instrument),
			zap.String("provider", string(p)),
			zap.Int("bars", series.Len()),
		)

		return UpdateResult{Instrument: instrument, Provider: p, Series: series}, nil
	}

	var cause error

	switch {
	case cancelled != nil:
		cause = cancelled
	case !attempts.Empty():
		cause = attempts
	default:
		cause = errors.Newf(errors.ErrCodeDataNotFound, "no provider in %v has a symbol for %q", priority, instrument)
	}

	return UpdateResult{}, errors.Wrapf(errors.ErrCodeAllProvidersFailed, cause, "failed for %q", instrument)
}

func (u *Updater) updateFrom(ctx context.Context, client provider.Provider, instrument, symbol string) (types.PriceSeries, error) {
	existing, err := u.cache.Read(client.Name(), instrument)
	if err != nil {
		return types.PriceSeries{}, fmt.Errorf("failed to read cache: %w", err)
	}

	fresh, err := client.Fetch(ctx, symbol)
	if err != nil {
		return types.PriceSeries{}, err
	}

	merged := Merge(existing, fresh)

	if err := u.cache.Write(client.Name(), instrument, merged); err != nil {
		return types.PriceSeries{}, fmt.Errorf("failed to write cache: %w", err)
	}

	return merged, nil
}
