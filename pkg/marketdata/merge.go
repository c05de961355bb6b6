package marketdata

import (
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-research/internal/types"
)

// Merge reconciles a cached series with a freshly fetched one.
// Bars of fresh replace cached bars with the same date in full; cached bars on other
// dates are kept. The field set is the union of both. Merge(Some(Merge(e, f)), f)
// equals Merge(e, f).
func Merge(existing optional.Option[types.PriceSeries], fresh types.PriceSeries) types.PriceSeries {
	if existing.IsNone() {
		return fresh.Normalize()
	}

	cached := existing.Unwrap()

	bars := make([]types.PriceBar, 0, len(cached.Bars)+len(fresh.Bars))
	bars = append(bars, cached.Bars...)
	// fresh goes last so the stable sort keeps it after cached bars of the same date
	bars = append(bars, fresh.Bars...)

	return types.PriceSeries{
		Fields: types.UnionFields(cached.Fields, fresh.Fields),
		Bars:   bars,
	}.Normalize()
}
