package scanner

import "github.com/avolkov/triarb/internal/domain"

// DepthAveragePrice walks one side of an order book, best level first, and
// computes the volume-weighted average price an order for targetNotional
// (quote units) would actually receive. The level that would overshoot the
// target is consumed only for the fractional remainder.
//
// Liquidity in the returned quote always reflects the summed notional of
// every level, uncapped by the target, so sizing logic downstream can scale a
// trade up to the book's real capacity. When the book cannot cover the
// target the quote is unfillable: no partial-fill price is reported.
func DepthAveragePrice(levels []domain.PriceLevel, targetNotional float64) domain.LegQuote {
	var (
		totalBase     float64
		totalNotional float64
		liquidity     float64
	)

	for _, lvl := range levels {
		notional := lvl.Price * lvl.Volume
		liquidity += notional

		if totalNotional+notional >= targetNotional {
			remain := targetNotional - totalNotional
			totalBase += remain / lvl.Price
			totalNotional = targetNotional
			// Keep summing the remaining levels into liquidity.
			continue
		}
		totalBase += lvl.Volume
		totalNotional += notional
	}

	if totalNotional < targetNotional || totalBase <= 0 {
		return domain.LegQuote{Unfillable: true, Liquidity: liquidity}
	}

	return domain.LegQuote{
		AvgPrice:       totalNotional / totalBase,
		FilledNotional: totalNotional,
		Liquidity:      liquidity,
	}
}
