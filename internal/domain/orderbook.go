package domain

import "time"

// PriceLevel is a single price+volume entry in an order book side.
type PriceLevel struct {
	Price  float64
	Volume float64 // base units resting at this price
}

// OrderBookSnapshot is a full depth snapshot for one symbol. Asks are sorted
// ascending and bids descending by the source, best level first.
type OrderBookSnapshot struct {
	Symbol    string
	Asks      []PriceLevel
	Bids      []PriceLevel
	Timestamp time.Time
}

// Side returns the book side a taker order of the given trade side consumes:
// asks for a buy, bids for a sell.
func (s OrderBookSnapshot) Side(side OrderSide) []PriceLevel {
	if side == OrderSideBuy {
		return s.Asks
	}
	return s.Bids
}

// Balance is the per-asset holdings reported by the exchange. Free is the
// amount available for new orders; Total includes amounts locked in open
// orders. Some account types report only Total.
type Balance struct {
	Asset string
	Free  float64
	Total float64
}

// Available resolves the balance field used to size a trade: Free when the
// exchange reports it, otherwise Total.
func (b Balance) Available() float64 {
	if b.Free > 0 {
		return b.Free
	}
	return b.Total
}
