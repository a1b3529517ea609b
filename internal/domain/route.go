package domain

import (
	"crypto/md5"
	"encoding/hex"
)

// Route is an ordered asset triple forming a closed triangle
// anchor -> mid1 -> mid2 -> anchor. Routes are discovered once at startup and
// are immutable; identity is the ordered triple itself.
type Route struct {
	Anchor string
	Mid1   string
	Mid2   string
}

// ID returns the human-readable route identity, e.g. "USDT->BTC->ETH->USDT".
func (r Route) ID() string {
	return r.Anchor + "->" + r.Mid1 + "->" + r.Mid2 + "->" + r.Anchor
}

// Hash returns a stable key for the route, used by the debounce cache.
func (r Route) Hash() string {
	sum := md5.Sum([]byte(r.ID()))
	return hex.EncodeToString(sum[:])
}

// Leg is one of the three trades composing a route: a symbol and the taker
// side on it.
type Leg struct {
	Symbol string
	Side   OrderSide
}

// Legs derives the three legs of the route from the symbol orientations that
// actually exist in the market. For each hop the pair may be listed in either
// direction; buying the numerator asset and selling it are mirror trades, so
// the side follows from which orientation is listed. The second return value
// is false when any hop has no listed pair at all.
func (r Route) Legs(m *Market) ([3]Leg, bool) {
	var legs [3]Leg

	// anchor -> mid1: buy on mid1/anchor, sell on anchor/mid1.
	if m.Has(r.Mid1 + "/" + r.Anchor) {
		legs[0] = Leg{Symbol: r.Mid1 + "/" + r.Anchor, Side: OrderSideBuy}
	} else if m.Has(r.Anchor + "/" + r.Mid1) {
		legs[0] = Leg{Symbol: r.Anchor + "/" + r.Mid1, Side: OrderSideSell}
	} else {
		return legs, false
	}

	// mid1 -> mid2: buy on mid2/mid1, sell on mid1/mid2.
	if m.Has(r.Mid2 + "/" + r.Mid1) {
		legs[1] = Leg{Symbol: r.Mid2 + "/" + r.Mid1, Side: OrderSideBuy}
	} else if m.Has(r.Mid1 + "/" + r.Mid2) {
		legs[1] = Leg{Symbol: r.Mid1 + "/" + r.Mid2, Side: OrderSideSell}
	} else {
		return legs, false
	}

	// mid2 -> anchor: sell on mid2/anchor, buy on anchor/mid2.
	if m.Has(r.Mid2 + "/" + r.Anchor) {
		legs[2] = Leg{Symbol: r.Mid2 + "/" + r.Anchor, Side: OrderSideSell}
	} else if m.Has(r.Anchor + "/" + r.Mid2) {
		legs[2] = Leg{Symbol: r.Anchor + "/" + r.Mid2, Side: OrderSideBuy}
	} else {
		return legs, false
	}

	return legs, true
}
