// Package domain holds the core types shared by the scanner, trader, caches,
// and stores. It has no dependencies on other internal packages.
package domain

// Symbol is one tradable spot pair together with the exchange constraints the
// trader must respect when placing orders on it.
type Symbol struct {
	Name        string // canonical "BASE/QUOTE" form, e.g. "BTC/USDT"
	Base        string
	Quote       string
	PriceTick   float64 // minimum price increment; 0 when the exchange reports none
	MinAmount   float64 // minimum order amount in base units
	MinPrice    float64 // minimum allowed limit price
	MinNotional float64 // minimum order value in quote units
}

// Market is the universe of tradable symbols, loaded once at startup and
// immutable for the life of a run.
type Market struct {
	symbols map[string]Symbol
}

// NewMarket builds a Market from a symbol set keyed by canonical name.
func NewMarket(symbols map[string]Symbol) *Market {
	m := &Market{symbols: make(map[string]Symbol, len(symbols))}
	for name, s := range symbols {
		m.symbols[name] = s
	}
	return m
}

// Has reports whether the named pair is tradable.
func (m *Market) Has(name string) bool {
	_, ok := m.symbols[name]
	return ok
}

// Symbol returns the named pair's constraints.
func (m *Market) Symbol(name string) (Symbol, bool) {
	s, ok := m.symbols[name]
	return s, ok
}

// Symbols returns the underlying symbol map. Callers must not mutate it.
func (m *Market) Symbols() map[string]Symbol {
	return m.symbols
}

// Len returns the number of tradable symbols.
func (m *Market) Len() int {
	return len(m.symbols)
}
