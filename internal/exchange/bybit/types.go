package bybit

import (
	"strconv"

	"github.com/avolkov/triarb/internal/domain"
)

// instrumentsResult is the payload of GET /v5/market/instruments-info.
type instrumentsResult struct {
	Category string          `json:"category"`
	List     []apiInstrument `json:"list"`
}

type apiInstrument struct {
	Symbol        string           `json:"symbol"` // concatenated, e.g. "BTCUSDT"
	BaseCoin      string           `json:"baseCoin"`
	QuoteCoin     string           `json:"quoteCoin"`
	Status        string           `json:"status"` // "Trading" when live
	PriceFilter   apiPriceFilter   `json:"priceFilter"`
	LotSizeFilter apiLotSizeFilter `json:"lotSizeFilter"`
}

type apiPriceFilter struct {
	TickSize string `json:"tickSize"`
}

type apiLotSizeFilter struct {
	MinOrderQty string `json:"minOrderQty"`
	MinOrderAmt string `json:"minOrderAmt"`
}

// toSymbol converts an API instrument into the domain representation. The
// canonical name is "BASE/QUOTE" regardless of the exchange's concatenated
// form.
func (i apiInstrument) toSymbol() domain.Symbol {
	return domain.Symbol{
		Name:        i.BaseCoin + "/" + i.QuoteCoin,
		Base:        i.BaseCoin,
		Quote:       i.QuoteCoin,
		PriceTick:   parseFloat(i.PriceFilter.TickSize),
		MinAmount:   parseFloat(i.LotSizeFilter.MinOrderQty),
		MinNotional: parseFloat(i.LotSizeFilter.MinOrderAmt),
	}
}

// orderbookResult is the payload of GET /v5/market/orderbook. Levels are
// [price, size] string pairs, best level first.
type orderbookResult struct {
	Symbol string      `json:"s"`
	Asks   [][2]string `json:"a"`
	Bids   [][2]string `json:"b"`
	Ts     int64       `json:"ts"` // milliseconds
}

// balanceResult is the payload of GET /v5/account/wallet-balance.
type balanceResult struct {
	List []struct {
		AccountType string `json:"accountType"`
		Coin        []struct {
			Coin                string `json:"coin"`
			WalletBalance       string `json:"walletBalance"`
			AvailableToWithdraw string `json:"availableToWithdraw"`
			Free                string `json:"free"`
		} `json:"coin"`
	} `json:"list"`
}

// createOrderResult is the payload of POST /v5/order/create.
type createOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// orderListResult is the payload of GET /v5/order/realtime and
// /v5/order/history.
type orderListResult struct {
	List []apiOrder `json:"list"`
}

type apiOrder struct {
	OrderID     string `json:"orderId"`
	OrderStatus string `json:"orderStatus"`
	Qty         string `json:"qty"`
	CumExecQty  string `json:"cumExecQty"`
	AvgPrice    string `json:"avgPrice"`
	Price       string `json:"price"`
}

// toFill maps the exchange order status onto the domain fill report. Bybit
// statuses: New, PartiallyFilled, Filled, Cancelled, Rejected,
// PartiallyFilledCanceled.
func (o apiOrder) toFill() domain.OrderFill {
	fill := domain.OrderFill{
		Filled:       parseFloat(o.CumExecQty),
		AvgFillPrice: parseFloat(o.AvgPrice),
	}
	switch o.OrderStatus {
	case "Filled":
		fill.Status = domain.OrderStatusFilled
	case "PartiallyFilled":
		fill.Status = domain.OrderStatusPartial
	case "Cancelled", "PartiallyFilledCanceled":
		// Both are terminal; the fill amount distinguishes a clean cancel
		// from a partial.
		fill.Status = domain.OrderStatusCancelled
	case "Rejected":
		fill.Status = domain.OrderStatusRejected
	default:
		fill.Status = domain.OrderStatusOpen
	}
	return fill
}

// parseFloat parses the exchange's string-encoded decimals, returning 0 for
// empty or malformed values. The v5 API sends "" for absent fields.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
