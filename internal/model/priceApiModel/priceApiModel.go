package priceApiModel

import "github.com/shopspring/decimal"

// RawPrices is the body of GET /v1/prices.
type RawPrices struct {
	UsdIrrRate decimal.Decimal `json:"usd_irr_rate"`
	Timestamp  int64           `json:"ts"`
	Prices     []RawPrice      `json:"prices"`
}

type RawPrice struct {
	Asset    string              `json:"asset"`
	PriceUsd decimal.NullDecimal `json:"price_usd"`
	PriceIrr decimal.NullDecimal `json:"price_irr"`
	Change24 *decimal.Decimal    `json:"change_24h_pct"`
}
