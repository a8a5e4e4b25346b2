package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Price struct {
	AssetID      AssetID          `json:"asset_id"`
	PriceIrr     decimal.Decimal  `json:"price_irr"`
	PriceUsd     decimal.Decimal  `json:"price_usd"`
	Change24hPct *decimal.Decimal `json:"change_24h_pct,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type Prices map[AssetID]Price

// PricePoint is one daily close used by the dynamic weight strategy.
type PricePoint struct {
	AssetID  AssetID
	PriceUsd decimal.Decimal
	PriceIrr decimal.Decimal
	Dt       time.Time
}
