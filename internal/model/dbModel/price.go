package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type PricePoint struct {
	AssetID  string          `db:"asset_id"`
	PriceUsd decimal.Decimal `db:"price_usd"`
	PriceIrr decimal.Decimal `db:"price_irr"`
	Dt       time.Time       `db:"dt"`
}
