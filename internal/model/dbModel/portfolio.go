package dbModel

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

type Portfolio struct {
	PortfolioID         int64           `db:"portfolio_id"`
	UserID              int64           `db:"user_id"`
	CashIrr             decimal.Decimal `db:"cash_irr"`
	TargetFoundationPct decimal.Decimal `db:"target_foundation_pct"`
	TargetGrowthPct     decimal.Decimal `db:"target_growth_pct"`
	TargetUpsidePct     decimal.Decimal `db:"target_upside_pct"`
	LastRebalanceAt     sql.NullTime    `db:"last_rebalance_at"`
}

type Holding struct {
	HoldingID   int64           `db:"holding_id"`
	PortfolioID int64           `db:"portfolio_id"`
	AssetID     string          `db:"asset_id"`
	Quantity    decimal.Decimal `db:"quantity"`
	Layer       string          `db:"layer"`
	Frozen      bool            `db:"frozen"`
}
