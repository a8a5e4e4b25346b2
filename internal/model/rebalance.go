package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RebalanceMode string

const (
	HoldingsOnly     RebalanceMode = "HOLDINGS_ONLY"
	HoldingsPlusCash RebalanceMode = "HOLDINGS_PLUS_CASH"
	Smart            RebalanceMode = "SMART"
)

func (m RebalanceMode) Valid() bool {
	switch m {
	case HoldingsOnly, HoldingsPlusCash, Smart:
		return true
	}
	return false
}

// CashAware reports whether available cash is part of the rebalance base.
func (m RebalanceMode) CashAware() bool {
	return m == HoldingsPlusCash || m == Smart
}

type GapAnalysis struct {
	Layer       Layer           `json:"layer"`
	CurrentPct  decimal.Decimal `json:"current_pct"`
	TargetPct   decimal.Decimal `json:"target_pct"`
	GapPct      decimal.Decimal `json:"gap_pct"`
	GapIrr      decimal.Decimal `json:"gap_irr"`
	SellableIrr decimal.Decimal `json:"sellable_irr"`
	FrozenIrr   decimal.Decimal `json:"frozen_irr"`
}

type TradeSide string

const (
	Buy  TradeSide = "BUY"
	Sell TradeSide = "SELL"
)

type RebalanceTrade struct {
	Side      TradeSide       `json:"side"`
	AssetID   AssetID         `json:"asset_id"`
	AmountIrr decimal.Decimal `json:"amount_irr"`
	Layer     Layer           `json:"layer"`
}

type RebalancePreview struct {
	Trades                []RebalanceTrade `json:"trades"`
	CurrentAllocation     Allocation       `json:"current_allocation"`
	TargetAllocation      Allocation       `json:"target_allocation"`
	AfterAllocation       Allocation       `json:"after_allocation"`
	TotalBuyIrr           decimal.Decimal  `json:"total_buy_irr"`
	TotalSellIrr          decimal.Decimal  `json:"total_sell_irr"`
	TotalAvailableForBuys decimal.Decimal  `json:"total_available_for_buys"`
	CanFullyRebalance     bool             `json:"can_fully_rebalance"`
	CurrentDrift          decimal.Decimal  `json:"current_drift"`
	ResidualDrift         decimal.Decimal  `json:"residual_drift"`
	HasLockedCollateral   bool             `json:"has_locked_collateral"`
	SellShortfallIrr      decimal.Decimal  `json:"sell_shortfall_irr"`
	CashAfterIrr          decimal.Decimal  `json:"cash_after_irr"`
	StatusBefore          PortfolioStatus  `json:"status_before"`
	StatusAfter           PortfolioStatus  `json:"status_after"`
	GapAnalysis           []GapAnalysis    `json:"gap_analysis"`
	Mode                  RebalanceMode    `json:"mode"`
}

// Has reports whether the preview contains a trade for (assetID, side).
func (p RebalancePreview) Has(assetID AssetID, side TradeSide) bool {
	for _, t := range p.Trades {
		if t.AssetID == assetID && t.Side == side {
			return true
		}
	}
	return false
}

type RebalanceResult struct {
	Success        bool             `json:"success"`
	TradesExecuted []RebalanceTrade `json:"trades_executed"`
	NewAllocation  Allocation       `json:"new_allocation"`
	LedgerEntryID  uuid.UUID        `json:"ledger_entry_id"`
	Boundary       Boundary         `json:"boundary"`
}

type CooldownStatus struct {
	CanRebalance        bool       `json:"can_rebalance"`
	LastRebalanceAt     *time.Time `json:"last_rebalance_at"`
	HoursSinceRebalance *int       `json:"hours_since_rebalance"`
	HoursRemaining      int        `json:"hours_remaining"`
}
