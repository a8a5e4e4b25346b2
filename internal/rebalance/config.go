package rebalance

import (
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/shopspring/decimal"
)

// Iteration caps of the bounded redistribution loops.
const (
	maxRedistributionPasses    = 5
	maxBuyRedistributionPasses = 5
)

// Config is the immutable set of engine tunables. It is passed by value so a
// running computation never observes a change.
type Config struct {
	MinTradeAmountIrr decimal.Decimal

	// Spreads are fractions (0.003 = 30 bps).
	SpreadFoundation decimal.Decimal
	SpreadGrowth     decimal.Decimal
	SpreadUpside     decimal.Decimal

	// DiversificationCap is the largest fraction of one holding a rebalance may sell.
	DiversificationCap decimal.Decimal
	// MinKeepIrr is the value a rebalance must leave in every holding it sells.
	MinKeepIrr decimal.Decimal

	IntraLayerEnabled        bool
	IntraLayerOverweightPct  decimal.Decimal
	IntraLayerUnderweightPct decimal.Decimal
	IntraLayerBandPct        decimal.Decimal
	IntraLayerTolerancePct   decimal.Decimal
	// IntraLayerDriftSlackPct is how far spread costs of an intra-layer pass
	// may lift the drift of a portfolio that needs no inter-layer trades.
	IntraLayerDriftSlackPct decimal.Decimal

	// OverweightGuardPct blocks fresh cash from a layer already this far
	// over target by percentage.
	OverweightGuardPct        decimal.Decimal
	HoldingsOnlyOverweightPct decimal.Decimal

	BalancedMaxDriftPct    decimal.Decimal
	SlightlyOffMaxDriftPct decimal.Decimal
	FullRebalanceDriftPct  decimal.Decimal
	MinDriftPct            decimal.Decimal

	CooldownWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinTradeAmountIrr:         money.Irr(1_000_000),
		SpreadFoundation:          money.FromBps(15),
		SpreadGrowth:              money.FromBps(30),
		SpreadUpside:              money.FromBps(60),
		DiversificationCap:        decimal.RequireFromString("0.80"),
		MinKeepIrr:                money.Irr(5_000_000),
		IntraLayerEnabled:         true,
		IntraLayerOverweightPct:   decimal.NewFromInt(15),
		IntraLayerUnderweightPct:  decimal.NewFromInt(10),
		IntraLayerBandPct:         decimal.NewFromInt(5),
		IntraLayerTolerancePct:    decimal.NewFromInt(5),
		IntraLayerDriftSlackPct:   decimal.RequireFromString("0.5"),
		OverweightGuardPct:        decimal.NewFromInt(-5),
		HoldingsOnlyOverweightPct: decimal.NewFromInt(-1),
		BalancedMaxDriftPct:       decimal.NewFromInt(5),
		SlightlyOffMaxDriftPct:    decimal.NewFromInt(10),
		FullRebalanceDriftPct:     decimal.NewFromInt(2),
		MinDriftPct:               decimal.NewFromInt(1),
		CooldownWindow:            24 * time.Hour,
	}
}

func (c Config) Spread(layer model.Layer) decimal.Decimal {
	switch layer {
	case model.Foundation:
		return c.SpreadFoundation
	case model.Growth:
		return c.SpreadGrowth
	case model.Upside:
		return c.SpreadUpside
	}
	return decimal.Zero
}

// StatusFor maps a drift percentage to a portfolio status.
func (c Config) StatusFor(drift decimal.Decimal) model.PortfolioStatus {
	switch {
	case drift.LessThanOrEqual(c.BalancedMaxDriftPct):
		return model.StatusBalanced
	case drift.LessThanOrEqual(c.SlightlyOffMaxDriftPct):
		return model.StatusSlightlyOff
	default:
		return model.StatusAttentionRequired
	}
}

// SellCap is the most a rebalance may sell of a holding worth value:
// floor(min(cap*value, value-minKeep)). Non-positive means not sellable.
func (c Config) SellCap(value decimal.Decimal) decimal.Decimal {
	byShare := money.Mul(value, c.DiversificationCap)
	byKeep := money.Sub(value, c.MinKeepIrr)
	return money.FloorIrr(money.Min(byShare, byKeep))
}
