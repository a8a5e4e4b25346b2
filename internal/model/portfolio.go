package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	ID       int64
	AssetID  AssetID
	Quantity decimal.Decimal
	Layer    Layer
	// Frozen is set while the holding is pledged as loan collateral.
	Frozen bool
}

type Portfolio struct {
	ID              int64
	UserID          int64
	CashIrr         decimal.Decimal
	Holdings        []Holding
	Target          Allocation
	LastRebalanceAt *time.Time
}

func (p Portfolio) Holding(assetID AssetID) (Holding, bool) {
	for _, h := range p.Holdings {
		if h.AssetID == assetID {
			return h, true
		}
	}
	return Holding{}, false
}

// Allocation is a per-layer triple. It carries either percentages or IRR
// amounts depending on context.
type Allocation struct {
	Foundation decimal.Decimal `json:"foundation"`
	Growth     decimal.Decimal `json:"growth"`
	Upside     decimal.Decimal `json:"upside"`
}

func NewAllocation(foundation, growth, upside int64) Allocation {
	return Allocation{
		Foundation: decimal.NewFromInt(foundation),
		Growth:     decimal.NewFromInt(growth),
		Upside:     decimal.NewFromInt(upside),
	}
}

func (a Allocation) Get(layer Layer) decimal.Decimal {
	switch layer {
	case Foundation:
		return a.Foundation
	case Growth:
		return a.Growth
	case Upside:
		return a.Upside
	}
	return decimal.Zero
}

func (a *Allocation) Set(layer Layer, v decimal.Decimal) {
	switch layer {
	case Foundation:
		a.Foundation = v
	case Growth:
		a.Growth = v
	case Upside:
		a.Upside = v
	}
}

func (a Allocation) Total() decimal.Decimal {
	return a.Foundation.Add(a.Growth).Add(a.Upside)
}

// MaxAbsDiff is the largest per-layer absolute difference between a and b.
func (a Allocation) MaxAbsDiff(b Allocation) decimal.Decimal {
	res := decimal.Zero
	for _, l := range Layers {
		diff := a.Get(l).Sub(b.Get(l)).Abs()
		if diff.GreaterThan(res) {
			res = diff
		}
	}
	return res
}

type PortfolioStatus string

const (
	StatusBalanced          PortfolioStatus = "BALANCED"
	StatusSlightlyOff       PortfolioStatus = "SLIGHTLY_OFF"
	StatusAttentionRequired PortfolioStatus = "ATTENTION_REQUIRED"
)

type HoldingValue struct {
	Holding
	PriceIrr decimal.Decimal
	ValueIrr decimal.Decimal
	ValueUsd decimal.Decimal
	HasPrice bool
}

// PortfolioSnapshot is a valuation of a portfolio at one price instant.
type PortfolioSnapshot struct {
	PortfolioID      int64
	UserID           int64
	CashIrr          decimal.Decimal
	HoldingsValueIrr decimal.Decimal
	TotalValueIrr    decimal.Decimal
	Holdings         []HoldingValue
	LayerValues      Allocation
	Allocation       Allocation
	Target           Allocation
	DriftPct         decimal.Decimal
	Status           PortfolioStatus
	Prices           Prices
}

func (s PortfolioSnapshot) HoldingsOf(layer Layer) []HoldingValue {
	res := make([]HoldingValue, 0, len(s.Holdings))
	for _, h := range s.Holdings {
		if h.Layer == layer {
			res = append(res, h)
		}
	}
	return res
}

func (s PortfolioSnapshot) HasFrozen() bool {
	for _, h := range s.Holdings {
		if h.Frozen {
			return true
		}
	}
	return false
}
