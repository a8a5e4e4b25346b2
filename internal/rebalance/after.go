package rebalance

import (
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/shopspring/decimal"
)

// AfterState is a snapshot's layer picture once a trade list is applied.
type AfterState struct {
	LayerValues model.Allocation
	Allocation  model.Allocation
	CashIrr     decimal.Decimal
	DriftPct    decimal.Decimal
	Status      model.PortfolioStatus
}

// consolidate merges trades with the same asset and side. Sells come first,
// each side keeps the order in which assets first appeared.
func consolidate(trades []model.RebalanceTrade) []model.RebalanceTrade {
	idx := make(map[tradeKey]int, len(trades))
	var sells, buys []model.RebalanceTrade

	for _, t := range trades {
		k := tradeKey{t.AssetID, t.Side}
		list := &buys
		if t.Side == model.Sell {
			list = &sells
		}
		if i, ok := idx[k]; ok {
			(*list)[i].AmountIrr = money.Add((*list)[i].AmountIrr, t.AmountIrr)
			continue
		}
		idx[k] = len(*list)
		*list = append(*list, t)
	}

	return append(sells, buys...)
}

// ApplyTrades applies trades to a copy of the snapshot's layer totals. Sells
// add their net proceeds to cash, buys take their gross amount from cash and
// add their net value to the layer.
func ApplyTrades(s model.PortfolioSnapshot, trades []model.RebalanceTrade, cfg Config) AfterState {
	values := s.LayerValues
	cash := s.CashIrr

	for _, t := range trades {
		switch t.Side {
		case model.Sell:
			values.Set(t.Layer, money.Sub(values.Get(t.Layer), t.AmountIrr))
			cash = money.Add(cash, NetProceeds(t.AmountIrr, t.Layer, cfg))
		case model.Buy:
			values.Set(t.Layer, money.Add(values.Get(t.Layer), NetProceeds(t.AmountIrr, t.Layer, cfg)))
			cash = money.Sub(cash, t.AmountIrr)
		}
	}

	alloc := allocationOf(values)
	drift := alloc.MaxAbsDiff(s.Target)

	return AfterState{
		LayerValues: values,
		Allocation:  alloc,
		CashIrr:     cash,
		DriftPct:    drift,
		Status:      cfg.StatusFor(drift),
	}
}
