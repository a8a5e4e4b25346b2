package rebalance

import (
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/shopspring/decimal"
)

// AnalyzeGaps compares each layer with its target.
//
// gapPct is always measured on the holdings-only allocation. gapIrr is
// measured on holdings value in HoldingsOnly mode and on holdings plus cash
// in the cash-aware modes. With no holdings value gapPct equals the target.
func AnalyzeGaps(s model.PortfolioSnapshot, mode model.RebalanceMode) []model.GapAnalysis {
	res := make([]model.GapAnalysis, 0, len(model.Layers))

	for _, layer := range model.Layers {
		current := s.Allocation.Get(layer)
		target := s.Target.Get(layer)
		layerValue := s.LayerValues.Get(layer)

		g := model.GapAnalysis{
			Layer:       layer,
			CurrentPct:  current,
			TargetPct:   target,
			GapPct:      money.Sub(target, current),
			GapIrr:      decimal.Zero,
			SellableIrr: decimal.Zero,
			FrozenIrr:   decimal.Zero,
		}

		if mode.CashAware() {
			targetValue := money.RoundIrr(money.OfPercent(s.TotalValueIrr, target))
			g.GapIrr = money.Sub(targetValue, layerValue)
		} else {
			g.GapIrr = money.RoundIrr(money.OfPercent(s.HoldingsValueIrr, g.GapPct))
		}

		for _, h := range s.HoldingsOf(layer) {
			if h.Frozen {
				g.FrozenIrr = money.Add(g.FrozenIrr, h.ValueIrr)
			} else {
				g.SellableIrr = money.Add(g.SellableIrr, h.ValueIrr)
			}
		}

		res = append(res, g)
	}

	return res
}
