package rebalance

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/shopspring/decimal"
)

const usdPlaces = 2

// BuildSnapshot values a portfolio at the given prices. A held asset without
// a price contributes zero value.
func BuildSnapshot(ctx context.Context, p model.Portfolio, prices model.Prices, cfg Config) model.PortfolioSnapshot {
	rqID := utils.GetRequestIDFromCtx(ctx)

	s := model.PortfolioSnapshot{
		PortfolioID: p.ID,
		UserID:      p.UserID,
		CashIrr:     p.CashIrr,
		Holdings:    make([]model.HoldingValue, 0, len(p.Holdings)),
		Target:      p.Target,
		Prices:      prices,
	}

	for _, h := range orderHoldings(p.Holdings) {
		hv := model.HoldingValue{Holding: h, ValueIrr: decimal.Zero, ValueUsd: decimal.Zero, PriceIrr: decimal.Zero}

		price, ok := prices[h.AssetID]
		if ok && price.PriceIrr.IsPositive() {
			hv.HasPrice = true
			hv.PriceIrr = price.PriceIrr
			hv.ValueIrr = money.RoundIrr(money.Mul(h.Quantity, price.PriceIrr))
			hv.ValueUsd = money.Mul(h.Quantity, price.PriceUsd).Round(usdPlaces)
		} else if h.Quantity.IsPositive() {
			slog.Warn(
				"no price for held asset, valued at zero",
				slog.String("rqID", rqID),
				slog.Int64("portfolioID", p.ID),
				slog.String("assetID", string(h.AssetID)),
			)
		}

		s.Holdings = append(s.Holdings, hv)
		s.LayerValues.Set(h.Layer, money.Add(s.LayerValues.Get(h.Layer), hv.ValueIrr))
	}

	s.HoldingsValueIrr = s.LayerValues.Total()
	s.TotalValueIrr = money.Add(s.CashIrr, s.HoldingsValueIrr)
	s.Allocation = allocationOf(s.LayerValues)
	s.DriftPct = s.Allocation.MaxAbsDiff(s.Target)
	s.Status = cfg.StatusFor(s.DriftPct)

	return s
}

// allocationOf converts layer values into percentages of their sum.
func allocationOf(values model.Allocation) model.Allocation {
	total := values.Total()
	var res model.Allocation
	for _, l := range model.Layers {
		res.Set(l, money.Percent(values.Get(l), total))
	}
	return res
}

// orderHoldings sorts holdings by layer then asset id so every later stage
// iterates deterministically.
func orderHoldings(hs []model.Holding) []model.Holding {
	res := make([]model.Holding, 0, len(hs))
	for _, l := range model.Layers {
		start := len(res)
		for _, h := range hs {
			if h.Layer == l {
				res = append(res, h)
			}
		}
		slices.SortFunc(res[start:], func(a, b model.Holding) int {
			return cmp.Compare(a.AssetID, b.AssetID)
		})
	}
	return res
}
