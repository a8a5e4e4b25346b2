package rebalance

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/shopspring/decimal"
)

// NetProceeds is what a trade of amountIrr in layer is worth after spread,
// floored to a whole rial. It is the only place a spread is applied.
func NetProceeds(amountIrr decimal.Decimal, layer model.Layer, cfg Config) decimal.Decimal {
	return money.FloorIrr(money.NetOfSpread(amountIrr, cfg.Spread(layer)))
}

// availableFunds is the buy budget: net sell proceeds, plus cash when the
// mode allows deploying it.
func (e *Engine) availableFunds(s model.PortfolioSnapshot, sells []model.RebalanceTrade, mode model.RebalanceMode) decimal.Decimal {
	res := decimal.Zero
	for _, t := range sells {
		res = money.Add(res, NetProceeds(t.AmountIrr, t.Layer, e.cfg))
	}
	if mode.CashAware() && s.CashIrr.IsPositive() {
		res = money.Add(res, s.CashIrr)
	}
	return res
}

// generateBuys splits available across the underweight layers in proportion
// to their gaps. A layer never gets more than its own gap, and the running
// remainder is never overspent.
func (e *Engine) generateBuys(ctx context.Context, s model.PortfolioSnapshot, under []model.GapAnalysis, available decimal.Decimal) []model.RebalanceTrade {
	totalGap := decimal.Zero
	for _, g := range under {
		totalGap = money.Add(totalGap, g.GapIrr)
	}
	if !totalGap.IsPositive() || !available.IsPositive() {
		return nil
	}

	var trades []model.RebalanceTrade
	remaining := available

	for _, g := range under {
		if remaining.LessThan(e.cfg.MinTradeAmountIrr) {
			break
		}

		share := money.FloorIrr(money.DivOrZero(money.Mul(available, g.GapIrr), totalGap))
		allot := money.Min(money.Min(share, g.GapIrr), remaining)
		if allot.LessThan(e.cfg.MinTradeAmountIrr) {
			continue
		}

		layerTrades := e.layerBuys(ctx, s, g.Layer, allot)
		for _, t := range layerTrades {
			remaining = money.Sub(remaining, t.AmountIrr)
		}
		trades = append(trades, layerTrades...)
	}

	return trades
}

// eligibleWeights returns the layer's target weights restricted to assets
// with a usable price, renormalized to sum to 1.
func (e *Engine) eligibleWeights(s model.PortfolioSnapshot, layer model.Layer) []assets.AssetWeight {
	var res []assets.AssetWeight
	total := decimal.Zero
	for _, aw := range e.weights[layer] {
		p, ok := s.Prices[aw.AssetID]
		if !ok || !p.PriceIrr.IsPositive() || !aw.Weight.IsPositive() {
			continue
		}
		res = append(res, aw)
		total = money.Add(total, aw.Weight)
	}
	if !total.IsPositive() {
		return nil
	}
	if total.Equal(money.One) {
		return res
	}
	for i := range res {
		res[i].Weight = money.DivOrZero(res[i].Weight, total)
	}
	return res
}

func assetValues(s model.PortfolioSnapshot, layer model.Layer) map[model.AssetID]decimal.Decimal {
	res := make(map[model.AssetID]decimal.Decimal)
	for _, h := range s.HoldingsOf(layer) {
		res[h.AssetID] = money.Add(res[h.AssetID], h.ValueIrr)
	}
	return res
}

// layerBuys spends budget inside one layer. Each asset is brought towards
// its target weight of the post-buy layer total; needs above the budget are
// scaled down together.
func (e *Engine) layerBuys(ctx context.Context, s model.PortfolioSnapshot, layer model.Layer, budget decimal.Decimal) []model.RebalanceTrade {
	rqID := utils.GetRequestIDFromCtx(ctx)

	weights := e.eligibleWeights(s, layer)
	if len(weights) == 0 {
		slog.Warn(
			"no priced assets in layer, skipping buys",
			slog.String("rqID", rqID),
			slog.Int64("portfolioID", s.PortfolioID),
			slog.String("layer", string(layer)),
		)
		return nil
	}

	spread := e.cfg.Spread(layer)
	current := assetValues(s, layer)
	postTotal := money.Add(s.LayerValues.Get(layer), money.NetOfSpread(budget, spread))

	needs := make([]decimal.Decimal, len(weights))
	sumNeeds := decimal.Zero
	for i, aw := range weights {
		need := money.Sub(money.Mul(aw.Weight, postTotal), current[aw.AssetID])
		if !need.IsPositive() {
			needs[i] = decimal.Zero
			continue
		}
		needs[i] = money.GrossOfSpread(need, spread)
		sumNeeds = money.Add(sumNeeds, needs[i])
	}

	pool := budget
	if sumNeeds.LessThan(budget) {
		pool = money.FloorIrr(sumNeeds)
	}

	amounts := make([]decimal.Decimal, len(needs))
	for i, need := range needs {
		if sumNeeds.GreaterThan(budget) {
			need = money.DivOrZero(money.Mul(need, budget), sumNeeds)
		}
		amounts[i] = money.FloorIrr(need)
	}

	amounts, undeployed := redistributeBuys(pool, amounts, e.cfg.MinTradeAmountIrr)

	trades := make([]model.RebalanceTrade, 0, len(amounts))
	for i, amount := range amounts {
		if amount.IsPositive() {
			trades = append(trades, model.RebalanceTrade{
				Side:      model.Buy,
				AssetID:   weights[i].AssetID,
				AmountIrr: amount,
				Layer:     layer,
			})
		}
	}

	if len(trades) == 0 {
		top := weights[0]
		for _, aw := range weights[1:] {
			if aw.Weight.GreaterThan(top.Weight) {
				top = aw
			}
		}
		return []model.RebalanceTrade{{Side: model.Buy, AssetID: top.AssetID, AmountIrr: budget, Layer: layer}}
	}

	if undeployed.IsPositive() {
		slog.Debug(
			"layer budget not fully deployed",
			slog.String("rqID", rqID),
			slog.String("layer", string(layer)),
			slog.String("undeployed", undeployed.String()),
		)
	}

	return trades
}

// redistributeBuys drops amounts below minTrade and hands what was dropped,
// plus rounding leftovers, to the surviving amounts in proportion to their
// size. It runs at most maxBuyRedistributionPasses times and returns the part
// of pool it could not place.
func redistributeBuys(pool decimal.Decimal, amounts []decimal.Decimal, minTrade decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	res := append([]decimal.Decimal(nil), amounts...)

	for pass := 0; pass < maxBuyRedistributionPasses; pass++ {
		dropped := false
		for i, a := range res {
			if a.IsPositive() && a.LessThan(minTrade) {
				res[i] = decimal.Zero
				dropped = true
			}
		}

		placed := money.Sum(res...)
		leftover := money.Sub(pool, placed)
		if !leftover.IsPositive() {
			break
		}

		var viable []int
		for i, a := range res {
			if a.IsPositive() {
				viable = append(viable, i)
			}
		}
		if len(viable) == 0 {
			break
		}

		given := decimal.Zero
		for k, i := range viable {
			var add decimal.Decimal
			if k == len(viable)-1 {
				add = money.Sub(leftover, given)
			} else {
				add = money.FloorIrr(money.DivOrZero(money.Mul(leftover, res[i]), placed))
			}
			res[i] = money.Add(res[i], add)
			given = money.Add(given, add)
		}

		if !dropped {
			break
		}
	}

	return res, money.Sub(pool, money.Sum(res...))
}
