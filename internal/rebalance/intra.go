package rebalance

import (
	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/shopspring/decimal"
)

type tradeKey struct {
	AssetID model.AssetID
	Side    model.TradeSide
}

// projectValues returns each asset's value after the given trades, net of
// spread for buys.
func (e *Engine) projectValues(s model.PortfolioSnapshot, trades []model.RebalanceTrade) map[model.AssetID]decimal.Decimal {
	res := make(map[model.AssetID]decimal.Decimal, len(s.Holdings))
	for _, h := range s.Holdings {
		res[h.AssetID] = money.Add(res[h.AssetID], h.ValueIrr)
	}
	for _, t := range trades {
		switch t.Side {
		case model.Sell:
			res[t.AssetID] = money.Sub(res[t.AssetID], t.AmountIrr)
		case model.Buy:
			res[t.AssetID] = money.Add(res[t.AssetID], money.NetOfSpread(t.AmountIrr, e.cfg.Spread(t.Layer)))
		}
	}
	return res
}

// intraLayer corrects single-asset weights inside layers that are already
// close to their layer target. Buys are funded only by the net proceeds of
// the sells made here, per layer. It returns the new trades and the total
// net proceeds that funded them.
func (e *Engine) intraLayer(s model.PortfolioSnapshot, gaps []model.GapAnalysis, prior []model.RebalanceTrade) ([]model.RebalanceTrade, decimal.Decimal) {
	if !e.cfg.IntraLayerEnabled {
		return nil, decimal.Zero
	}

	existing := make(map[tradeKey]decimal.Decimal, len(prior))
	for _, t := range prior {
		k := tradeKey{t.AssetID, t.Side}
		existing[k] = money.Add(existing[k], t.AmountIrr)
	}

	projected := e.projectValues(s, prior)

	var trades []model.RebalanceTrade
	proceeds := decimal.Zero

	for _, g := range gaps {
		if g.GapPct.Abs().GreaterThan(e.cfg.IntraLayerTolerancePct) {
			continue
		}

		layerTrades, layerProceeds := e.intraLayerTrades(s, g.Layer, projected, existing)
		trades = append(trades, layerTrades...)
		proceeds = money.Add(proceeds, layerProceeds)
	}

	return trades, proceeds
}

func (e *Engine) intraLayerTrades(
	s model.PortfolioSnapshot,
	layer model.Layer,
	projected map[model.AssetID]decimal.Decimal,
	existing map[tradeKey]decimal.Decimal,
) ([]model.RebalanceTrade, decimal.Decimal) {
	weights := e.eligibleWeights(s, layer)
	if len(weights) == 0 {
		return nil, decimal.Zero
	}

	layerTotal := decimal.Zero
	seen := make(map[model.AssetID]bool)
	for _, h := range s.HoldingsOf(layer) {
		seen[h.AssetID] = true
		layerTotal = money.Add(layerTotal, projected[h.AssetID])
	}
	// positions opened by earlier buys
	for _, aw := range e.weights[layer] {
		if !seen[aw.AssetID] {
			layerTotal = money.Add(layerTotal, projected[aw.AssetID])
		}
	}
	if !layerTotal.IsPositive() {
		return nil, decimal.Zero
	}

	minTrade := e.cfg.MinTradeAmountIrr
	band := e.cfg.IntraLayerBandPct
	targetPct := func(id model.AssetID) decimal.Decimal {
		for _, aw := range weights {
			if aw.AssetID == id {
				return money.Mul(aw.Weight, money.Hundred)
			}
		}
		return decimal.Zero
	}

	var sells []model.RebalanceTrade
	for _, h := range s.HoldingsOf(layer) {
		if h.Frozen || !h.HasPrice {
			continue
		}
		if _, ok := existing[tradeKey{h.AssetID, model.Buy}]; ok {
			continue
		}

		value := projected[h.AssetID]
		target := targetPct(h.AssetID)
		actual := money.Percent(value, layerTotal)
		if !money.Sub(actual, target).GreaterThan(e.cfg.IntraLayerOverweightPct) {
			continue
		}

		desired := money.OfPercent(layerTotal, money.Add(target, band))
		room := money.Sub(e.cfg.SellCap(h.ValueIrr), existing[tradeKey{h.AssetID, model.Sell}])
		amount := money.FloorIrr(money.Min(money.Sub(value, desired), room))
		if amount.LessThan(minTrade) {
			continue
		}

		sells = append(sells, model.RebalanceTrade{Side: model.Sell, AssetID: h.AssetID, AmountIrr: amount, Layer: layer})
	}

	if len(sells) == 0 {
		return nil, decimal.Zero
	}

	sold := make(map[model.AssetID]bool, len(sells))
	for _, t := range sells {
		sold[t.AssetID] = true
	}

	var buyable []assets.AssetWeight
	for _, aw := range weights {
		if _, ok := existing[tradeKey{aw.AssetID, model.Sell}]; ok || sold[aw.AssetID] {
			continue
		}
		buyable = append(buyable, aw)
	}

	spread := e.cfg.Spread(layer)

	// proceeds the buyable assets can take before reaching full weight
	capacity := decimal.Zero
	for _, aw := range buyable {
		deficit := money.Sub(money.Mul(aw.Weight, layerTotal), projected[aw.AssetID])
		if deficit.IsPositive() {
			capacity = money.Add(capacity, money.GrossOfSpread(deficit, spread))
		}
	}
	if capacity.LessThan(minTrade) {
		return nil, decimal.Zero
	}

	sells = e.fitSellsToCapacity(sells, layer, capacity)
	if len(sells) == 0 {
		return nil, decimal.Zero
	}

	budget := decimal.Zero
	for _, t := range sells {
		budget = money.Add(budget, NetProceeds(t.AmountIrr, layer, e.cfg))
	}

	amounts := make([]decimal.Decimal, len(buyable))
	needTotal := decimal.Zero
	for i, aw := range buyable {
		amounts[i] = decimal.Zero
		value := projected[aw.AssetID]
		target := money.Mul(aw.Weight, money.Hundred)
		if !money.Sub(target, money.Percent(value, layerTotal)).GreaterThan(e.cfg.IntraLayerUnderweightPct) {
			continue
		}
		need := money.Sub(money.OfPercent(layerTotal, money.Sub(target, band)), value)
		if need.IsPositive() {
			amounts[i] = money.GrossOfSpread(need, spread)
			needTotal = money.Add(needTotal, amounts[i])
		}
	}

	if needTotal.GreaterThan(budget) {
		for i := range amounts {
			amounts[i] = money.DivOrZero(money.Mul(amounts[i], budget), needTotal)
		}
	} else {
		// the rest of the proceeds moves buyable assets towards full weight
		e.topUpTowardsTarget(buyable, amounts, projected, layerTotal, money.Sub(budget, needTotal), spread)
	}

	var buys []model.RebalanceTrade
	for i, aw := range buyable {
		amount := money.FloorIrr(amounts[i])
		if amount.LessThan(minTrade) {
			continue
		}
		buys = append(buys, model.RebalanceTrade{Side: model.Buy, AssetID: aw.AssetID, AmountIrr: amount, Layer: layer})
	}
	// sells without buys in the same layer only move value into cash
	if len(buys) == 0 {
		return nil, decimal.Zero
	}

	return append(sells, buys...), budget
}

// fitSellsToCapacity scales sells down pro rata so their net proceeds do not
// exceed capacity. Sells that fall below the minimum trade are dropped.
func (e *Engine) fitSellsToCapacity(sells []model.RebalanceTrade, layer model.Layer, capacity decimal.Decimal) []model.RebalanceTrade {
	proceeds := decimal.Zero
	for _, t := range sells {
		proceeds = money.Add(proceeds, NetProceeds(t.AmountIrr, layer, e.cfg))
	}
	if proceeds.LessThanOrEqual(capacity) {
		return sells
	}

	var res []model.RebalanceTrade
	for _, t := range sells {
		t.AmountIrr = money.FloorIrr(money.DivOrZero(money.Mul(t.AmountIrr, capacity), proceeds))
		if t.AmountIrr.LessThan(e.cfg.MinTradeAmountIrr) {
			continue
		}
		res = append(res, t)
	}
	return res
}

func (e *Engine) topUpTowardsTarget(
	buyable []assets.AssetWeight,
	amounts []decimal.Decimal,
	projected map[model.AssetID]decimal.Decimal,
	layerTotal, leftover, spread decimal.Decimal,
) {
	if !leftover.IsPositive() {
		return
	}

	deficits := make([]decimal.Decimal, len(buyable))
	sum := decimal.Zero
	for i, aw := range buyable {
		deficits[i] = decimal.Zero
		after := money.Add(projected[aw.AssetID], money.NetOfSpread(amounts[i], spread))
		deficit := money.Sub(money.Mul(aw.Weight, layerTotal), after)
		if deficit.IsPositive() {
			deficits[i] = money.GrossOfSpread(deficit, spread)
			sum = money.Add(sum, deficits[i])
		}
	}
	if !sum.IsPositive() {
		return
	}

	for i := range amounts {
		add := deficits[i]
		if sum.GreaterThan(leftover) {
			add = money.DivOrZero(money.Mul(deficits[i], leftover), sum)
		}
		amounts[i] = money.Add(amounts[i], add)
	}
}
