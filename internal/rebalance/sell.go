package rebalance

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/shopspring/decimal"
)

// classify splits layers into sell candidates (overweight) and buy
// candidates (underweight).
func (e *Engine) classify(gaps []model.GapAnalysis, mode model.RebalanceMode) (over, under []model.GapAnalysis) {
	minTrade := e.cfg.MinTradeAmountIrr
	negMinTrade := minTrade.Neg()

	for _, g := range gaps {
		if mode.CashAware() {
			if g.GapIrr.LessThan(negMinTrade) {
				over = append(over, g)
				continue
			}
			if g.GapIrr.GreaterThan(minTrade) && g.GapPct.GreaterThan(e.cfg.OverweightGuardPct) {
				under = append(under, g)
			}
			continue
		}

		if g.GapPct.LessThan(e.cfg.HoldingsOnlyOverweightPct) {
			over = append(over, g)
			continue
		}
		if g.GapIrr.GreaterThan(minTrade) {
			under = append(under, g)
		}
	}

	return over, under
}

type sellCandidate struct {
	AssetID model.AssetID
	Layer   model.Layer
	Value   decimal.Decimal
	Cap     decimal.Decimal
}

// sellCandidates returns the holdings of a layer a rebalance may sell from.
// Frozen holdings, holdings without a price and holdings too small to keep
// MinKeepIrr are never candidates.
func (e *Engine) sellCandidates(s model.PortfolioSnapshot, layer model.Layer) []sellCandidate {
	var res []sellCandidate
	for _, h := range s.HoldingsOf(layer) {
		if h.Frozen || !h.HasPrice {
			continue
		}
		capIrr := e.cfg.SellCap(h.ValueIrr)
		if !capIrr.IsPositive() {
			continue
		}
		res = append(res, sellCandidate{AssetID: h.AssetID, Layer: layer, Value: h.ValueIrr, Cap: capIrr})
	}
	return res
}

// distributeSells spreads target over candidates pro rata to their value
// without exceeding any candidate's cap. Whatever a capped candidate could
// not take is offered to the rest on the next pass, at most
// maxRedistributionPasses times. The unplaced remainder is returned as
// shortfall.
func distributeSells(target decimal.Decimal, cands []sellCandidate) (amounts []decimal.Decimal, shortfall decimal.Decimal) {
	amounts = make([]decimal.Decimal, len(cands))
	for i := range amounts {
		amounts[i] = decimal.Zero
	}

	remaining := target
	for pass := 0; pass < maxRedistributionPasses && remaining.IsPositive(); pass++ {
		active := make([]int, 0, len(cands))
		base := decimal.Zero
		for i, c := range cands {
			if amounts[i].LessThan(c.Cap) {
				active = append(active, i)
				base = money.Add(base, c.Value)
			}
		}
		if len(active) == 0 || !base.IsPositive() {
			break
		}

		placed := decimal.Zero
		for k, i := range active {
			var share decimal.Decimal
			if k == len(active)-1 {
				share = money.Sub(remaining, placed)
			} else {
				share = money.FloorIrr(money.DivOrZero(money.Mul(remaining, cands[i].Value), base))
			}

			add := money.Min(share, money.Sub(cands[i].Cap, amounts[i]))
			if !add.IsPositive() {
				continue
			}
			amounts[i] = money.Add(amounts[i], add)
			placed = money.Add(placed, add)
		}

		if !placed.IsPositive() {
			break
		}
		remaining = money.Sub(remaining, placed)
	}

	return amounts, remaining
}

// generateSells builds the pro-rata sell trades of the overweight layers.
func (e *Engine) generateSells(ctx context.Context, s model.PortfolioSnapshot, over []model.GapAnalysis) ([]model.RebalanceTrade, decimal.Decimal) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	var trades []model.RebalanceTrade
	totalShortfall := decimal.Zero

	for _, g := range over {
		target := money.Min(g.GapIrr.Abs(), g.SellableIrr)
		if !target.IsPositive() {
			continue
		}

		cands := e.sellCandidates(s, g.Layer)
		amounts, shortfall := distributeSells(target, cands)

		for i, amount := range amounts {
			if amount.LessThan(e.cfg.MinTradeAmountIrr) {
				shortfall = money.Add(shortfall, amount)
				continue
			}
			trades = append(trades, model.RebalanceTrade{
				Side:      model.Sell,
				AssetID:   cands[i].AssetID,
				AmountIrr: amount,
				Layer:     g.Layer,
			})
		}

		if shortfall.IsPositive() {
			slog.Warn(
				"sell target not fully placed, accepting partial rebalance",
				slog.String("rqID", rqID),
				slog.Int64("portfolioID", s.PortfolioID),
				slog.String("layer", string(g.Layer)),
				slog.String("target", target.String()),
				slog.String("shortfall", shortfall.String()),
			)
		}
		totalShortfall = money.Add(totalShortfall, shortfall)
	}

	return trades, totalShortfall
}
