// Package rebalance computes the trades that move a portfolio towards its
// target layer allocation. Everything here is pure computation over values;
// persistence and prices are the caller's concern.
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

type Engine struct {
	cfg     Config
	weights assets.Weights
}

func NewEngine(cfg Config, weights assets.Weights) *Engine {
	return &Engine{cfg: cfg, weights: weights}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Preview runs gap analysis and trade generation on a snapshot.
func (e *Engine) Preview(ctx context.Context, s model.PortfolioSnapshot, mode model.RebalanceMode) model.RebalancePreview {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Engine.Preview"

	gaps := AnalyzeGaps(s, mode)
	over, under := e.classify(gaps, mode)

	if mode == model.Smart && cashCoversGaps(s.CashIrr, under) {
		slog.Debug("cash covers underweight layers, no sells", slog.String("rqID", rqID), slog.String("op", op))
		over = nil
	}

	sells, shortfall := e.generateSells(ctx, s, over)
	available := e.availableFunds(s, sells, mode)
	buys := e.generateBuys(ctx, s, under, available)

	interLayer := append(append([]model.RebalanceTrade(nil), sells...), buys...)
	trades := consolidate(interLayer)
	after := ApplyTrades(s, trades, e.cfg)

	intra, intraProceeds := e.intraLayer(s, gaps, interLayer)
	if len(intra) > 0 {
		withIntra := consolidate(append(append([]model.RebalanceTrade(nil), interLayer...), intra...))
		afterIntra := ApplyTrades(s, withIntra, e.cfg)
		if e.intraKeepsConvergence(s, len(interLayer) > 0, afterIntra.DriftPct) {
			trades, after = withIntra, afterIntra
		} else {
			slog.Warn(
				"intra-layer pass raises drift, skipped",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.Int64("portfolioID", s.PortfolioID),
				slog.String("drift", s.DriftPct.String()),
				slog.String("driftWithIntra", afterIntra.DriftPct.String()),
			)
			intraProceeds = decimal.Zero
		}
	}

	totalBuy, totalSell := decimal.Zero, decimal.Zero
	for _, t := range trades {
		if t.Side == model.Buy {
			totalBuy = money.Add(totalBuy, t.AmountIrr)
		} else {
			totalSell = money.Add(totalSell, t.AmountIrr)
		}
	}

	preview := model.RebalancePreview{
		Trades:                trades,
		CurrentAllocation:     s.Allocation,
		TargetAllocation:      s.Target,
		AfterAllocation:       after.Allocation,
		TotalBuyIrr:           totalBuy,
		TotalSellIrr:          totalSell,
		TotalAvailableForBuys: money.Add(available, intraProceeds),
		CanFullyRebalance:     after.DriftPct.LessThan(e.cfg.FullRebalanceDriftPct),
		CurrentDrift:          s.DriftPct,
		ResidualDrift:         after.DriftPct,
		HasLockedCollateral:   s.HasFrozen(),
		SellShortfallIrr:      shortfall,
		CashAfterIrr:          after.CashIrr,
		StatusBefore:          s.Status,
		StatusAfter:           after.Status,
		GapAnalysis:           gaps,
		Mode:                  mode,
	}
	if preview.Trades == nil {
		preview.Trades = []model.RebalanceTrade{}
	}

	slog.Debug(
		"preview computed",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("portfolioID", s.PortfolioID),
		slog.Int("trades", len(trades)),
		slog.String("drift", s.DriftPct.String()),
		slog.String("residualDrift", after.DriftPct.String()),
	)

	return preview
}

// intraKeepsConvergence reports whether a plan with intra-layer trades may
// end at drift. It must not end above the starting drift, except for the
// spread cost of a pass on a portfolio without inter-layer trades.
func (e *Engine) intraKeepsConvergence(s model.PortfolioSnapshot, hasInterLayer bool, drift decimal.Decimal) bool {
	limit := s.DriftPct
	if !hasInterLayer {
		limit = money.Add(limit, e.cfg.IntraLayerDriftSlackPct)
	}
	return drift.LessThanOrEqual(limit)
}

func cashCoversGaps(cash decimal.Decimal, under []model.GapAnalysis) bool {
	need := decimal.Zero
	for _, g := range under {
		need = money.Add(need, g.GapIrr)
	}
	return need.IsPositive() && cash.GreaterThanOrEqual(need)
}
