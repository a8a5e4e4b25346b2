package rebalanceService

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/boundary"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *Service) PreviewRebalance(ctx context.Context, userID int64, mode model.RebalanceMode) (preview model.RebalancePreview, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.PreviewRebalance"

	slog.Debug("PreviewRebalance start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("mode", string(mode)))
	defer func() {
		slog.Debug("PreviewRebalance finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	if !mode.Valid() {
		return model.RebalancePreview{}, &service.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}

	snapshot, err := s.snapshot(ctx, userID)
	if err != nil {
		return model.RebalancePreview{}, err
	}

	return s.engine(ctx).Preview(ctx, snapshot, mode), nil
}

func (s *Service) CheckRebalanceCooldown(ctx context.Context, userID int64) (model.CooldownStatus, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.CheckRebalanceCooldown"

	portfolio, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		slog.Error("got error from store.FindByUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.CooldownStatus{}, mapRepoErr(err)
	}

	return s.cooldown(portfolio.LastRebalanceAt), nil
}

// cooldown computes whole hours elapsed since the last rebalance (floor) and
// whole hours left in the window (ceil).
func (s *Service) cooldown(lastRebalanceAt *time.Time) model.CooldownStatus {
	res := model.CooldownStatus{CanRebalance: true, LastRebalanceAt: lastRebalanceAt}
	if lastRebalanceAt == nil {
		return res
	}

	elapsed := s.clock.Since(*lastRebalanceAt)
	if elapsed < 0 {
		elapsed = 0
	}
	since := int(elapsed / time.Hour)
	res.HoursSinceRebalance = &since

	window := s.cfg.Engine.CooldownWindow
	if elapsed < window {
		res.CanRebalance = false
		res.HoursRemaining = int(math.Ceil((window - elapsed).Hours()))
	}

	return res
}

// ExecuteRebalance runs the rebalance state machine: cooldown check, preview,
// acknowledgment gate, then a transactional apply against freshly locked
// state. Any failure after the gate rolls the whole transaction back.
func (s *Service) ExecuteRebalance(ctx context.Context, userID int64, mode model.RebalanceMode, acknowledgedWarning bool) (result model.RebalanceResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.ExecuteRebalance"

	slog.Debug("ExecuteRebalance start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("mode", string(mode)))
	defer func() {
		if err != nil {
			slog.Info("ExecuteRebalance rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("code", service.Code(err)), slog.String("err", err.Error()))
		} else {
			slog.Info("ExecuteRebalance committed", slog.String("rqID", rqID), slog.String("op", op), slog.String("ledgerEntryID", result.LedgerEntryID.String()))
		}
	}()

	if !mode.Valid() {
		return model.RebalanceResult{}, &service.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}

	portfolio, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return model.RebalanceResult{}, mapRepoErr(err)
	}

	if cd := s.cooldown(portfolio.LastRebalanceAt); !cd.CanRebalance {
		return model.RebalanceResult{}, &service.CooldownError{HoursRemaining: cd.HoursRemaining}
	}

	prices, err := s.currentPrices(ctx)
	if err != nil {
		return model.RebalanceResult{}, err
	}

	engine := s.engine(ctx)
	cfg := engine.Config()

	snapshot := rebalance.BuildSnapshot(ctx, portfolio, prices, cfg)
	if snapshot.DriftPct.LessThan(cfg.MinDriftPct) {
		return model.RebalanceResult{}, service.ErrNoRebalanceNeeded
	}

	preview := engine.Preview(ctx, snapshot, mode)
	if len(preview.Trades) == 0 {
		return model.RebalanceResult{}, service.ErrNoTrades
	}

	b := boundary.ForDrift(preview.CurrentDrift, preview.ResidualDrift, cfg.StatusFor)
	if b.RequiresAcknowledgment() && !acknowledgedWarning {
		return model.RebalanceResult{}, service.ErrAcknowledgmentRequired
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		fresh, err := s.store.FindByUserWithLock(ctx, userID)
		if err != nil {
			return mapRepoErr(err)
		}

		if cd := s.cooldown(fresh.LastRebalanceAt); !cd.CanRebalance {
			return &service.CooldownError{HoursRemaining: cd.HoursRemaining}
		}

		before := rebalance.BuildSnapshot(ctx, fresh, prices, cfg)
		freshPreview := engine.Preview(ctx, before, mode)

		trades := tradesWithinPreview(ctx, preview, freshPreview, cfg)

		applied, err := s.applyTrades(ctx, fresh, before, trades)
		if err != nil {
			return err
		}
		if len(applied.executed) == 0 {
			return service.ErrNoTrades
		}

		after := rebalance.BuildSnapshot(ctx, applied.portfolio, prices, cfg)
		b = boundary.ForDrift(before.DriftPct, after.DriftPct, cfg.StatusFor)
		if b.RequiresAcknowledgment() && !acknowledgedWarning {
			return service.ErrAcknowledgmentRequired
		}

		if err = s.persistApplied(ctx, fresh.ID, applied); err != nil {
			return err
		}

		now := s.clock.Now()
		if err = s.store.TouchLastRebalance(ctx, fresh.ID, now); err != nil {
			return err
		}

		entryID := uuid.New()
		message := fmt.Sprintf("Rebalanced %s: drift %s%% -> %s%%", mode, before.DriftPct.StringFixed(2), after.DriftPct.StringFixed(2))
		err = s.ledger.RecordLedgerEntry(ctx, model.LedgerEntry{
			ID:          entryID,
			PortfolioID: fresh.ID,
			EntryType:   model.EntryRebalance,
			Before:      before,
			After:       after,
			Boundary:    b,
			Message:     message,
			Metadata: map[string]any{
				"mode":    string(mode),
				"trades":  applied.executed,
				"skipped": applied.skipped,
			},
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, t := range applied.executed {
			total = money.Add(total, t.AmountIrr)
		}
		err = s.actions.RecordAction(ctx, model.ActionLog{
			PortfolioID: fresh.ID,
			ActionType:  model.ActionRebalance,
			Boundary:    b,
			Message:     message,
			AmountIrr:   &total,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		result = model.RebalanceResult{
			Success:        true,
			TradesExecuted: applied.executed,
			NewAllocation:  after.Allocation,
			LedgerEntryID:  entryID,
			Boundary:       b,
		}
		return nil
	})
	if err != nil {
		return model.RebalanceResult{}, mapRepoErr(err)
	}

	return result, nil
}

// tradesWithinPreview keeps the fresh trades whose asset and side were in
// the previewed plan. When a dropped sell funded part of the buys, the buys
// are scaled down to what the kept sells and cash still cover.
func tradesWithinPreview(ctx context.Context, previewed, fresh model.RebalancePreview, cfg rebalance.Config) []model.RebalanceTrade {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "tradesWithinPreview"

	funds := fresh.TotalAvailableForBuys
	var sells, buys []model.RebalanceTrade
	for _, t := range fresh.Trades {
		if !previewed.Has(t.AssetID, t.Side) {
			if t.Side == model.Sell {
				funds = money.Sub(funds, rebalance.NetProceeds(t.AmountIrr, t.Layer, cfg))
			}
			slog.Warn("trade not in previewed plan, dropped", slog.String("rqID", rqID), slog.String("op", op), slog.String("asset", string(t.AssetID)), slog.String("side", string(t.Side)))
			continue
		}
		if t.Side == model.Sell {
			sells = append(sells, t)
		} else {
			buys = append(buys, t)
		}
	}

	total := decimal.Zero
	for _, t := range buys {
		total = money.Add(total, t.AmountIrr)
	}
	if total.GreaterThan(funds) {
		funds = money.Max(funds, decimal.Zero)
		scaled := make([]model.RebalanceTrade, 0, len(buys))
		for _, t := range buys {
			t.AmountIrr = money.FloorIrr(money.DivOrZero(money.Mul(t.AmountIrr, funds), total))
			if t.AmountIrr.LessThan(cfg.MinTradeAmountIrr) {
				continue
			}
			scaled = append(scaled, t)
		}
		buys = scaled
	}

	return append(sells, buys...)
}

type appliedTrades struct {
	portfolio model.Portfolio
	executed  []model.RebalanceTrade
	skipped   []model.RebalanceTrade
	// touched lists holdings whose quantity changed, in trade order.
	touched []model.AssetID
}

// applyTrades applies trades to a copy of p: sells first, then buys. A sell
// against a frozen or unpriced holding is skipped. A buy that cash cannot
// fund fails with ErrInsufficientFunds. Holdings are never removed.
func (s *Service) applyTrades(ctx context.Context, p model.Portfolio, snapshot model.PortfolioSnapshot, trades []model.RebalanceTrade) (appliedTrades, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.applyTrades"
	cfg := s.cfg.Engine

	res := appliedTrades{portfolio: p}
	res.portfolio.Holdings = append([]model.Holding(nil), p.Holdings...)
	cash := p.CashIrr

	index := make(map[model.AssetID]int, len(res.portfolio.Holdings))
	for i, h := range res.portfolio.Holdings {
		index[h.AssetID] = i
	}
	touched := make(map[model.AssetID]bool)

	priceOf := func(id model.AssetID) (decimal.Decimal, bool) {
		price, ok := snapshot.Prices[id]
		if !ok || !price.PriceIrr.IsPositive() {
			return decimal.Zero, false
		}
		return price.PriceIrr, true
	}

	skip := func(t model.RebalanceTrade, reason string) {
		slog.Warn("trade skipped", slog.String("rqID", rqID), slog.String("op", op), slog.String("asset", string(t.AssetID)), slog.String("side", string(t.Side)), slog.String("reason", reason))
		res.skipped = append(res.skipped, t)
	}

	touch := func(id model.AssetID) {
		if !touched[id] {
			touched[id] = true
			res.touched = append(res.touched, id)
		}
	}

	for _, side := range []model.TradeSide{model.Sell, model.Buy} {
		for _, t := range trades {
			if t.Side != side {
				continue
			}

			price, ok := priceOf(t.AssetID)
			if !ok {
				skip(t, "no price")
				continue
			}

			i, held := index[t.AssetID]

			if side == model.Sell {
				if !held {
					skip(t, "not held")
					continue
				}
				h := &res.portfolio.Holdings[i]
				if h.Frozen {
					skip(t, "frozen")
					continue
				}
				qty := money.Min(money.RoundCrypto(money.DivOrZero(t.AmountIrr, price)), h.Quantity)
				h.Quantity = money.Sub(h.Quantity, qty)
				cash = money.Add(cash, rebalance.NetProceeds(t.AmountIrr, t.Layer, cfg))
			} else {
				if cash.LessThan(t.AmountIrr) {
					slog.Error("insufficient cash for buy", slog.String("rqID", rqID), slog.String("op", op), slog.String("asset", string(t.AssetID)), slog.String("cash", cash.String()), slog.String("amount", t.AmountIrr.String()))
					return appliedTrades{}, fmt.Errorf("%w: buy %s %s IRR with %s IRR cash", service.ErrInsufficientFunds, t.AssetID, t.AmountIrr, cash)
				}
				if !held {
					res.portfolio.Holdings = append(res.portfolio.Holdings, model.Holding{AssetID: t.AssetID, Quantity: decimal.Zero, Layer: t.Layer})
					i = len(res.portfolio.Holdings) - 1
					index[t.AssetID] = i
				}
				h := &res.portfolio.Holdings[i]
				cash = money.Sub(cash, t.AmountIrr)
				qty := money.RoundCrypto(money.DivOrZero(rebalance.NetProceeds(t.AmountIrr, t.Layer, cfg), price))
				h.Quantity = money.Add(h.Quantity, qty)
			}

			touch(t.AssetID)
			res.executed = append(res.executed, t)
		}
	}

	res.portfolio.CashIrr = cash
	return res, nil
}

func (s *Service) persistApplied(ctx context.Context, portfolioID int64, applied appliedTrades) error {
	if err := s.store.UpdateCash(ctx, portfolioID, applied.portfolio.CashIrr); err != nil {
		return err
	}
	for _, id := range applied.touched {
		h, _ := applied.portfolio.Holding(id)
		if err := s.store.UpsertHolding(ctx, portfolioID, h); err != nil {
			return err
		}
	}
	return nil
}
