package rebalanceService

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/KotFed0t/blu_rebalancer/data/repository"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPreviewRebalance(t *testing.T) {
	f := newFixture(t, drifted(false))

	preview, err := f.svc.PreviewRebalance(context.Background(), userID, model.HoldingsOnly)
	require.NoError(t, err)

	assert.True(t, preview.Has(model.USDT, model.Sell))
	assert.True(t, preview.ResidualDrift.LessThan(preview.CurrentDrift))
	assert.Equal(t, model.HoldingsOnly, preview.Mode)
}

func TestPreviewRebalanceErrors(t *testing.T) {
	f := newFixture(t, drifted(false))

	_, err := f.svc.PreviewRebalance(context.Background(), 404, model.Smart)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.svc.PreviewRebalance(context.Background(), userID, "EVERYTHING")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestCheckRebalanceCooldown(t *testing.T) {
	t.Run("never rebalanced", func(t *testing.T) {
		f := newFixture(t, drifted(false))

		status, err := f.svc.CheckRebalanceCooldown(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, status.CanRebalance)
		assert.Nil(t, status.LastRebalanceAt)
		assert.Nil(t, status.HoursSinceRebalance)
		assert.Zero(t, status.HoursRemaining)
	})

	t.Run("inside window", func(t *testing.T) {
		p := drifted(false)
		last := testNow.Add(-5*time.Hour - 30*time.Minute)
		p.LastRebalanceAt = &last
		f := newFixture(t, p)

		status, err := f.svc.CheckRebalanceCooldown(context.Background(), userID)
		require.NoError(t, err)
		assert.False(t, status.CanRebalance)
		require.NotNil(t, status.HoursSinceRebalance)
		assert.Equal(t, 5, *status.HoursSinceRebalance)
		assert.Equal(t, 19, status.HoursRemaining)
	})

	t.Run("window elapsed", func(t *testing.T) {
		p := drifted(false)
		last := testNow.Add(-25 * time.Hour)
		p.LastRebalanceAt = &last
		f := newFixture(t, p)

		status, err := f.svc.CheckRebalanceCooldown(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, status.CanRebalance)
		assert.Equal(t, 25, *status.HoursSinceRebalance)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CheckRebalanceCooldown(context.Background(), userID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestExecuteRebalanceCommits(t *testing.T) {
	f := newFixture(t, drifted(false))
	f.expectRecords()

	before := f.store.get(userID)
	res, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.NotEmpty(t, res.TradesExecuted)
	assert.Equal(t, model.BoundarySafe, res.Boundary)

	after := f.store.get(userID)
	require.NotNil(t, after.LastRebalanceAt)
	assert.Equal(t, testNow, *after.LastRebalanceAt)
	assert.False(t, after.CashIrr.IsNegative())
	assert.Empty(t, f.store.deleted)
	assert.GreaterOrEqual(t, len(after.Holdings), len(before.Holdings))
	for _, h := range before.Holdings {
		got, ok := after.Holding(h.AssetID)
		require.True(t, ok, "%s must not be removed", h.AssetID)
		assert.True(t, got.Quantity.IsPositive())
	}

	snap := rebalance.BuildSnapshot(context.Background(), after, flatPrices(), rebalance.DefaultConfig())
	assert.True(t, snap.DriftPct.LessThan(decimal10()), "drift after %s", snap.DriftPct)
	assert.True(t, res.NewAllocation.Foundation.Equal(snap.Allocation.Foundation))

	entry := f.ledger.Calls[0].Arguments.Get(1).(model.LedgerEntry)
	assert.Equal(t, model.EntryRebalance, entry.EntryType)
	assert.Equal(t, res.LedgerEntryID, entry.ID)
	assert.True(t, entry.Before.DriftPct.Equal(decimal10()))

	action := f.actions.Calls[0].Arguments.Get(1).(model.ActionLog)
	assert.Equal(t, model.ActionRebalance, action.ActionType)
	require.NotNil(t, action.AmountIrr)
	assert.True(t, action.AmountIrr.IsPositive())
}

func TestExecuteRebalanceCooldown(t *testing.T) {
	p := drifted(false)
	last := testNow.Add(-2 * time.Hour)
	p.LastRebalanceAt = &last
	f := newFixture(t, p)

	_, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, true)
	require.ErrorIs(t, err, service.ErrRebalanceCooldown)

	var cd *service.CooldownError
	require.True(t, errors.As(err, &cd))
	assert.Equal(t, 22, cd.HoursRemaining)
}

func TestExecuteRebalanceAfterCooldownElapses(t *testing.T) {
	p := drifted(false)
	last := testNow.Add(-2 * time.Hour)
	p.LastRebalanceAt = &last
	f := newFixture(t, p)
	f.expectRecords()

	f.clock.Advance(22 * time.Hour)

	_, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, false)
	require.NoError(t, err)
}

func TestExecuteRebalanceNoRebalanceNeeded(t *testing.T) {
	f := newFixture(t, portfolio(0,
		holding(model.USDT, 50*billion, false),
		holding(model.BTC, 35*billion, false),
		holding(model.SOL, 15*billion, false),
	))

	_, err := f.svc.ExecuteRebalance(context.Background(), userID, model.Smart, true)
	assert.ErrorIs(t, err, service.ErrNoRebalanceNeeded)
}

func TestExecuteRebalanceAcknowledgment(t *testing.T) {
	t.Run("rejected without acknowledgment", func(t *testing.T) {
		f := newFixture(t, drifted(true))
		before := f.store.get(userID)

		_, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, false)
		require.ErrorIs(t, err, service.ErrAcknowledgmentRequired)
		assert.Equal(t, before, f.store.get(userID))
	})

	t.Run("frozen collateral is never sold", func(t *testing.T) {
		f := newFixture(t, drifted(true))
		f.expectRecords()

		res, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, true)
		require.NoError(t, err)
		assert.Equal(t, model.BoundaryStructural, res.Boundary)

		for _, tr := range res.TradesExecuted {
			assert.False(t, tr.AssetID == model.USDT && tr.Side == model.Sell)
		}
		usdt, ok := f.store.get(userID).Holding(model.USDT)
		require.True(t, ok)
		assert.True(t, usdt.Frozen)
		assert.True(t, usdt.Quantity.Equal(money.Irr(60_000)))
	})
}

func TestExecuteRebalanceRecheckesFrozenUnderLock(t *testing.T) {
	f := newFixture(t, drifted(false))
	f.expectRecords()

	// collateral pledged between preview and apply
	f.store.onLock = func(p *model.Portfolio) {
		for i := range p.Holdings {
			if p.Holdings[i].AssetID == model.USDT {
				p.Holdings[i].Frozen = true
			}
		}
	}

	res, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, true)
	require.NoError(t, err)

	for _, tr := range res.TradesExecuted {
		assert.False(t, tr.AssetID == model.USDT && tr.Side == model.Sell, "frozen USDT sold")
	}
	usdt, _ := f.store.get(userID).Holding(model.USDT)
	assert.True(t, usdt.Quantity.Equal(money.Irr(60_000)))
}

func TestExecuteRebalanceDoesNotRaiseDrift(t *testing.T) {
	f := newFixture(t, portfolio(0,
		holding(model.IRRFixedIncome, 16_045_000_000, false),
		holding(model.PAXG, 5_804_000_000, false),
		holding(model.USDT, 5_691_000_000, false),
		holding(model.ETH, 17_651_000_000, false),
		holding(model.MATIC, 9_003_000_000, false),
	))
	f.expectRecords()

	cfg := rebalance.DefaultConfig()
	before := rebalance.BuildSnapshot(context.Background(), f.store.get(userID), flatPrices(), cfg)

	res, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsPlusCash, false)
	require.NoError(t, err)
	assert.Equal(t, model.BoundarySafe, res.Boundary)

	after := rebalance.BuildSnapshot(context.Background(), f.store.get(userID), flatPrices(), cfg)
	assert.True(t, after.DriftPct.LessThanOrEqual(before.DriftPct), "drift %s -> %s", before.DriftPct, after.DriftPct)
	assert.Equal(t, model.StatusBalanced, after.Status)

	entry := f.ledger.Calls[0].Arguments.Get(1).(model.LedgerEntry)
	assert.True(t, entry.After.DriftPct.LessThanOrEqual(entry.Before.DriftPct))
}

func TestExecuteRebalanceScalesBuysOfDroppedSells(t *testing.T) {
	f := newFixture(t, drifted(false))
	f.expectRecords()

	// a foundation position lands between preview and apply, so the fresh
	// plan also sells PAXG, which the previewed plan never showed
	f.store.onLock = func(p *model.Portfolio) {
		p.Holdings = append(p.Holdings, holding(model.PAXG, 20*billion, false))
	}

	res, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, true)
	require.NoError(t, err)

	sold, bought := decimal.Zero, decimal.Zero
	cfg := rebalance.DefaultConfig()
	for _, tr := range res.TradesExecuted {
		if tr.Side == model.Sell {
			assert.NotEqual(t, model.PAXG, tr.AssetID, "sell outside the previewed plan executed")
			sold = sold.Add(rebalance.NetProceeds(tr.AmountIrr, tr.Layer, cfg))
			continue
		}
		bought = bought.Add(tr.AmountIrr)
	}
	assert.True(t, bought.IsPositive())
	assert.True(t, bought.LessThanOrEqual(sold), "buys %s above proceeds %s", bought, sold)

	after := f.store.get(userID)
	assert.False(t, after.CashIrr.IsNegative())
	paxg, ok := after.Holding(model.PAXG)
	require.True(t, ok)
	assert.True(t, paxg.Quantity.Equal(money.Irr(20_000)))
}

func TestTradesWithinPreview(t *testing.T) {
	cfg := rebalance.DefaultConfig()
	previewed := model.RebalancePreview{Trades: []model.RebalanceTrade{
		{Side: model.Sell, AssetID: model.USDT, AmountIrr: money.Irr(10 * billion), Layer: model.Foundation},
		{Side: model.Buy, AssetID: model.BTC, AmountIrr: money.Irr(5 * billion), Layer: model.Growth},
		{Side: model.Buy, AssetID: model.SOL, AmountIrr: money.Irr(5 * billion), Layer: model.Upside},
	}}

	t.Run("same plan is kept as is", func(t *testing.T) {
		fresh := previewed
		fresh.TotalAvailableForBuys = rebalance.NetProceeds(money.Irr(10*billion), model.Foundation, cfg)
		fresh.Trades = []model.RebalanceTrade{
			previewed.Trades[0],
			{Side: model.Buy, AssetID: model.BTC, AmountIrr: money.Irr(4 * billion), Layer: model.Growth},
		}

		got := tradesWithinPreview(context.Background(), previewed, fresh, cfg)
		assert.Equal(t, fresh.Trades, got)
	})

	t.Run("buys shrink with a dropped sell", func(t *testing.T) {
		sellPaxg := money.Irr(10 * billion)
		fresh := model.RebalancePreview{
			Trades: []model.RebalanceTrade{
				{Side: model.Sell, AssetID: model.USDT, AmountIrr: money.Irr(10 * billion), Layer: model.Foundation},
				{Side: model.Sell, AssetID: model.PAXG, AmountIrr: sellPaxg, Layer: model.Foundation},
				{Side: model.Buy, AssetID: model.BTC, AmountIrr: money.Irr(12 * billion), Layer: model.Growth},
				{Side: model.Buy, AssetID: model.SOL, AmountIrr: money.Irr(7 * billion), Layer: model.Upside},
			},
			TotalAvailableForBuys: rebalance.NetProceeds(money.Irr(20*billion), model.Foundation, cfg),
		}

		got := tradesWithinPreview(context.Background(), previewed, fresh, cfg)

		require.Len(t, got, 3)
		assert.Equal(t, model.USDT, got[0].AssetID)
		funds := rebalance.NetProceeds(money.Irr(10*billion), model.Foundation, cfg)
		total := got[1].AmountIrr.Add(got[2].AmountIrr)
		assert.True(t, total.LessThanOrEqual(funds), "buys %s above funds %s", total, funds)
		assert.True(t, got[1].AmountIrr.GreaterThan(got[2].AmountIrr))
	})

	t.Run("buys below the minimum trade are dropped", func(t *testing.T) {
		fresh := model.RebalancePreview{
			Trades: []model.RebalanceTrade{
				{Side: model.Sell, AssetID: model.PAXG, AmountIrr: money.Irr(10 * billion), Layer: model.Foundation},
				{Side: model.Buy, AssetID: model.BTC, AmountIrr: money.Irr(5 * billion), Layer: model.Growth},
			},
			TotalAvailableForBuys: rebalance.NetProceeds(money.Irr(10*billion), model.Foundation, cfg),
		}

		got := tradesWithinPreview(context.Background(), previewed, fresh, cfg)
		assert.Empty(t, got)
	})
}

func TestExecuteRebalanceRollsBack(t *testing.T) {
	f := newFixture(t, drifted(false))
	f.ledger.On("RecordLedgerEntry", mock.Anything, mock.Anything).Return(errors.New("ledger down")).Once()

	before := f.store.get(userID)

	_, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, false)
	require.Error(t, err)
	assert.Equal(t, service.CodeInternal, service.Code(err))

	assert.Equal(t, before, f.store.get(userID))
}

func TestExecuteRebalanceConflict(t *testing.T) {
	f := newFixture(t, drifted(false))
	f.expectRecords()
	f.store.commitErr = fmt.Errorf("commit transaction: %w", repository.ErrConflict)

	before := f.store.get(userID)

	_, err := f.svc.ExecuteRebalance(context.Background(), userID, model.HoldingsOnly, false)
	require.ErrorIs(t, err, service.ErrConflict)
	assert.Equal(t, service.CodeConflict, service.Code(err))

	assert.Equal(t, before, f.store.get(userID))
}

func TestApplyTrades(t *testing.T) {
	f := newFixture(t)
	cfg := rebalance.DefaultConfig()
	p := portfolio(1*billion,
		holding(model.USDT, 20*billion, true),
		holding(model.BTC, 10*billion, false),
	)
	snap := rebalance.BuildSnapshot(context.Background(), p, flatPrices(), cfg)

	t.Run("sells before buys and skips frozen", func(t *testing.T) {
		trades := []model.RebalanceTrade{
			{Side: model.Buy, AssetID: model.ETH, AmountIrr: money.Irr(3 * billion), Layer: model.Growth},
			{Side: model.Sell, AssetID: model.USDT, AmountIrr: money.Irr(5 * billion), Layer: model.Foundation},
			{Side: model.Sell, AssetID: model.BTC, AmountIrr: money.Irr(4 * billion), Layer: model.Growth},
		}

		res, err := f.svc.applyTrades(context.Background(), p, snap, trades)
		require.NoError(t, err)

		require.Len(t, res.executed, 2)
		assert.Equal(t, model.BTC, res.executed[0].AssetID)
		assert.Equal(t, model.ETH, res.executed[1].AssetID)
		require.Len(t, res.skipped, 1)
		assert.Equal(t, model.USDT, res.skipped[0].AssetID)

		// 1B + net(4B) - 3B
		assert.Equal(t, "1988000000", res.portfolio.CashIrr.String())

		btc, _ := res.portfolio.Holding(model.BTC)
		assert.Equal(t, "6000", btc.Quantity.String())
		eth, ok := res.portfolio.Holding(model.ETH)
		require.True(t, ok)
		assert.Equal(t, "2991", eth.Quantity.String())
		assert.Equal(t, model.Growth, eth.Layer)

		usdt, _ := res.portfolio.Holding(model.USDT)
		assert.Equal(t, "20000", usdt.Quantity.String())
		assert.Equal(t, []model.AssetID{model.BTC, model.ETH}, res.touched)

		// input left untouched
		orig, _ := p.Holding(model.BTC)
		assert.Equal(t, "10000", orig.Quantity.String())
	})

	t.Run("strict cash check", func(t *testing.T) {
		trades := []model.RebalanceTrade{
			{Side: model.Buy, AssetID: model.ETH, AmountIrr: money.Irr(2 * billion), Layer: model.Growth},
		}
		_, err := f.svc.applyTrades(context.Background(), p, snap, trades)
		assert.ErrorIs(t, err, service.ErrInsufficientFunds)
	})

	t.Run("full sell keeps the holding", func(t *testing.T) {
		trades := []model.RebalanceTrade{
			{Side: model.Sell, AssetID: model.BTC, AmountIrr: money.Irr(10 * billion), Layer: model.Growth},
		}
		res, err := f.svc.applyTrades(context.Background(), p, snap, trades)
		require.NoError(t, err)
		btc, ok := res.portfolio.Holding(model.BTC)
		require.True(t, ok)
		assert.True(t, btc.Quantity.IsZero())
	})
}
