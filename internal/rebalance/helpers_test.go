package rebalance

import (
	"context"
	"testing"

	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

const billion = 1_000_000_000

var unitPrice = money.Irr(1_000_000)

func flatPrices() model.Prices {
	res := model.Prices{}
	for _, id := range assets.NewRegistry().All() {
		res[id] = model.Price{AssetID: id, PriceIrr: unitPrice, PriceUsd: decimal.RequireFromString("0.02")}
	}
	return res
}

// holding builds a holding worth valueIrr at unitPrice.
func holding(id model.AssetID, valueIrr int64, frozen bool) model.Holding {
	layer, _ := assets.NewRegistry().LayerOf(id)
	return model.Holding{
		AssetID:  id,
		Quantity: money.Irr(valueIrr).Div(unitPrice),
		Layer:    layer,
		Frozen:   frozen,
	}
}

func portfolio(cash int64, target model.Allocation, hs ...model.Holding) model.Portfolio {
	return model.Portfolio{ID: 1, UserID: 7, CashIrr: money.Irr(cash), Holdings: hs, Target: target}
}

func balanced() model.Allocation {
	return model.NewAllocation(50, 35, 15)
}

func newEngine() *Engine {
	return NewEngine(DefaultConfig(), assets.NewRegistry().StaticWeights())
}

func snapshot(p model.Portfolio) model.PortfolioSnapshot {
	return BuildSnapshot(context.Background(), p, flatPrices(), DefaultConfig())
}

// assertInvariants checks the properties every preview must hold.
func assertInvariants(t *testing.T, s model.PortfolioSnapshot, preview model.RebalancePreview, cfg Config) {
	t.Helper()

	totalBuy := decimal.Zero
	for _, tr := range preview.Trades {
		assert.True(t, tr.AmountIrr.IsPositive(), "trade amount must be positive: %+v", tr)
		assert.True(t, tr.AmountIrr.Equal(money.RoundIrr(tr.AmountIrr)), "trade amount must be whole rials: %+v", tr)

		if tr.Side == model.Buy {
			totalBuy = totalBuy.Add(tr.AmountIrr)
			continue
		}

		for _, h := range s.Holdings {
			if h.AssetID != tr.AssetID {
				continue
			}
			assert.False(t, h.Frozen, "frozen holding %s must never be sold", h.AssetID)
			assert.True(t, tr.AmountIrr.LessThanOrEqual(cfg.SellCap(h.ValueIrr)),
				"sell of %s above diversification cap: %s > %s", h.AssetID, tr.AmountIrr, cfg.SellCap(h.ValueIrr))
		}
	}

	assert.True(t, totalBuy.Equal(preview.TotalBuyIrr))
	assert.True(t, totalBuy.LessThanOrEqual(preview.TotalAvailableForBuys),
		"buys %s exceed available %s", totalBuy, preview.TotalAvailableForBuys)
	assert.False(t, preview.CashAfterIrr.IsNegative(), "cash after must not be negative: %s", preview.CashAfterIrr)

	// locked collateral may keep a plan from converging
	if len(preview.Trades) > 0 && !preview.HasLockedCollateral {
		limit := preview.CurrentDrift.Add(cfg.IntraLayerDriftSlackPct)
		assert.True(t, preview.ResidualDrift.LessThanOrEqual(limit),
			"residual drift %s above current drift %s", preview.ResidualDrift, preview.CurrentDrift)
	}
}
