package rebalanceService

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func price(id model.AssetID) model.Price {
	return model.Price{AssetID: id, PriceIrr: unitPrice}
}

func TestCachedOracle(t *testing.T) {
	ids := []model.AssetID{model.BTC, model.ETH}

	t.Run("fully cached", func(t *testing.T) {
		cache, api := &cacheMock{}, &priceApiMock{}
		cache.On("GetPrices", mock.Anything, ids).Return(model.Prices{model.BTC: price(model.BTC), model.ETH: price(model.ETH)}, nil)

		prices, err := NewCachedOracle(cache, api).GetCurrentPrices(context.Background(), ids)
		require.NoError(t, err)
		assert.Len(t, prices, 2)
		api.AssertNotCalled(t, "GetCurrentPrices", mock.Anything, mock.Anything)
	})

	t.Run("misses go to the api", func(t *testing.T) {
		cache, api := &cacheMock{}, &priceApiMock{}
		cache.On("GetPrices", mock.Anything, ids).Return(model.Prices{model.BTC: price(model.BTC)}, nil)
		cache.On("SetPrices", mock.Anything, mock.Anything).Return(nil).Maybe()
		api.On("GetCurrentPrices", mock.Anything, []model.AssetID{model.ETH}).Return(model.Prices{model.ETH: price(model.ETH)}, nil).Once()

		prices, err := NewCachedOracle(cache, api).GetCurrentPrices(context.Background(), ids)
		require.NoError(t, err)
		assert.Len(t, prices, 2)
		api.AssertExpectations(t)
	})

	t.Run("api down with partial cache degrades", func(t *testing.T) {
		cache, api := &cacheMock{}, &priceApiMock{}
		cache.On("GetPrices", mock.Anything, ids).Return(model.Prices{model.BTC: price(model.BTC)}, nil)
		api.On("GetCurrentPrices", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		prices, err := NewCachedOracle(cache, api).GetCurrentPrices(context.Background(), ids)
		require.NoError(t, err)
		assert.Len(t, prices, 1)
	})

	t.Run("nothing anywhere", func(t *testing.T) {
		cache, api := &cacheMock{}, &priceApiMock{}
		cache.On("GetPrices", mock.Anything, ids).Return(nil, errors.New("redis down"))
		api.On("GetCurrentPrices", mock.Anything, ids).Return(nil, errors.New("timeout"))

		_, err := NewCachedOracle(cache, api).GetCurrentPrices(context.Background(), ids)
		assert.Error(t, err)
	})
}

func TestFillPriceCache(t *testing.T) {
	cache, api, history := &cacheMock{}, &priceApiMock{}, &historyMock{}
	all := assets.NewRegistry().All()
	prices := model.Prices{model.BTC: price(model.BTC), model.USDT: price(model.USDT)}

	api.On("GetCurrentPrices", mock.Anything, all).Return(prices, nil).Once()
	cache.On("SetPrices", mock.Anything, prices).Return(nil).Once()
	history.On("InsertPricePoints", mock.Anything, mock.MatchedBy(func(points []model.PricePoint) bool {
		return len(points) == 2 && points[0].AssetID == model.USDT && points[1].AssetID == model.BTC && points[0].Dt.Equal(testNow)
	})).Return(nil).Once()

	svc := New(Config{Engine: rebalance.DefaultConfig()}, Deps{
		PriceApi: api,
		Cache:    cache,
		History:  history,
		Clock:    clockwork.NewFakeClockAt(testNow),
	})

	require.NoError(t, svc.FillPriceCache(context.Background()))

	api.AssertExpectations(t)
	cache.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestFillPriceCacheApiError(t *testing.T) {
	api := &priceApiMock{}
	api.On("GetCurrentPrices", mock.Anything, mock.Anything).Return(nil, errors.New("bad gateway"))

	svc := New(Config{Engine: rebalance.DefaultConfig()}, Deps{PriceApi: api})
	assert.Error(t, svc.FillPriceCache(context.Background()))
}

func TestPriceOracleFailureIsAnError(t *testing.T) {
	f := newFixture(t, drifted(false))
	f.svc.oracle = staticOracle{err: errors.New("no prices")}

	_, err := f.svc.PreviewRebalance(context.Background(), userID, model.Smart)
	assert.Error(t, err)
}

func TestEngineHRAMFallsBackToStatic(t *testing.T) {
	f := newFixture(t, drifted(false))
	f.svc.cfg.Strategy = assets.StrategyHRAM
	f.history.On("GetPriceHistory", mock.Anything, mock.MatchedBy(func(since time.Time) bool {
		return since.Before(testNow.AddDate(0, 0, -assets.Lookback()))
	})).Return(nil, errors.New("db down")).Once()

	hram, err := f.svc.PreviewRebalance(context.Background(), userID, model.HoldingsOnly)
	require.NoError(t, err)

	f.svc.cfg.Strategy = assets.StrategyStatic
	static, err := f.svc.PreviewRebalance(context.Background(), userID, model.HoldingsOnly)
	require.NoError(t, err)

	assert.Equal(t, static.Trades, hram.Trades)
}

func TestEngineHRAMUsesHistory(t *testing.T) {
	f := newFixture(t, drifted(false))
	f.svc.cfg.Strategy = assets.StrategyHRAM

	history := map[model.AssetID][]float64{}
	for i, id := range assets.NewRegistry().All() {
		closes := make([]float64, assets.Lookback()+5)
		for d := range closes {
			closes[d] = 100 + float64((d*(i+3))%11)
		}
		history[id] = closes
	}
	f.history.On("GetPriceHistory", mock.Anything, mock.Anything).Return(history, nil).Once()

	preview, err := f.svc.PreviewRebalance(context.Background(), userID, model.HoldingsOnly)
	require.NoError(t, err)
	assert.NotEmpty(t, preview.Trades)
	for _, tr := range preview.Trades {
		assert.True(t, tr.AmountIrr.GreaterThanOrEqual(money.Irr(1_000_000)))
	}
}
