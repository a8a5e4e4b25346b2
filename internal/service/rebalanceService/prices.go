package rebalanceService

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/utils"
)

var errNoPrices = errors.New("no prices available")

// CachedOracle serves prices from the cache and asks the api only for the
// assets the cache misses.
type CachedOracle struct {
	cache PriceCache
	api   PriceApi
}

func NewCachedOracle(cache PriceCache, api PriceApi) *CachedOracle {
	return &CachedOracle{cache: cache, api: api}
}

// GetCurrentPrices fails only when neither the cache nor the api returned a
// single price. Partial results are returned as is.
func (o *CachedOracle) GetCurrentPrices(ctx context.Context, assetIDs []model.AssetID) (model.Prices, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CachedOracle.GetCurrentPrices"

	prices, err := o.cache.GetPrices(ctx, assetIDs)
	if err != nil {
		slog.Warn("can't get prices from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		prices = model.Prices{}
	}

	missing := make([]model.AssetID, 0, len(assetIDs))
	for _, id := range assetIDs {
		if _, ok := prices[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return prices, nil
	}

	fetched, err := o.api.GetCurrentPrices(ctx, missing)
	if err != nil {
		if len(prices) == 0 {
			slog.Error("can't get prices from api", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, err
		}
		slog.Warn("can't get missing prices from api, using cached only", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return prices, nil
	}

	for id, p := range fetched {
		prices[id] = p
	}
	if len(prices) == 0 {
		return nil, errNoPrices
	}

	if len(fetched) > 0 {
		go func() {
			if err := o.cache.SetPrices(context.WithoutCancel(ctx), fetched); err != nil {
				slog.Warn("can't save prices to cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			}
		}()
	}

	return prices, nil
}

// FillPriceCache refreshes all asset prices in the cache and appends today's
// closes to the price history.
func (s *Service) FillPriceCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.FillPriceCache"

	slog.Debug("FillPriceCache start", slog.String("rqID", rqID), slog.String("op", op))

	prices, err := s.priceApi.GetCurrentPrices(ctx, s.registry.All())
	if err != nil {
		slog.Error("got error from priceApi.GetCurrentPrices", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = s.cache.SetPrices(ctx, prices); err != nil {
		slog.Error("got error from cache.SetPrices", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	now := s.clock.Now()
	points := make([]model.PricePoint, 0, len(prices))
	for _, id := range s.registry.All() {
		p, ok := prices[id]
		if !ok {
			continue
		}
		points = append(points, model.PricePoint{AssetID: id, PriceUsd: p.PriceUsd, PriceIrr: p.PriceIrr, Dt: now})
	}

	if err = s.history.InsertPricePoints(ctx, points); err != nil {
		slog.Error("got error from history.InsertPricePoints", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("FillPriceCache completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("prices", len(prices)))

	return nil
}

func (s *Service) currentPrices(ctx context.Context) (model.Prices, error) {
	prices, err := s.oracle.GetCurrentPrices(ctx, s.registry.All())
	if err != nil {
		return nil, err
	}
	return prices, nil
}
