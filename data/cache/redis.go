package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "price:"

type RedisCache struct {
	redis      *redis.Client
	expiration time.Duration
}

func NewRedisCache(redisClient *redis.Client, expiration time.Duration) *RedisCache {
	return &RedisCache{redis: redisClient, expiration: expiration}
}

func priceKey(assetID model.AssetID) string {
	return keyPrefix + string(assetID)
}

func (r *RedisCache) SetPrices(ctx context.Context, prices model.Prices) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetPrices start", slog.String("rqID", rqID), slog.Int("count", len(prices)))

	pipe := r.redis.Pipeline()
	for id, price := range prices {
		priceJson, err := json.Marshal(price)
		if err != nil {
			slog.Error(
				"can't marshall price in SetPrices",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.String("asset", string(id)),
			)
			return errors.New("can't marshall price")
		}

		pipe.Set(ctx, priceKey(id), priceJson, r.expiration)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetPrices completed", slog.String("rqID", rqID))

	return nil
}

// GetPrices returns the cached prices of the given assets. Missing or expired
// keys are simply absent from the result.
func (r *RedisCache) GetPrices(ctx context.Context, assets []model.AssetID) (model.Prices, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetPrices start", slog.String("rqID", rqID), slog.Int("count", len(assets)))

	if len(assets) == 0 {
		return model.Prices{}, nil
	}

	keys := make([]string, 0, len(assets))
	for _, id := range assets {
		keys = append(keys, priceKey(id))
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Error("failed on redis.MGet", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	res := make(model.Prices, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		price := model.Price{}
		if err = json.Unmarshal([]byte(raw), &price); err != nil {
			slog.Error(
				"can't unmarshall price in GetPrices",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.String("key", keys[i]),
			)
			continue
		}
		res[assets[i]] = price
	}

	slog.Debug("GetPrices completed", slog.String("rqID", rqID), slog.Int("hits", len(res)))

	return res, nil
}
