package priceApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KotFed0t/blu_rebalancer/config"
	"github.com/KotFed0t/blu_rebalancer/internal/externalApi"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/model/priceApiModel"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/go-resty/resty/v2"
)

const pricesUrl = "/v1/prices"

type PriceApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *PriceApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.PriceApi.Url)
	return &PriceApi{client: client}
}

// GetCurrentPrices fetches quotes for the given assets. Assets the provider
// does not quote are absent from the result.
func (a *PriceApi) GetCurrentPrices(ctx context.Context, assets []model.AssetID) (model.Prices, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PriceApi.GetCurrentPrices"

	ids := make([]string, 0, len(assets))
	for _, id := range assets {
		ids = append(ids, string(id))
	}

	slog.Debug("GetCurrentPrices start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("assets", len(ids)))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("assets", strings.Join(ids, ",")).
		Get(pricesUrl)
	if err != nil {
		slog.Error("error while dialing PriceApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if resp.StatusCode() != http.StatusOK {
		slog.Error("unexpected PriceApi status", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("%w: %d", externalApi.ErrBadStatus, resp.StatusCode())
	}

	raw := priceApiModel.RawPrices{}
	err = json.Unmarshal(resp.Body(), &raw)
	if err != nil {
		slog.Error("can't unmarshall response into priceApiModel.RawPrices", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %s", externalApi.ErrInvalidPayload, err.Error())
	}

	res := parseRawPrices(raw, assets)

	slog.Debug("GetCurrentPrices completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("prices", len(res)))

	return res, nil
}

// parseRawPrices drops assets that were not requested and quotes without a
// positive price. A missing irr price is derived from the usd price and the
// usd/irr rate.
func parseRawPrices(raw priceApiModel.RawPrices, requested []model.AssetID) model.Prices {
	wanted := make(map[model.AssetID]struct{}, len(requested))
	for _, id := range requested {
		wanted[id] = struct{}{}
	}

	updatedAt := time.Now().UTC()
	if raw.Timestamp > 0 {
		updatedAt = time.Unix(raw.Timestamp, 0).UTC()
	}

	res := make(model.Prices, len(raw.Prices))
	for _, p := range raw.Prices {
		id := model.AssetID(p.Asset)
		if _, ok := wanted[id]; !ok {
			continue
		}

		price := model.Price{AssetID: id, Change24hPct: p.Change24, UpdatedAt: updatedAt}
		if p.PriceUsd.Valid {
			price.PriceUsd = p.PriceUsd.Decimal
		}

		switch {
		case p.PriceIrr.Valid:
			price.PriceIrr = p.PriceIrr.Decimal
		case p.PriceUsd.Valid && raw.UsdIrrRate.IsPositive():
			price.PriceIrr = money.RoundIrr(money.Mul(p.PriceUsd.Decimal, raw.UsdIrrRate))
		}

		if !price.PriceIrr.IsPositive() {
			slog.Warn("price without positive irr value skipped", slog.String("asset", p.Asset))
			continue
		}
		if price.PriceUsd.IsZero() && raw.UsdIrrRate.IsPositive() {
			price.PriceUsd = money.DivOrZero(price.PriceIrr, raw.UsdIrrRate)
		}

		res[id] = price
	}
	return res
}
