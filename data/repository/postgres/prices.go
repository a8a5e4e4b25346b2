package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/converter/dbConverter"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/model/dbModel"
	"github.com/KotFed0t/blu_rebalancer/utils"
)

// InsertPricePoints stores one close per asset per day; a repeated day overwrites the earlier value.
func (p *Postgres) InsertPricePoints(ctx context.Context, points []model.PricePoint) (err error) {
	if len(points) == 0 {
		return nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO asset_price_history(asset_id, price_usd, price_irr, dt)
		VALUES(:asset_id, :price_usd, :price_irr, :dt)
		ON CONFLICT (asset_id, dt) DO UPDATE SET price_usd = EXCLUDED.price_usd, price_irr = EXCLUDED.price_irr`

	slog.Debug("InsertPricePoints start", slog.String("rqID", rqID), slog.Int("count", len(points)))
	defer func() {
		if err != nil {
			slog.Error("InsertPricePoints failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertPricePoints completed", slog.String("rqID", rqID))
		}
	}()

	rows := make([]dbModel.PricePoint, 0, len(points))
	for _, pp := range points {
		rows = append(rows, dbConverter.ConvertToDbPricePoint(pp))
	}

	_, err = p.txOrDb(ctx).NamedExecContext(ctx, query, rows)
	return mapPgErr(err)
}

// GetPriceHistory returns usd closes since the given day, oldest first, grouped by asset.
func (p *Postgres) GetPriceHistory(ctx context.Context, since time.Time) (history map[model.AssetID][]float64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT asset_id, price_usd, price_irr, dt
		FROM asset_price_history
		WHERE dt >= $1
		ORDER BY asset_id, dt`

	slog.Debug("GetPriceHistory start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetPriceHistory failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPriceHistory completed", slog.String("rqID", rqID), slog.Int("assets", len(history)))
		}
	}()

	rows, err := p.txOrDb(ctx).QueryxContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history = make(map[model.AssetID][]float64)
	for rows.Next() {
		var row dbModel.PricePoint
		if err = rows.StructScan(&row); err != nil {
			return nil, err
		}
		pp := dbConverter.ConvertPricePoint(row)
		history[pp.AssetID] = append(history[pp.AssetID], pp.PriceUsd.InexactFloat64())
	}

	return history, rows.Err()
}
