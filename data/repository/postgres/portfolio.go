package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/blu_rebalancer/data/repository"
	"github.com/KotFed0t/blu_rebalancer/internal/converter/dbConverter"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/model/dbModel"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/shopspring/decimal"
)

const portfolioColumns = `portfolio_id, user_id, cash_irr, target_foundation_pct, target_growth_pct, target_upside_pct, last_rebalance_at`

// FindByUser loads the portfolio of userID together with its holdings.
func (p *Postgres) FindByUser(ctx context.Context, userID int64) (model.Portfolio, error) {
	return p.findByUser(ctx, userID, false)
}

// FindByUserWithLock is FindByUser with the portfolio row locked until the
// surrounding transaction ends. It must be called inside WithinTransaction.
func (p *Postgres) FindByUserWithLock(ctx context.Context, userID int64) (model.Portfolio, error) {
	if p.extractTx(ctx) == nil {
		return model.Portfolio{}, fmt.Errorf("FindByUserWithLock: no transaction in context")
	}
	return p.findByUser(ctx, userID, true)
}

func (p *Postgres) findByUser(ctx context.Context, userID int64, lock bool) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ` + portfolioColumns + ` FROM portfolios WHERE user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	slog.Debug("findByUser start", slog.String("rqID", rqID), slog.String("query", query), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("findByUser failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("findByUser completed", slog.String("rqID", rqID), slog.Int64("portfolioID", portfolio.ID))
		}
	}()

	var dbPortfolio dbModel.Portfolio
	err = p.txOrDb(ctx).GetContext(ctx, &dbPortfolio, query, userID)
	if err != nil {
		return model.Portfolio{}, mapPgErr(err)
	}

	holdingsQuery := `
		SELECT holding_id, portfolio_id, asset_id, quantity, layer, frozen
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY asset_id`

	var dbHoldings []dbModel.Holding
	err = p.txOrDb(ctx).SelectContext(ctx, &dbHoldings, holdingsQuery, dbPortfolio.PortfolioID)
	if err != nil {
		return model.Portfolio{}, err
	}

	return dbConverter.ConvertPortfolio(dbPortfolio, dbHoldings), nil
}

func (p *Postgres) CreatePortfolio(ctx context.Context, userID int64, target model.Allocation) (portfolioID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO portfolios(user_id, cash_irr, target_foundation_pct, target_growth_pct, target_upside_pct)
		VALUES($1, 0, $2, $3, $4)
		RETURNING portfolio_id`

	slog.Debug("CreatePortfolio start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("CreatePortfolio failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreatePortfolio completed", slog.String("rqID", rqID), slog.Int64("portfolioID", portfolioID))
		}
	}()

	err = p.txOrDb(ctx).QueryRowContext(ctx, query, userID, target.Foundation, target.Growth, target.Upside).Scan(&portfolioID)
	if err != nil {
		return 0, mapPgErr(err)
	}

	return portfolioID, nil
}

func (p *Postgres) UpdateCash(ctx context.Context, portfolioID int64, cashIrr decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `UPDATE portfolios SET cash_irr = $1 WHERE portfolio_id = $2`

	slog.Debug("UpdateCash start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateCash failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateCash completed", slog.String("rqID", rqID))
		}
	}()

	return p.execOne(ctx, query, cashIrr, portfolioID)
}

// UpsertHolding inserts the holding or replaces its quantity. The frozen flag
// of an existing row is left as is.
func (p *Postgres) UpsertHolding(ctx context.Context, portfolioID int64, h model.Holding) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO holdings(portfolio_id, asset_id, quantity, layer, frozen)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT (portfolio_id, asset_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	slog.Debug("UpsertHolding start", slog.String("rqID", rqID), slog.String("query", query), slog.String("asset", string(h.AssetID)))
	defer func() {
		if err != nil {
			slog.Error("UpsertHolding failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertHolding completed", slog.String("rqID", rqID))
		}
	}()

	_, err = p.txOrDb(ctx).ExecContext(ctx, query, portfolioID, string(h.AssetID), h.Quantity, string(h.Layer), h.Frozen)
	return mapPgErr(err)
}

func (p *Postgres) DeleteHolding(ctx context.Context, portfolioID int64, assetID model.AssetID) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `DELETE FROM holdings WHERE portfolio_id = $1 AND asset_id = $2`

	slog.Debug("DeleteHolding start", slog.String("rqID", rqID), slog.String("query", query), slog.String("asset", string(assetID)))
	defer func() {
		if err != nil {
			slog.Error("DeleteHolding failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteHolding completed", slog.String("rqID", rqID))
		}
	}()

	return p.execOne(ctx, query, portfolioID, string(assetID))
}

func (p *Postgres) TouchLastRebalance(ctx context.Context, portfolioID int64, at time.Time) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `UPDATE portfolios SET last_rebalance_at = $1 WHERE portfolio_id = $2`

	slog.Debug("TouchLastRebalance start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("TouchLastRebalance failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("TouchLastRebalance completed", slog.String("rqID", rqID))
		}
	}()

	return p.execOne(ctx, query, at, portfolioID)
}

// execOne runs a statement expected to touch exactly one row.
func (p *Postgres) execOne(ctx context.Context, query string, args ...any) error {
	res, err := p.txOrDb(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return mapPgErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
