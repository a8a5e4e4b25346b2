package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/internal/converter/dbConverter"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/utils"
)

// RecordLedgerEntry appends an entry. Ledger rows are never updated.
func (p *Postgres) RecordLedgerEntry(ctx context.Context, entry model.LedgerEntry) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO ledger_entries(public_id, portfolio_id, entry_type, boundary, message, before_snapshot, after_snapshot, metadata, dt_create)
		VALUES(:public_id, :portfolio_id, :entry_type, :boundary, :message, :before_snapshot, :after_snapshot, :metadata, :dt_create)`

	slog.Debug("RecordLedgerEntry start", slog.String("rqID", rqID), slog.String("entryID", entry.ID.String()))
	defer func() {
		if err != nil {
			slog.Error("RecordLedgerEntry failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("RecordLedgerEntry completed", slog.String("rqID", rqID))
		}
	}()

	row, err := dbConverter.ConvertLedgerEntry(entry)
	if err != nil {
		return err
	}

	_, err = p.txOrDb(ctx).NamedExecContext(ctx, query, row)
	return mapPgErr(err)
}

func (p *Postgres) RecordAction(ctx context.Context, action model.ActionLog) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO action_logs(portfolio_id, action_type, boundary, message, amount_irr, dt_create)
		VALUES(:portfolio_id, :action_type, :boundary, :message, :amount_irr, :dt_create)`

	slog.Debug("RecordAction start", slog.String("rqID", rqID), slog.String("action", string(action.ActionType)))
	defer func() {
		if err != nil {
			slog.Error("RecordAction failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("RecordAction completed", slog.String("rqID", rqID))
		}
	}()

	_, err = p.txOrDb(ctx).NamedExecContext(ctx, query, dbConverter.ConvertActionLog(action))
	return mapPgErr(err)
}
