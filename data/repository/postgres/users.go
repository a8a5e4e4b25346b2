package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/utils"
)

func (p *Postgres) InsertUser(ctx context.Context, chatID int64) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO users(chat_id) VALUES($1) RETURNING user_id`

	slog.Debug("InsertUser start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertUser failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertUser completed", slog.String("rqID", rqID), slog.Int64("userID", userID))
		}
	}()

	err = p.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&userID)
	if err != nil {
		return 0, mapPgErr(err)
	}

	return userID, nil
}

func (p *Postgres) GetUserID(ctx context.Context, chatID int64) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT user_id FROM users WHERE chat_id = $1`

	slog.Debug("GetUserID start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetUserID failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUserID completed", slog.String("rqID", rqID))
		}
	}()

	err = p.txOrDb(ctx).QueryRowContext(ctx, query, chatID).Scan(&userID)
	if err != nil {
		return 0, mapPgErr(err)
	}

	return userID, nil
}
