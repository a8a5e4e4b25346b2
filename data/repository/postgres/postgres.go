package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/data/repository"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"

	maxTxAttempts = 2
)

// Querier is the subset of methods shared by sqlx.DB and sqlx.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

type txKey struct{}

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// WithinTransaction runs tFunc in a serializable transaction carried by ctx.
// The transaction commits when tFunc returns nil and rolls back otherwise.
// A serialization failure reruns tFunc in a new transaction, up to
// maxTxAttempts times in total. A nested call joins the outer transaction.
func (p *Postgres) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) (err error) {
	if p.extractTx(ctx) != nil {
		return tFunc(ctx)
	}

	rqID := utils.GetRequestIDFromCtx(ctx)

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = p.runTx(ctx, tFunc)
		if !isConflict(err) || ctx.Err() != nil {
			return err
		}
		slog.Warn("transaction serialization conflict", slog.String("rqID", rqID), slog.Int("attempt", attempt), slog.String("err", err.Error()))
	}

	return fmt.Errorf("%w: gave up after %d attempts", repository.ErrConflict, maxTxAttempts)
}

func (p *Postgres) runTx(ctx context.Context, tFunc func(ctx context.Context) error) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Error("failed to rollback transaction", slog.String("rqID", rqID), slog.String("err", rbErr.Error()))
			}
		}
	}()

	err = tFunc(p.injectTx(ctx, tx))
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapPgErr(err))
	}

	return nil
}

// isConflict reports whether err is a serialization failure, mapped or raw.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repository.ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

func (p *Postgres) injectTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func (p *Postgres) extractTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// txOrDb returns the transaction from ctx when there is one, the pool otherwise.
func (p *Postgres) txOrDb(ctx context.Context) Querier {
	if tx := p.extractTx(ctx); tx != nil {
		return tx
	}
	return p.db
}

// mapPgErr translates driver errors into repository errors.
func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return repository.ErrAlreadyExists
		case serializationFailure:
			return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.Message)
		}
	}
	return err
}
