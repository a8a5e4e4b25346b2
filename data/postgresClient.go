package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/blu_rebalancer/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
)

const (
	defaultConnAttempts = 10
	connRetryDelay      = time.Second
	connTimeout         = 5 * time.Second
)

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.DbName,
		cfg.Postgres.Password,
	)
}

// NewPostgresClient connects with retries, applies pool settings and runs
// pending migrations. It panics when the database stays unreachable.
func NewPostgresClient(cfg *config.Config) *sqlx.DB {
	db, err := connectWithRetry(postgresDSN(cfg), defaultConnAttempts)
	if err != nil {
		slog.Error("Postgres connection failed", slog.String("err", err.Error()))
		panic(err)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second)
	slog.Info("Postgres connected")

	if err = migratePostgres(db, cfg.Postgres.MigrationDir); err != nil {
		slog.Error("postgres migration failed", slog.String("err", err.Error()))
		panic(err)
	}
	slog.Info("postgres migrated successfully")

	return db
}

func connectWithRetry(dsn string, attempts int) (*sqlx.DB, error) {
	var err error
	for left := attempts; left > 0; left-- {
		var db *sqlx.DB
		ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
		db, err = sqlx.ConnectContext(ctx, "pgx", dsn)
		cancel()
		if err == nil {
			return db, nil
		}

		slog.Info("Postgres is trying to connect", slog.Int("attempts left", left-1), slog.String("err", err.Error()))
		time.Sleep(connRetryDelay)
	}
	return nil, fmt.Errorf("no attempts left: %w", err)
}

func migratePostgres(db *sqlx.DB, migrationDir string) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres.WithInstance: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationDir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate.NewWithDatabaseInstance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}

	version, dirty, verErr := m.Version()
	if verErr == nil {
		slog.Info("postgres schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}

	return nil
}
