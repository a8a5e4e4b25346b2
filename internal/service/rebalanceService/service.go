package rebalanceService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/KotFed0t/blu_rebalancer/config"
	"github.com/KotFed0t/blu_rebalancer/data/repository"
	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

// PortfolioStore persists portfolios. Every mutation inside WithinTransaction
// commits together or not at all.
type PortfolioStore interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	FindByUser(ctx context.Context, userID int64) (model.Portfolio, error)
	FindByUserWithLock(ctx context.Context, userID int64) (model.Portfolio, error)
	CreatePortfolio(ctx context.Context, userID int64, target model.Allocation) (portfolioID int64, err error)
	UpdateCash(ctx context.Context, portfolioID int64, cashIrr decimal.Decimal) error
	UpsertHolding(ctx context.Context, portfolioID int64, h model.Holding) error
	DeleteHolding(ctx context.Context, portfolioID int64, assetID model.AssetID) error
	TouchLastRebalance(ctx context.Context, portfolioID int64, at time.Time) error
}

type UserStore interface {
	InsertUser(ctx context.Context, chatID int64) (userID int64, err error)
	GetUserID(ctx context.Context, chatID int64) (userID int64, err error)
}

type LedgerSink interface {
	RecordLedgerEntry(ctx context.Context, entry model.LedgerEntry) error
}

type ActionLogSink interface {
	RecordAction(ctx context.Context, action model.ActionLog) error
}

type PriceHistory interface {
	InsertPricePoints(ctx context.Context, points []model.PricePoint) error
	GetPriceHistory(ctx context.Context, since time.Time) (map[model.AssetID][]float64, error)
}

type PriceOracle interface {
	GetCurrentPrices(ctx context.Context, assets []model.AssetID) (model.Prices, error)
}

type PriceCache interface {
	GetPrices(ctx context.Context, assets []model.AssetID) (model.Prices, error)
	SetPrices(ctx context.Context, prices model.Prices) error
}

type PriceApi interface {
	GetCurrentPrices(ctx context.Context, assets []model.AssetID) (model.Prices, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, snapshot model.PortfolioSnapshot, preview model.RebalancePreview) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type Config struct {
	Engine        rebalance.Config
	Strategy      assets.WeightStrategy
	MinDepositIrr decimal.Decimal
	DefaultPreset assets.Preset
}

func NewConfig(cfg *config.Config) Config {
	return Config{
		Engine:        cfg.EngineConfig(),
		Strategy:      assets.WeightStrategy(cfg.Rebalance.WeightStrategy),
		MinDepositIrr: money.Irr(cfg.Rebalance.MinDepositIrr),
		DefaultPreset: assets.Preset(cfg.Rebalance.DefaultTargetPreset),
	}
}

type Deps struct {
	Store    PortfolioStore
	Users    UserStore
	Ledger   LedgerSink
	Actions  ActionLogSink
	History  PriceHistory
	Oracle   PriceOracle
	PriceApi PriceApi
	Cache    PriceCache
	Reports  ReportGenerator
	Cloud    CloudStorage
	Clock    clockwork.Clock
}

type Service struct {
	cfg      Config
	registry *assets.Registry
	store    PortfolioStore
	users    UserStore
	ledger   LedgerSink
	actions  ActionLogSink
	history  PriceHistory
	oracle   PriceOracle
	priceApi PriceApi
	cache    PriceCache
	reports  ReportGenerator
	cloud    CloudStorage
	clock    clockwork.Clock
}

func New(cfg Config, deps Deps) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		cfg:      cfg,
		registry: assets.NewRegistry(),
		store:    deps.Store,
		users:    deps.Users,
		ledger:   deps.Ledger,
		actions:  deps.Actions,
		history:  deps.History,
		oracle:   deps.Oracle,
		priceApi: deps.PriceApi,
		cache:    deps.Cache,
		reports:  deps.Reports,
		cloud:    deps.Cloud,
		clock:    clock,
	}
}

// mapRepoErr translates storage errors into the service taxonomy.
func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, repository.ErrAlreadyExists):
		return service.ErrAlreadyExists
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", service.ErrConflict, err)
	}
	return err
}
