package rebalanceService

import (
	"testing"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

const (
	billion = 1_000_000_000
	userID  = int64(7)
)

var (
	unitPrice = money.Irr(1_000_000)
	testNow   = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
)

func flatPrices() model.Prices {
	res := model.Prices{}
	for _, id := range assets.NewRegistry().All() {
		res[id] = model.Price{AssetID: id, PriceIrr: unitPrice, PriceUsd: decimal.RequireFromString("0.02")}
	}
	return res
}

func holding(id model.AssetID, valueIrr int64, frozen bool) model.Holding {
	layer, _ := assets.NewRegistry().LayerOf(id)
	return model.Holding{AssetID: id, Quantity: money.Irr(valueIrr).Div(unitPrice), Layer: layer, Frozen: frozen}
}

func portfolio(cash int64, hs ...model.Holding) model.Portfolio {
	return model.Portfolio{ID: 1, UserID: userID, CashIrr: money.Irr(cash), Holdings: hs, Target: model.NewAllocation(50, 35, 15)}
}

// drifted is 60/30/10 against a 50/35/15 target.
func drifted(usdtFrozen bool) model.Portfolio {
	return portfolio(0,
		holding(model.USDT, 60*billion, usdtFrozen),
		holding(model.BTC, 30*billion, false),
		holding(model.SOL, 10*billion, false),
	)
}

type fixture struct {
	svc     *Service
	store   *fakeStore
	ledger  *ledgerMock
	actions *actionsMock
	history *historyMock
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T, ps ...model.Portfolio) *fixture {
	t.Helper()

	f := &fixture{
		store:   newFakeStore(ps...),
		ledger:  &ledgerMock{},
		actions: &actionsMock{},
		history: &historyMock{},
		clock:   clockwork.NewFakeClockAt(testNow),
	}

	cfg := Config{
		Engine:        rebalance.DefaultConfig(),
		Strategy:      assets.StrategyStatic,
		MinDepositIrr: money.Irr(1_000_000),
		DefaultPreset: assets.Balanced,
	}

	f.svc = New(cfg, Deps{
		Store:   f.store,
		Users:   f.store,
		Ledger:  f.ledger,
		Actions: f.actions,
		History: f.history,
		Oracle:  staticOracle{prices: flatPrices()},
		Clock:   f.clock,
	})

	t.Cleanup(func() {
		f.ledger.AssertExpectations(t)
		f.actions.AssertExpectations(t)
		f.history.AssertExpectations(t)
	})

	return f
}

func (f *fixture) expectRecords() {
	f.ledger.On("RecordLedgerEntry", mock.Anything, mock.Anything).Return(nil).Once()
	f.actions.On("RecordAction", mock.Anything, mock.Anything).Return(nil).Once()
}

func decimal10() decimal.Decimal {
	return decimal.NewFromInt(10)
}
