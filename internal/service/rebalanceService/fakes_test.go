package rebalanceService

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/KotFed0t/blu_rebalancer/data/repository"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type txKey struct{}

// fakeStore keeps portfolios in memory. WithinTransaction restores the state
// it saw on entry when the callback fails.
type fakeStore struct {
	mu         sync.Mutex
	portfolios map[int64]*model.Portfolio
	users      map[int64]int64
	nextID     int64
	// onLock runs on the stored portfolio each time it is locked.
	onLock func(p *model.Portfolio)
	// commitErr fails the commit of every top-level transaction.
	commitErr error
	deleted   []model.AssetID
}

func newFakeStore(ps ...model.Portfolio) *fakeStore {
	s := &fakeStore{portfolios: map[int64]*model.Portfolio{}, users: map[int64]int64{}, nextID: 100}
	for _, p := range ps {
		cp := clonePortfolio(p)
		s.portfolios[p.UserID] = &cp
	}
	return s
}

func clonePortfolio(p model.Portfolio) model.Portfolio {
	cp := p
	cp.Holdings = append([]model.Holding(nil), p.Holdings...)
	if p.LastRebalanceAt != nil {
		t := *p.LastRebalanceAt
		cp.LastRebalanceAt = &t
	}
	return cp
}

func (s *fakeStore) get(userID int64) model.Portfolio {
	return clonePortfolio(*s.portfolios[userID])
}

func (s *fakeStore) byID(portfolioID int64) (*model.Portfolio, error) {
	for _, p := range s.portfolios {
		if p.ID == portfolioID {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return tFunc(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make(map[int64]model.Portfolio, len(s.portfolios))
	for userID, p := range s.portfolios {
		saved[userID] = clonePortfolio(*p)
	}
	savedUsers := make(map[int64]int64, len(s.users))
	for k, v := range s.users {
		savedUsers[k] = v
	}

	err := tFunc(context.WithValue(ctx, txKey{}, true))
	if err == nil {
		err = s.commitErr
	}
	if err != nil {
		s.portfolios = make(map[int64]*model.Portfolio, len(saved))
		for userID, p := range saved {
			cp := p
			s.portfolios[userID] = &cp
		}
		s.users = savedUsers
		return err
	}
	return nil
}

func (s *fakeStore) FindByUser(_ context.Context, userID int64) (model.Portfolio, error) {
	p, ok := s.portfolios[userID]
	if !ok {
		return model.Portfolio{}, repository.ErrNotFound
	}
	return clonePortfolio(*p), nil
}

func (s *fakeStore) FindByUserWithLock(ctx context.Context, userID int64) (model.Portfolio, error) {
	if ctx.Value(txKey{}) == nil {
		return model.Portfolio{}, errors.New("lock outside transaction")
	}
	p, ok := s.portfolios[userID]
	if !ok {
		return model.Portfolio{}, repository.ErrNotFound
	}
	if s.onLock != nil {
		s.onLock(p)
	}
	return clonePortfolio(*p), nil
}

func (s *fakeStore) CreatePortfolio(_ context.Context, userID int64, target model.Allocation) (int64, error) {
	if _, ok := s.portfolios[userID]; ok {
		return 0, repository.ErrAlreadyExists
	}
	s.nextID++
	s.portfolios[userID] = &model.Portfolio{ID: s.nextID, UserID: userID, CashIrr: decimal.Zero, Target: target}
	return s.nextID, nil
}

func (s *fakeStore) UpdateCash(_ context.Context, portfolioID int64, cashIrr decimal.Decimal) error {
	p, err := s.byID(portfolioID)
	if err != nil {
		return err
	}
	p.CashIrr = cashIrr
	return nil
}

func (s *fakeStore) UpsertHolding(_ context.Context, portfolioID int64, h model.Holding) error {
	p, err := s.byID(portfolioID)
	if err != nil {
		return err
	}
	for i := range p.Holdings {
		if p.Holdings[i].AssetID == h.AssetID {
			p.Holdings[i].Quantity = h.Quantity
			return nil
		}
	}
	p.Holdings = append(p.Holdings, h)
	return nil
}

func (s *fakeStore) DeleteHolding(_ context.Context, portfolioID int64, assetID model.AssetID) error {
	p, err := s.byID(portfolioID)
	if err != nil {
		return err
	}
	for i := range p.Holdings {
		if p.Holdings[i].AssetID == assetID {
			p.Holdings = append(p.Holdings[:i], p.Holdings[i+1:]...)
			s.deleted = append(s.deleted, assetID)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeStore) TouchLastRebalance(_ context.Context, portfolioID int64, at time.Time) error {
	p, err := s.byID(portfolioID)
	if err != nil {
		return err
	}
	p.LastRebalanceAt = &at
	return nil
}

func (s *fakeStore) InsertUser(_ context.Context, chatID int64) (int64, error) {
	if _, ok := s.users[chatID]; ok {
		return 0, repository.ErrAlreadyExists
	}
	s.nextID++
	s.users[chatID] = s.nextID
	return s.nextID, nil
}

func (s *fakeStore) GetUserID(_ context.Context, chatID int64) (int64, error) {
	userID, ok := s.users[chatID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return userID, nil
}

type staticOracle struct {
	prices model.Prices
	err    error
}

func (o staticOracle) GetCurrentPrices(_ context.Context, _ []model.AssetID) (model.Prices, error) {
	return o.prices, o.err
}

type ledgerMock struct{ mock.Mock }

func (m *ledgerMock) RecordLedgerEntry(ctx context.Context, entry model.LedgerEntry) error {
	return m.Called(ctx, entry).Error(0)
}

type actionsMock struct{ mock.Mock }

func (m *actionsMock) RecordAction(ctx context.Context, action model.ActionLog) error {
	return m.Called(ctx, action).Error(0)
}

type historyMock struct{ mock.Mock }

func (m *historyMock) InsertPricePoints(ctx context.Context, points []model.PricePoint) error {
	return m.Called(ctx, points).Error(0)
}

func (m *historyMock) GetPriceHistory(ctx context.Context, since time.Time) (map[model.AssetID][]float64, error) {
	args := m.Called(ctx, since)
	h, _ := args.Get(0).(map[model.AssetID][]float64)
	return h, args.Error(1)
}

type cacheMock struct{ mock.Mock }

func (m *cacheMock) GetPrices(ctx context.Context, assets []model.AssetID) (model.Prices, error) {
	args := m.Called(ctx, assets)
	p, _ := args.Get(0).(model.Prices)
	return p, args.Error(1)
}

func (m *cacheMock) SetPrices(ctx context.Context, prices model.Prices) error {
	return m.Called(ctx, prices).Error(0)
}

type priceApiMock struct{ mock.Mock }

func (m *priceApiMock) GetCurrentPrices(ctx context.Context, assets []model.AssetID) (model.Prices, error) {
	args := m.Called(ctx, assets)
	p, _ := args.Get(0).(model.Prices)
	return p, args.Error(1)
}

type reportsMock struct{ mock.Mock }

func (m *reportsMock) Generate(ctx context.Context, snapshot model.PortfolioSnapshot, preview model.RebalancePreview) ([]byte, string, error) {
	args := m.Called(ctx, snapshot, preview)
	b, _ := args.Get(0).([]byte)
	return b, args.String(1), args.Error(2)
}

type cloudMock struct{ mock.Mock }

func (m *cloudMock) UploadFile(ctx context.Context, reader io.Reader, filename string) (string, error) {
	args := m.Called(ctx, reader, filename)
	return args.String(0), args.Error(1)
}

func (m *cloudMock) DeleteOldFiles(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
