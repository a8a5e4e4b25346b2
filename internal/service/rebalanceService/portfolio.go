package rebalanceService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/boundary"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *Service) snapshot(ctx context.Context, userID int64) (model.PortfolioSnapshot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.snapshot"

	portfolio, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		slog.Error("got error from store.FindByUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.PortfolioSnapshot{}, mapRepoErr(err)
	}

	prices, err := s.currentPrices(ctx)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}

	return rebalance.BuildSnapshot(ctx, portfolio, prices, s.cfg.Engine), nil
}

func (s *Service) GetPortfolioSnapshot(ctx context.Context, userID int64) (model.PortfolioSnapshot, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.GetPortfolioSnapshot"

	slog.Debug("GetPortfolioSnapshot start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))

	return s.snapshot(ctx, userID)
}

// RegisterUser creates the user and the single portfolio it owns, with the
// target split of the given preset (the configured default when empty).
func (s *Service) RegisterUser(ctx context.Context, chatID int64, preset assets.Preset) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.RegisterUser"

	slog.Debug("RegisterUser start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("RegisterUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	if preset == "" {
		preset = s.cfg.DefaultPreset
	}
	target, err := assets.TargetFor(preset)
	if err != nil {
		return 0, &service.ValidationError{Field: "preset", Reason: err.Error()}
	}

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		userID, err = s.users.InsertUser(ctx, chatID)
		if err != nil {
			return mapRepoErr(err)
		}
		_, err = s.store.CreatePortfolio(ctx, userID, target)
		return mapRepoErr(err)
	})
	if err != nil {
		if !errors.Is(err, service.ErrAlreadyExists) {
			slog.Error("can't register user", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return 0, mapRepoErr(err)
	}

	return userID, nil
}

func (s *Service) GetUserID(ctx context.Context, chatID int64) (int64, error) {
	userID, err := s.users.GetUserID(ctx, chatID)
	if err != nil {
		return 0, mapRepoErr(err)
	}
	return userID, nil
}

// Deposit adds whole rials to the portfolio cash.
func (s *Service) Deposit(ctx context.Context, userID int64, amountIrr decimal.Decimal) (snapshot model.PortfolioSnapshot, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.Deposit"

	slog.Debug("Deposit start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("amount", amountIrr.String()))
	defer func() {
		slog.Debug("Deposit finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	if !amountIrr.Equal(money.RoundIrr(amountIrr)) {
		return model.PortfolioSnapshot{}, &service.ValidationError{Field: "amount_irr", Reason: "must be a whole number of rials"}
	}
	if amountIrr.LessThan(s.cfg.MinDepositIrr) {
		return model.PortfolioSnapshot{}, &service.ValidationError{Field: "amount_irr", Reason: fmt.Sprintf("must be at least %s", s.cfg.MinDepositIrr)}
	}

	prices, err := s.currentPrices(ctx)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}
	cfg := s.cfg.Engine

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.store.FindByUserWithLock(ctx, userID)
		if err != nil {
			return mapRepoErr(err)
		}

		before := rebalance.BuildSnapshot(ctx, p, prices, cfg)
		p.CashIrr = money.Add(p.CashIrr, amountIrr)
		if err = s.store.UpdateCash(ctx, p.ID, p.CashIrr); err != nil {
			return err
		}
		snapshot = rebalance.BuildSnapshot(ctx, p, prices, cfg)

		// cash never moves the holdings allocation
		b := model.BoundarySafe
		now := s.clock.Now()
		message := fmt.Sprintf("Deposit of %s IRR", amountIrr)

		err = s.ledger.RecordLedgerEntry(ctx, model.LedgerEntry{
			ID:          uuid.New(),
			PortfolioID: p.ID,
			EntryType:   model.EntryDeposit,
			Before:      before,
			After:       snapshot,
			Boundary:    b,
			Message:     message,
			Metadata:    map[string]any{"amount_irr": amountIrr.String()},
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		return s.actions.RecordAction(ctx, model.ActionLog{
			PortfolioID: p.ID,
			ActionType:  model.ActionDeposit,
			Boundary:    b,
			Message:     message,
			AmountIrr:   &amountIrr,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return model.PortfolioSnapshot{}, mapRepoErr(err)
	}

	return snapshot, nil
}

// ClosePosition sells a whole unfrozen holding at the current price and
// removes it. This explicit user exit is the only path that deletes holdings.
func (s *Service) ClosePosition(ctx context.Context, userID int64, assetID model.AssetID, acknowledgedWarning bool) (snapshot model.PortfolioSnapshot, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.ClosePosition"

	slog.Debug("ClosePosition start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("asset", string(assetID)))
	defer func() {
		slog.Debug("ClosePosition finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	if !s.registry.Valid(assetID) {
		return model.PortfolioSnapshot{}, &service.ValidationError{Field: "asset_id", Reason: fmt.Sprintf("unknown asset %q", assetID)}
	}

	prices, err := s.currentPrices(ctx)
	if err != nil {
		return model.PortfolioSnapshot{}, err
	}
	price, ok := prices[assetID]
	if !ok || !price.PriceIrr.IsPositive() {
		return model.PortfolioSnapshot{}, &service.ValidationError{Field: "asset_id", Reason: "no current price"}
	}
	cfg := s.cfg.Engine

	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.store.FindByUserWithLock(ctx, userID)
		if err != nil {
			return mapRepoErr(err)
		}

		h, ok := p.Holding(assetID)
		if !ok {
			return service.ErrNotFound
		}
		if h.Frozen {
			return service.ErrFrozenHolding
		}

		before := rebalance.BuildSnapshot(ctx, p, prices, cfg)

		amount := money.RoundIrr(money.Mul(h.Quantity, price.PriceIrr))
		proceeds := rebalance.NetProceeds(amount, h.Layer, cfg)

		p.CashIrr = money.Add(p.CashIrr, proceeds)
		holdings := make([]model.Holding, 0, len(p.Holdings))
		for _, other := range p.Holdings {
			if other.AssetID != assetID {
				holdings = append(holdings, other)
			}
		}
		p.Holdings = holdings
		snapshot = rebalance.BuildSnapshot(ctx, p, prices, cfg)

		b := boundary.ForDrift(before.DriftPct, snapshot.DriftPct, cfg.StatusFor)
		if b.RequiresAcknowledgment() && !acknowledgedWarning {
			return service.ErrAcknowledgmentRequired
		}

		if err = s.store.DeleteHolding(ctx, p.ID, assetID); err != nil {
			return mapRepoErr(err)
		}
		if err = s.store.UpdateCash(ctx, p.ID, p.CashIrr); err != nil {
			return err
		}

		now := s.clock.Now()
		message := fmt.Sprintf("Closed %s position for %s IRR", assetID, proceeds)

		err = s.ledger.RecordLedgerEntry(ctx, model.LedgerEntry{
			ID:          uuid.New(),
			PortfolioID: p.ID,
			EntryType:   model.EntryPositionClose,
			Before:      before,
			After:       snapshot,
			Boundary:    b,
			Message:     message,
			Metadata: map[string]any{
				"asset_id":     string(assetID),
				"quantity":     h.Quantity.String(),
				"gross_irr":    amount.String(),
				"proceeds_irr": proceeds.String(),
			},
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		return s.actions.RecordAction(ctx, model.ActionLog{
			PortfolioID: p.ID,
			ActionType:  model.ActionPositionClose,
			Boundary:    b,
			Message:     message,
			AmountIrr:   &proceeds,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return model.PortfolioSnapshot{}, mapRepoErr(err)
	}

	return snapshot, nil
}
