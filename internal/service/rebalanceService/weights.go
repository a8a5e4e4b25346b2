package rebalanceService

import (
	"context"
	"log/slog"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/KotFed0t/blu_rebalancer/utils"
)

// historySlackDays covers days the price job missed.
const historySlackDays = 10

// engine builds the trade engine with the intra-layer weights of the
// configured strategy. HRAM falls back to static weights when history is
// unavailable.
func (s *Service) engine(ctx context.Context) *rebalance.Engine {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Service.engine"

	if s.cfg.Strategy != assets.StrategyHRAM {
		return rebalance.NewEngine(s.cfg.Engine, s.registry.StaticWeights())
	}

	since := s.clock.Now().AddDate(0, 0, -(assets.Lookback() + historySlackDays)).Truncate(24 * time.Hour)
	history, err := s.history.GetPriceHistory(ctx, since)
	if err != nil {
		slog.Warn("can't load price history, using static weights", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return rebalance.NewEngine(s.cfg.Engine, s.registry.StaticWeights())
	}

	weights, dynamic := s.registry.HRAMWeights(history)
	if !dynamic {
		slog.Warn("not enough price history for dynamic weights", slog.String("rqID", rqID), slog.String("op", op))
	}

	return rebalance.NewEngine(s.cfg.Engine, weights)
}
