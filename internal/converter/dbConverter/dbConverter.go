package dbConverter

import (
	"encoding/json"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/model/dbModel"
)

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		ID:       dbHolding.HoldingID,
		AssetID:  model.AssetID(dbHolding.AssetID),
		Quantity: dbHolding.Quantity,
		Layer:    model.Layer(dbHolding.Layer),
		Frozen:   dbHolding.Frozen,
	}
}

func ConvertPortfolio(dbPortfolio dbModel.Portfolio, dbHoldings []dbModel.Holding) model.Portfolio {
	p := model.Portfolio{
		ID:      dbPortfolio.PortfolioID,
		UserID:  dbPortfolio.UserID,
		CashIrr: dbPortfolio.CashIrr,
		Target: model.Allocation{
			Foundation: dbPortfolio.TargetFoundationPct,
			Growth:     dbPortfolio.TargetGrowthPct,
			Upside:     dbPortfolio.TargetUpsidePct,
		},
		Holdings: make([]model.Holding, 0, len(dbHoldings)),
	}

	if dbPortfolio.LastRebalanceAt.Valid {
		t := dbPortfolio.LastRebalanceAt.Time
		p.LastRebalanceAt = &t
	}

	for _, h := range dbHoldings {
		p.Holdings = append(p.Holdings, ConvertHolding(h))
	}

	return p
}

func ConvertSnapshot(s model.PortfolioSnapshot) dbModel.SnapshotDoc {
	doc := dbModel.SnapshotDoc{
		CashIrr:          s.CashIrr.String(),
		HoldingsValueIrr: s.HoldingsValueIrr.String(),
		TotalValueIrr:    s.TotalValueIrr.String(),
		Allocation:       make(map[string]string, len(model.Layers)),
		DriftPct:         s.DriftPct.StringFixed(4),
		Status:           string(s.Status),
		Holdings:         make([]dbModel.SnapshotHolding, 0, len(s.Holdings)),
	}

	for _, l := range model.Layers {
		doc.Allocation[string(l)] = s.Allocation.Get(l).StringFixed(4)
	}

	for _, h := range s.Holdings {
		doc.Holdings = append(doc.Holdings, dbModel.SnapshotHolding{
			AssetID:  string(h.AssetID),
			Quantity: h.Quantity.String(),
			ValueIrr: h.ValueIrr.String(),
			Frozen:   h.Frozen,
		})
	}

	return doc
}

func ConvertLedgerEntry(entry model.LedgerEntry) (dbModel.LedgerEntry, error) {
	before, err := json.Marshal(ConvertSnapshot(entry.Before))
	if err != nil {
		return dbModel.LedgerEntry{}, err
	}
	after, err := json.Marshal(ConvertSnapshot(entry.After))
	if err != nil {
		return dbModel.LedgerEntry{}, err
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return dbModel.LedgerEntry{}, err
	}

	return dbModel.LedgerEntry{
		PublicID:       entry.ID,
		PortfolioID:    entry.PortfolioID,
		EntryType:      string(entry.EntryType),
		Boundary:       string(entry.Boundary),
		Message:        entry.Message,
		BeforeSnapshot: before,
		AfterSnapshot:  after,
		Metadata:       meta,
		CreatedAt:      entry.CreatedAt,
	}, nil
}

func ConvertActionLog(action model.ActionLog) dbModel.ActionLog {
	res := dbModel.ActionLog{
		PortfolioID: action.PortfolioID,
		ActionType:  string(action.ActionType),
		Boundary:    string(action.Boundary),
		Message:     action.Message,
		CreatedAt:   action.CreatedAt,
	}
	if action.AmountIrr != nil {
		res.AmountIrr.Decimal = *action.AmountIrr
		res.AmountIrr.Valid = true
	}
	return res
}

func ConvertPricePoint(p dbModel.PricePoint) model.PricePoint {
	return model.PricePoint{
		AssetID:  model.AssetID(p.AssetID),
		PriceUsd: p.PriceUsd,
		PriceIrr: p.PriceIrr,
		Dt:       p.Dt,
	}
}

func ConvertToDbPricePoint(p model.PricePoint) dbModel.PricePoint {
	return dbModel.PricePoint{
		AssetID:  string(p.AssetID),
		PriceUsd: p.PriceUsd,
		PriceIrr: p.PriceIrr,
		Dt:       truncateToDay(p.Dt),
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
