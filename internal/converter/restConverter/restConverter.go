package restConverter

import (
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/shopspring/decimal"
)

type HoldingResponse struct {
	AssetID  model.AssetID   `json:"asset_id"`
	Layer    model.Layer     `json:"layer"`
	Quantity decimal.Decimal `json:"quantity"`
	PriceIrr decimal.Decimal `json:"price_irr"`
	ValueIrr decimal.Decimal `json:"value_irr"`
	Frozen   bool            `json:"frozen"`
	HasPrice bool            `json:"has_price"`
}

type PortfolioResponse struct {
	CashIrr          decimal.Decimal       `json:"cash_irr"`
	HoldingsValueIrr decimal.Decimal       `json:"holdings_value_irr"`
	TotalValueIrr    decimal.Decimal       `json:"total_value_irr"`
	Allocation       model.Allocation      `json:"allocation"`
	Target           model.Allocation      `json:"target"`
	DriftPct         decimal.Decimal       `json:"drift_pct"`
	Status           model.PortfolioStatus `json:"status"`
	Holdings         []HoldingResponse     `json:"holdings"`
}

func PortfolioSnapshotResponse(s model.PortfolioSnapshot) PortfolioResponse {
	res := PortfolioResponse{
		CashIrr:          s.CashIrr,
		HoldingsValueIrr: s.HoldingsValueIrr,
		TotalValueIrr:    s.TotalValueIrr,
		Allocation:       s.Allocation,
		Target:           s.Target,
		DriftPct:         s.DriftPct.Round(2),
		Status:           s.Status,
		Holdings:         make([]HoldingResponse, 0, len(s.Holdings)),
	}

	for _, h := range s.Holdings {
		res.Holdings = append(res.Holdings, HoldingResponse{
			AssetID:  h.AssetID,
			Layer:    h.Layer,
			Quantity: h.Quantity,
			PriceIrr: h.PriceIrr,
			ValueIrr: h.ValueIrr,
			Frozen:   h.Frozen,
			HasPrice: h.HasPrice,
		})
	}

	return res
}

type RebalanceRequest struct {
	Mode                model.RebalanceMode `json:"mode"`
	AcknowledgedWarning bool                `json:"acknowledged_warning"`
}

type DepositRequest struct {
	AmountIrr decimal.Decimal `json:"amount_irr"`
}

type ClosePositionRequest struct {
	AcknowledgedWarning bool `json:"acknowledged_warning"`
}
