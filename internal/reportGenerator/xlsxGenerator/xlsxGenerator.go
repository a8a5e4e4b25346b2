package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet  = "Summary"
	TradesSheet   = "Trades"
	HoldingsSheet = "Holdings"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders a rebalance preview into a workbook with a summary,
// a trade list and the holdings it was computed from.
func (g *XLSXGenerator) Generate(ctx context.Context, snapshot model.PortfolioSnapshot, preview model.RebalancePreview) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	fillers := []struct {
		name string
		fill func(f *excelize.File, sheet string) error
	}{
		{SummarySheet, func(f *excelize.File, sheet string) error { return g.fillSummary(f, sheet, snapshot, preview) }},
		{TradesSheet, func(f *excelize.File, sheet string) error { return g.fillTrades(f, sheet, preview) }},
		{HoldingsSheet, func(f *excelize.File, sheet string) error { return g.fillHoldings(f, sheet, snapshot) }},
	}

	for _, filler := range fillers {
		if _, err = f.NewSheet(filler.name); err != nil {
			slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, "", err
		}
		if err = filler.fill(f, filler.name); err != nil {
			slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("sheet", filler.name), slog.String("err", err.Error()))
			return nil, "", err
		}
	}

	if err = f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) header(f *excelize.File, sheet, from, to, title, color string) error {
	if from != to {
		if err := f.MergeCell(sheet, from, to); err != nil {
			return err
		}
	}
	if err := f.SetCellStr(sheet, from, title); err != nil {
		return err
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
	})
	if err != nil {
		return err
	}

	if err = f.SetCellStyle(sheet, from, from, styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}
	return nil
}

func (g *XLSXGenerator) fillSummary(f *excelize.File, sheet string, s model.PortfolioSnapshot, p model.RebalancePreview) error {
	if err := g.header(f, sheet, "A1", "D1", "Layers", "#cfe2f3"); err != nil {
		return err
	}

	_ = f.SetCellStr(sheet, "A2", "layer")
	_ = f.SetCellStr(sheet, "B2", "current %")
	_ = f.SetCellStr(sheet, "C2", "target %")
	_ = f.SetCellStr(sheet, "D2", "after %")

	for i, l := range model.Layers {
		row := i + 3
		_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", row), string(l))
		_ = f.SetCellFloat(sheet, fmt.Sprintf("B%d", row), p.CurrentAllocation.Get(l).Round(2).InexactFloat64(), -1, 64)
		_ = f.SetCellFloat(sheet, fmt.Sprintf("C%d", row), p.TargetAllocation.Get(l).Round(2).InexactFloat64(), -1, 64)
		_ = f.SetCellFloat(sheet, fmt.Sprintf("D%d", row), p.AfterAllocation.Get(l).Round(2).InexactFloat64(), -1, 64)
	}

	if err := g.header(f, sheet, "A8", "B8", "Totals", "#d9ead3"); err != nil {
		return err
	}

	rows := []struct {
		label string
		value string
	}{
		{"mode", string(p.Mode)},
		{"cash IRR", s.CashIrr.String()},
		{"holdings IRR", s.HoldingsValueIrr.String()},
		{"total IRR", s.TotalValueIrr.String()},
		{"total sell IRR", p.TotalSellIrr.String()},
		{"total buy IRR", p.TotalBuyIrr.String()},
		{"available for buys IRR", p.TotalAvailableForBuys.String()},
		{"cash after IRR", p.CashAfterIrr.String()},
		{"drift %", p.CurrentDrift.StringFixed(2)},
		{"residual drift %", p.ResidualDrift.StringFixed(2)},
		{"status", fmt.Sprintf("%s -> %s", p.StatusBefore, p.StatusAfter)},
		{"locked collateral", fmt.Sprintf("%t", p.HasLockedCollateral)},
	}
	for i, r := range rows {
		_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", i+9), r.label)
		_ = f.SetCellStr(sheet, fmt.Sprintf("B%d", i+9), r.value)
	}

	return nil
}

func (g *XLSXGenerator) fillTrades(f *excelize.File, sheet string, p model.RebalancePreview) error {
	if err := g.header(f, sheet, "A1", "D1", "Trades", "#f9cb9c"); err != nil {
		return err
	}

	_ = f.SetCellStr(sheet, "A2", "side")
	_ = f.SetCellStr(sheet, "B2", "asset")
	_ = f.SetCellStr(sheet, "C2", "layer")
	_ = f.SetCellStr(sheet, "D2", "amount IRR")

	for i, t := range p.Trades {
		row := i + 3
		_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", row), string(t.Side))
		_ = f.SetCellStr(sheet, fmt.Sprintf("B%d", row), string(t.AssetID))
		_ = f.SetCellStr(sheet, fmt.Sprintf("C%d", row), string(t.Layer))
		_ = f.SetCellInt(sheet, fmt.Sprintf("D%d", row), int(t.AmountIrr.IntPart()))
	}

	return nil
}

func (g *XLSXGenerator) fillHoldings(f *excelize.File, sheet string, s model.PortfolioSnapshot) error {
	if err := g.header(f, sheet, "A1", "E1", "Holdings", "#cccccc"); err != nil {
		return err
	}

	_ = f.SetCellStr(sheet, "A2", "asset")
	_ = f.SetCellStr(sheet, "B2", "layer")
	_ = f.SetCellStr(sheet, "C2", "quantity")
	_ = f.SetCellStr(sheet, "D2", "value IRR")
	_ = f.SetCellStr(sheet, "E2", "frozen")

	for i, h := range s.Holdings {
		row := i + 3
		_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", row), string(h.AssetID))
		_ = f.SetCellStr(sheet, fmt.Sprintf("B%d", row), string(h.Layer))
		_ = f.SetCellStr(sheet, fmt.Sprintf("C%d", row), h.Quantity.String())
		_ = f.SetCellInt(sheet, fmt.Sprintf("D%d", row), int(h.ValueIrr.IntPart()))
		_ = f.SetCellBool(sheet, fmt.Sprintf("E%d", row), h.Frozen)
	}

	return nil
}
