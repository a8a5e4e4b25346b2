package telebotConverter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/model/tg/tgCallback"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	tele "gopkg.in/telebot.v4"
)

const InternalErrMsg = "something went wrong, try again later"

var printer = message.NewPrinter(language.English)

// Irr formats a rial amount with thousands separators.
func Irr(d decimal.Decimal) string {
	return printer.Sprintf("%d IRR", d.Round(0).IntPart())
}

func pct(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

var statusEmoji = map[model.PortfolioStatus]string{
	model.StatusBalanced:          "🟢",
	model.StatusSlightlyOff:       "🟡",
	model.StatusAttentionRequired: "🔴",
}

func PortfolioResponse(s model.PortfolioSnapshot) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📊 Portfolio %s %s\n", statusEmoji[s.Status], s.Status))
	sb.WriteString(fmt.Sprintf("💰 Total: %s\n", Irr(s.TotalValueIrr)))
	sb.WriteString(fmt.Sprintf("💵 Cash: %s\n", Irr(s.CashIrr)))
	sb.WriteString(fmt.Sprintf("📐 Drift: %s\n\n", pct(s.DriftPct)))

	for _, l := range model.Layers {
		sb.WriteString(fmt.Sprintf("%s: %s (target %s)\n", l, pct(s.Allocation.Get(l)), pct(s.Target.Get(l))))
		for _, h := range s.HoldingsOf(l) {
			line := fmt.Sprintf("   ▸ %s: %s", h.AssetID, Irr(h.ValueIrr))
			if !h.HasPrice {
				line = fmt.Sprintf("   ▸ %s: no price", h.AssetID)
			}
			if h.Frozen {
				line += " 🔒"
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

func PreviewResponse(p model.RebalancePreview) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("🔄 Rebalance preview (%s)\n", p.Mode))
	sb.WriteString(fmt.Sprintf("Drift: %s → %s\n\n", pct(p.CurrentDrift), pct(p.ResidualDrift)))

	if len(p.Trades) == 0 {
		sb.WriteString("No trades needed.\n")
		return sb.String(), nil
	}

	for _, t := range p.Trades {
		sign := "➖"
		if t.Side == model.Buy {
			sign = "➕"
		}
		sb.WriteString(fmt.Sprintf("%s %s %s %s\n", sign, t.Side, t.AssetID, Irr(t.AmountIrr)))
	}

	sb.WriteString(fmt.Sprintf("\nSell: %s, Buy: %s\n", Irr(p.TotalSellIrr), Irr(p.TotalBuyIrr)))

	if p.HasLockedCollateral {
		sb.WriteString("🔒 Some holdings are locked as collateral and were left as they are.\n")
	}
	if !p.CanFullyRebalance {
		sb.WriteString("⚠️ The target can't be reached fully with this mode.\n")
	}

	markup.Inline(markup.Row(
		markup.Data("✅ Rebalance", tgCallback.ExecuteRebalance, string(p.Mode)),
		markup.Data("📄 Report", tgCallback.ExportReport, string(p.Mode)),
	))

	return sb.String(), markup
}

func ConfirmResponse(mode model.RebalanceMode) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("⚠️ Confirm", tgCallback.ConfirmRebalance, string(mode)),
		markup.Data("Cancel", tgCallback.CancelRebalance),
	))
	return "This rebalance leaves the portfolio far from target. Confirm to continue.", markup
}

func RebalanceResultResponse(r model.RebalanceResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("✅ Rebalanced, %d trades executed\n", len(r.TradesExecuted)))
	for _, l := range model.Layers {
		sb.WriteString(fmt.Sprintf("%s: %s\n", l, pct(r.NewAllocation.Get(l))))
	}
	sb.WriteString(fmt.Sprintf("Ledger entry: %s", r.LedgerEntryID))

	return sb.String()
}

func CooldownResponse(s model.CooldownStatus) string {
	if s.CanRebalance {
		return "✅ You can rebalance now."
	}
	return fmt.Sprintf("⏳ Next rebalance in %dh.", s.HoursRemaining)
}

func ErrorResponse(err error) string {
	var cdErr *service.CooldownError
	if errors.As(err, &cdErr) {
		return fmt.Sprintf("⏳ Rebalance is on cooldown, %dh remaining.", cdErr.HoursRemaining)
	}

	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		return fmt.Sprintf("Invalid %s: %s.", vErr.Field, vErr.Reason)
	}

	switch service.Code(err) {
	case service.CodeNotFound:
		return "Portfolio not found. Send /start first."
	case service.CodeNoRebalanceNeeded:
		return "🟢 Portfolio is close enough to target, nothing to do."
	case service.CodeNoTrades:
		return "No trades could be made with this mode."
	case service.CodeInsufficientFunds:
		return "Not enough cash to complete the trades."
	case service.CodeFrozenHolding:
		return "🔒 This holding is locked as collateral."
	case service.CodeAlreadyExists:
		return "You are already registered."
	case service.CodeConflict:
		return "Your portfolio was changed at the same time. Please try again."
	}
	return InternalErrMsg
}
