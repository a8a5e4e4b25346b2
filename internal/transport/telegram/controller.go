package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/KotFed0t/blu_rebalancer/data/repository"
	"github.com/KotFed0t/blu_rebalancer/internal/assets"
	"github.com/KotFed0t/blu_rebalancer/internal/converter/telebotConverter"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const helpMsg = `Commands:
/portfolio - current allocation
/preview [holdings|cash|smart] - trades a rebalance would make
/rebalance [holdings|cash|smart] - rebalance now
/cooldown - when the next rebalance is allowed
/deposit [amount] - add IRR cash
/report [holdings|cash|smart] - preview as xlsx`

type RebalanceService interface {
	RegisterUser(ctx context.Context, chatID int64, preset assets.Preset) (userID int64, err error)
	GetUserID(ctx context.Context, chatID int64) (int64, error)
	GetPortfolioSnapshot(ctx context.Context, userID int64) (model.PortfolioSnapshot, error)
	PreviewRebalance(ctx context.Context, userID int64, mode model.RebalanceMode) (model.RebalancePreview, error)
	ExecuteRebalance(ctx context.Context, userID int64, mode model.RebalanceMode, acknowledgedWarning bool) (model.RebalanceResult, error)
	CheckRebalanceCooldown(ctx context.Context, userID int64) (model.CooldownStatus, error)
	Deposit(ctx context.Context, userID int64, amountIrr decimal.Decimal) (model.PortfolioSnapshot, error)
	ExportRebalanceReport(ctx context.Context, userID int64, mode model.RebalanceMode) (link string, err error)
}

type Session interface {
	GetSession(ctx context.Context, chatID int64) (model.Session, error)
	SetSession(ctx context.Context, chatID int64, session model.Session) error
	ResetSession(ctx context.Context, chatID int64) error
}

type Controller struct {
	rebalanceService RebalanceService
	session          Session
}

func NewController(rebalanceService RebalanceService, session Session) *Controller {
	return &Controller{
		rebalanceService: rebalanceService,
		session:          session,
	}
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	var preset assets.Preset
	if args := c.Args(); len(args) > 0 {
		preset = assets.Preset(strings.ToUpper(args[0]))
	}

	_, err := ctrl.rebalanceService.RegisterUser(ctx, c.Chat().ID, preset)
	switch {
	case err == nil:
		return c.Send("Portfolio created.\n\n" + helpMsg)
	case errors.Is(err, service.ErrAlreadyExists):
		return c.Send("Welcome back.\n\n" + helpMsg)
	default:
		slog.Error("got error from rebalanceService.RegisterUser", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(telebotConverter.ErrorResponse(err))
	}
}

func (ctrl *Controller) Portfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	userID, err := ctrl.userID(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	snapshot, err := ctrl.rebalanceService.GetPortfolioSnapshot(ctx, userID)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	return c.Send(telebotConverter.PortfolioResponse(snapshot))
}

func (ctrl *Controller) Preview(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	userID, err := ctrl.userID(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	preview, err := ctrl.rebalanceService.PreviewRebalance(ctx, userID, modeFromArgs(c.Args()))
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	text, markup := telebotConverter.PreviewResponse(preview)
	if markup == nil {
		return c.Send(text)
	}
	return c.Send(text, markup)
}

func (ctrl *Controller) Rebalance(c tele.Context) error {
	return ctrl.execute(c, modeFromArgs(c.Args()), false)
}

// ExecuteFromPreview handles the button under a preview.
func (ctrl *Controller) ExecuteFromPreview(c tele.Context) error {
	return ctrl.execute(c, parseMode(c.Callback().Data), false)
}

// ConfirmRebalance handles the button shown after an acknowledgment was
// requested.
func (ctrl *Controller) ConfirmRebalance(c tele.Context) error {
	return ctrl.execute(c, parseMode(c.Callback().Data), true)
}

func (ctrl *Controller) CancelRebalance(c tele.Context) error {
	return c.Send("Rebalance cancelled.")
}

func (ctrl *Controller) execute(c tele.Context, mode model.RebalanceMode, acknowledged bool) error {
	ctx := utils.CreateCtxWithRqID(c)

	userID, err := ctrl.userID(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	result, err := ctrl.rebalanceService.ExecuteRebalance(ctx, userID, mode, acknowledged)
	if err != nil {
		if errors.Is(err, service.ErrAcknowledgmentRequired) {
			text, markup := telebotConverter.ConfirmResponse(mode)
			return c.Send(text, markup)
		}
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	return c.Send(telebotConverter.RebalanceResultResponse(result))
}

func (ctrl *Controller) Cooldown(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	userID, err := ctrl.userID(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	status, err := ctrl.rebalanceService.CheckRebalanceCooldown(ctx, userID)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	return c.Send(telebotConverter.CooldownResponse(status))
}

// InitDeposit deposits right away when the amount is given as an argument,
// otherwise the next text message is taken as the amount.
func (ctrl *Controller) InitDeposit(c tele.Context) error {
	if len(c.Args()) > 0 {
		return ctrl.deposit(c, strings.Join(c.Args(), ""))
	}

	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	chatSession.State = model.ExpectingDepositAmount
	if err = ctrl.session.SetSession(ctx, c.Chat().ID, chatSession); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(telebotConverter.InternalErrMsg)
	}

	return c.Send("Enter the amount in IRR:")
}

func (ctrl *Controller) ProcessDeposit(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := ctrl.session.ResetSession(ctx, c.Chat().ID); err != nil {
		slog.Error("got error from session.ResetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	return ctrl.deposit(c, c.Text())
}

func (ctrl *Controller) deposit(c tele.Context, rawAmount string) error {
	ctx := utils.CreateCtxWithRqID(c)

	amount, err := parseAmount(rawAmount)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	userID, err := ctrl.userID(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	snapshot, err := ctrl.rebalanceService.Deposit(ctx, userID, amount)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	return c.Send("✅ Deposited " + telebotConverter.Irr(amount) + "\n\n" + telebotConverter.PortfolioResponse(snapshot))
}

func (ctrl *Controller) Report(c tele.Context) error {
	return ctrl.report(c, modeFromArgs(c.Args()))
}

func (ctrl *Controller) ReportFromPreview(c tele.Context) error {
	return ctrl.report(c, parseMode(c.Callback().Data))
}

func (ctrl *Controller) report(c tele.Context, mode model.RebalanceMode) error {
	ctx := utils.CreateCtxWithRqID(c)

	userID, err := ctrl.userID(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	link, err := ctrl.rebalanceService.ExportRebalanceReport(ctx, userID, mode)
	if err != nil {
		return c.Send(telebotConverter.ErrorResponse(err))
	}

	return c.Send("📄 Report: " + link)
}

// Text routes a free text message by the chat's session state.
func (ctrl *Controller) Text(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return c.Send(telebotConverter.InternalErrMsg)
		}
		return c.Send(helpMsg)
	}

	switch chatSession.State {
	case model.ExpectingDepositAmount:
		return ctrl.ProcessDeposit(c)
	default:
		slog.Debug("unexpected chatSession state", slog.String("rqID", rqID), slog.Any("state", chatSession.State))
		return c.Send(helpMsg)
	}
}

func (ctrl *Controller) userID(ctx context.Context, c tele.Context) (int64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	userID, err := ctrl.rebalanceService.GetUserID(ctx, c.Chat().ID)
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			slog.Error("got error from rebalanceService.GetUserID", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return 0, err
	}
	return userID, nil
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, c.Chat().ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return model.Session{}, err
	}

	c.Set("session", chatSession)
	return chatSession, nil
}

func modeFromArgs(args []string) model.RebalanceMode {
	if len(args) == 0 {
		return model.HoldingsOnly
	}
	return parseMode(args[0])
}

func parseMode(s string) model.RebalanceMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "holdings":
		return model.HoldingsOnly
	case "cash":
		return model.HoldingsPlusCash
	case "smart":
		return model.Smart
	}
	return model.RebalanceMode(strings.ToUpper(strings.TrimSpace(s)))
}

var amountReplacer = strings.NewReplacer(",", "", "_", "", " ", "", "IRR", "", "irr", "")

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(amountReplacer.Replace(s))
	if err != nil {
		return decimal.Decimal{}, &service.ValidationError{Field: "amount", Reason: "must be a number"}
	}
	return amount, nil
}
