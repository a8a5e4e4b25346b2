package tgbot

import (
	"log/slog"

	"github.com/KotFed0t/blu_rebalancer/config"
	"github.com/KotFed0t/blu_rebalancer/internal/model/tg/tgCallback"
	"github.com/KotFed0t/blu_rebalancer/internal/transport/telegram"
	customMW "github.com/KotFed0t/blu_rebalancer/internal/transport/telegram/middleware"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type TGBot struct {
	bot  *tele.Bot
	ctrl *telegram.Controller
}

func New(cfg *config.Config, ctrl *telegram.Controller) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.PrivateOnly(), customMW.Logger(), middleware.AutoRespond())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, b.ctrl.Text)

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/portfolio", b.ctrl.Portfolio)
	b.bot.Handle("/preview", b.ctrl.Preview)
	b.bot.Handle("/rebalance", b.ctrl.Rebalance)
	b.bot.Handle("/cooldown", b.ctrl.Cooldown)
	b.bot.Handle("/deposit", b.ctrl.InitDeposit)
	b.bot.Handle("/report", b.ctrl.Report)

	b.bot.Handle(&tele.Btn{Unique: tgCallback.ExecuteRebalance}, b.ctrl.ExecuteFromPreview)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.ConfirmRebalance}, b.ctrl.ConfirmRebalance)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.CancelRebalance}, b.ctrl.CancelRebalance)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.ExportReport}, b.ctrl.ReportFromPreview)
}
