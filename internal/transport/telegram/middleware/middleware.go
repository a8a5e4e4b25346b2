package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

func Logger() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			now := time.Now()

			rqID := uuid.NewString()
			c.Set("rqID", rqID)

			var chatID int64
			if c.Chat() != nil {
				chatID = c.Chat().ID
			}

			slog.Info("start request", slog.String("rqID", rqID), slog.Int64("chatID", chatID))

			defer func() {
				slog.Info(
					"request finished",
					slog.String("rqID", rqID),
					slog.Duration("duration", time.Since(now)),
				)
			}()

			return next(c)
		}
	}
}

// PrivateOnly drops updates from groups and channels, portfolios are per chat.
func PrivateOnly() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Chat() == nil || c.Chat().Type != tele.ChatPrivate {
				return nil
			}
			return next(c)
		}
	}
}
