package utils

import (
	"context"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

type rqIDKey struct{}

func GetRequestIDFromCtx(ctx context.Context) string {
	rqID, ok := ctx.Value(rqIDKey{}).(string)
	if !ok {
		return ""
	}
	return rqID
}

// CreateCtxWithRqID builds a request context for a telegram update, reusing
// the id set by the logger middleware.
func CreateCtxWithRqID(c tele.Context) context.Context {
	rqId, ok := c.Get("rqID").(string)
	if !ok {
		return WithRqID(context.Background(), uuid.NewString())
	}
	return WithRqID(context.Background(), rqId)
}

func WithRqID(ctx context.Context, rqID string) context.Context {
	return context.WithValue(ctx, rqIDKey{}, rqID)
}

// WithNewRqID is used by jobs and other entry points without an incoming id.
func WithNewRqID(ctx context.Context) context.Context {
	return WithRqID(ctx, uuid.NewString())
}
