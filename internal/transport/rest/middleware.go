package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

// RequestID reuses an incoming request id or creates one and puts it into
// the request context under the same key the rest of the app logs with.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rqID := r.Header.Get(RequestIDHeader)
		if rqID == "" {
			rqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, rqID)
		next.ServeHTTP(w, r.WithContext(utils.WithRqID(r.Context(), rqID)))
	})
}

func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		rqID := utils.GetRequestIDFromCtx(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		slog.Info("start request", slog.String("rqID", rqID), slog.String("method", r.Method), slog.String("path", r.URL.Path))

		defer func() {
			slog.Info(
				"request finished",
				slog.String("rqID", rqID),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(now)),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
