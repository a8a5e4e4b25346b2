package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/KotFed0t/blu_rebalancer/utils"
)

type envelope struct {
	Data     any      `json:"data"`
	Metadata metadata `json:"metadata"`
}

type metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RqID      string    `json:"rq_id"`
}

type errorBody struct {
	Error errorDetails `json:"error"`
}

type errorDetails struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	HoursRemaining *int   `json:"hours_remaining,omitempty"`
}

var statuses = map[string]int{
	service.CodeNotFound:               http.StatusNotFound,
	service.CodeValidation:             http.StatusBadRequest,
	service.CodeRebalanceCooldown:      http.StatusConflict,
	service.CodeNoRebalanceNeeded:      http.StatusConflict,
	service.CodeNoTrades:               http.StatusConflict,
	service.CodeAlreadyExists:          http.StatusConflict,
	service.CodeFrozenHolding:          http.StatusConflict,
	service.CodeConflict:               http.StatusConflict,
	service.CodeAcknowledgmentRequired: http.StatusPreconditionRequired,
	service.CodeInsufficientFunds:      http.StatusUnprocessableEntity,
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body := envelope{
		Data: data,
		Metadata: metadata{
			Timestamp: s.clock.Now().UTC(),
			RqID:      utils.GetRequestIDFromCtx(r.Context()),
		},
	}
	write(w, r, status, body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rqID := utils.GetRequestIDFromCtx(r.Context())

	code := service.Code(err)
	status, ok := statuses[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	details := errorDetails{Code: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.String("rqID", rqID), slog.String("path", r.URL.Path), slog.String("err", err.Error()))
		details.Message = "internal error"
	}

	var cdErr *service.CooldownError
	if errors.As(err, &cdErr) {
		details.HoursRemaining = &cdErr.HoursRemaining
	}

	write(w, r, status, errorBody{Error: details})
}

func write(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("rqID", utils.GetRequestIDFromCtx(r.Context())), slog.String("err", err.Error()))
	}
}
