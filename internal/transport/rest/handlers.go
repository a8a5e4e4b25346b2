package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/KotFed0t/blu_rebalancer/internal/converter/restConverter"
	"github.com/KotFed0t/blu_rebalancer/internal/model"
	"github.com/KotFed0t/blu_rebalancer/internal/service"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshot, err := s.srv.GetPortfolioSnapshot(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, restConverter.PortfolioSnapshotResponse(snapshot))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	mode := model.RebalanceMode(strings.ToUpper(r.URL.Query().Get("mode")))

	preview, err := s.srv.PreviewRebalance(r.Context(), userID, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, preview)
}

func (s *Server) handleCooldown(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status, err := s.srv.CheckRebalanceCooldown(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req restConverter.RebalanceRequest
	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.srv.ExecuteRebalance(r.Context(), userID, req.Mode, req.AcknowledgedWarning)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req restConverter.DepositRequest
	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshot, err := s.srv.Deposit(r.Context(), userID, req.AmountIrr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, restConverter.PortfolioSnapshotResponse(snapshot))
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req restConverter.ClosePositionRequest
	if r.ContentLength != 0 {
		if err = decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	assetID := model.AssetID(strings.ToUpper(chi.URLParam(r, "assetID")))

	snapshot, err := s.srv.ClosePosition(r.Context(), userID, assetID, req.AcknowledgedWarning)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, restConverter.PortfolioSnapshotResponse(snapshot))
}

func userIDParam(r *http.Request) (int64, error) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		return 0, &service.ValidationError{Field: "userID", Reason: "must be a positive integer"}
	}
	return userID, nil
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &service.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
