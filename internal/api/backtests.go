package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/yourusername/arblens/internal/models"
)

const maxBacktestBody = 64 << 10

var requiredBacktestFields = []string{"name", "start_date", "end_date", "user_id"}

var validate = validator.New()

// createBacktestRequest is the POST /api/v1/backtests body
type createBacktestRequest struct {
	Name            string   `json:"name"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	UserID          string   `json:"user_id"`
	MinSpreadPct    *float64 `json:"min_spread_pct"`
	MinLiquidityUSD *float64 `json:"min_liquidity_usd"`
	VenueFilter     []string `json:"venue_filter"`
}

// backtestResponse renders the date window as calendar dates
type backtestResponse struct {
	*models.Backtest
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func newBacktestResponse(bt *models.Backtest) backtestResponse {
	return backtestResponse{
		Backtest:  bt,
		StartDate: bt.StartDate.Format(models.DateLayout),
		EndDate:   bt.EndDate.Format(models.DateLayout),
	}
}

// handleCreateBacktest stores a pending backtest and queues it for processing
func (s *Server) handleCreateBacktest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBacktestBody))
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	for _, field := range requiredBacktestFields {
		raw, ok := fields[field]
		if !ok || bytes.Equal(raw, []byte("null")) {
			s.respondError(w, r, http.StatusBadRequest, "Missing required field: "+field, nil)
			return
		}
	}

	var req createBacktestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, "Invalid field type: "+err.Error(), nil)
		return
	}

	spec, err := s.specFromRequest(req)
	if err != nil {
		s.respondError(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	if !s.requireDB(w, r) {
		return
	}

	bt := models.NewBacktest(spec)
	if err := s.repos.Backtest.Create(r.Context(), bt); err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to create backtest", err)
		return
	}

	if err := s.submit.Submit(r.Context(), bt.ID, bt.BacktestSpec); err != nil {
		s.rejectQueued(w, r, bt.ID, err)
		return
	}

	s.audit.LogBacktestSubmitted(spec.UserID, bt.ID.String(), spec.Name, r.RemoteAddr)

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":         bt.ID,
		"status":     "queued",
		"message":    "Backtest created and queued for processing",
		"created_at": bt.CreatedAt.Format(time.RFC3339Nano),
	})
}

// rejectQueued marks a backtest that could not be queued as failed so the
// recovery sweep does not pick it up later.
func (s *Server) rejectQueued(w http.ResponseWriter, r *http.Request, id uuid.UUID, cause error) {
	if err := s.repos.Backtest.MarkFailed(r.Context(), id, "enqueue failed: "+cause.Error()); err != nil {
		s.logger.WithError(err).WithField("backtest_id", id.String()).Error("Failed to mark unqueued backtest")
	}

	if errors.Is(cause, models.ErrQueueFull) || errors.Is(cause, models.ErrQueueClosed) {
		s.respondError(w, r, http.StatusServiceUnavailable, "Backtest queue is unavailable, try again later", cause)
		return
	}
	s.respondError(w, r, http.StatusInternalServerError, "Failed to queue backtest", cause)
}

func (s *Server) specFromRequest(req createBacktestRequest) (models.BacktestSpec, error) {
	start, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return models.BacktestSpec{}, fmt.Errorf("start_date must be formatted as YYYY-MM-DD")
	}
	end, err := time.Parse(models.DateLayout, req.EndDate)
	if err != nil {
		return models.BacktestSpec{}, fmt.Errorf("end_date must be formatted as YYYY-MM-DD")
	}

	spec := models.BacktestSpec{
		Name:            req.Name,
		UserID:          req.UserID,
		StartDate:       start,
		EndDate:         end,
		MinSpreadPct:    s.cfg.Backtest.DefaultMinSpreadPct,
		MinLiquidityUSD: s.cfg.Backtest.DefaultMinLiquidityUSD,
		VenueFilter:     req.VenueFilter,
	}
	if req.MinSpreadPct != nil {
		spec.MinSpreadPct = *req.MinSpreadPct
	}
	if req.MinLiquidityUSD != nil {
		spec.MinLiquidityUSD = *req.MinLiquidityUSD
	}
	if spec.VenueFilter == nil {
		spec.VenueFilter = []string{}
	}

	if err := validate.Struct(spec); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return spec, fmt.Errorf("invalid field %s: failed %s validation", fe.Field(), fe.Tag())
		}
		return spec, err
	}
	if err := spec.Validate(s.now()); err != nil {
		return spec, err
	}
	return spec, nil
}

// handleGetBacktest returns a backtest with its status and results
func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Invalid backtest ID", nil)
		return
	}
	if !s.requireDB(w, r) {
		return
	}

	bt, err := s.repos.Backtest.GetByID(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		s.respondError(w, r, http.StatusNotFound, "Backtest not found", nil)
		return
	}
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to fetch backtest", err)
		return
	}

	respondJSON(w, http.StatusOK, newBacktestResponse(bt))
}

// handleListBacktests lists a user's backtests. Query params: user_id, limit
func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.respondParamError(w, r, &paramError{param: "user_id", reason: "is required"})
		return
	}
	limit, err := parseIntParam(r, "limit", 20, 1, 100)
	if err != nil {
		s.respondParamError(w, r, err)
		return
	}
	if !s.requireDB(w, r) {
		return
	}

	backtests, err := s.repos.Backtest.ListByUser(r.Context(), userID, limit)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to fetch backtests", err)
		return
	}

	out := make([]backtestResponse, 0, len(backtests))
	for _, bt := range backtests {
		out = append(out, newBacktestResponse(bt))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"backtests": out,
		"total":     len(out),
		"timestamp": timestamp(),
	})
}
