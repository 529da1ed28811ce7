package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/yourusername/arblens/internal/models"
	"github.com/yourusername/arblens/internal/repository"
)

// handleListOpportunities lists arbitrage opportunities.
// Query params: min_spread, min_liquidity, venues, category, status, limit
func (s *Server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	minSpread, err := parseNonNegativeFloat(r, "min_spread")
	if err != nil {
		s.respondParamError(w, r, err)
		return
	}
	minLiquidity, err := parseNonNegativeFloat(r, "min_liquidity")
	if err != nil {
		s.respondParamError(w, r, err)
		return
	}
	limit, err := parseIntParam(r, "limit", 50, 1, 1000)
	if err != nil {
		s.respondParamError(w, r, err)
		return
	}
	if !s.requireDB(w, r) {
		return
	}

	q := r.URL.Query()
	status := q.Get("status")
	if status == "" {
		status = string(models.OpportunityStatusActive)
	}

	filter := repository.OpportunityFilter{
		MinSpread:    minSpread,
		MinLiquidity: minLiquidity,
		Venues:       splitList(q.Get("venues")),
		Category:     q.Get("category"),
		Status:       status,
		Limit:        limit,
	}

	opportunities, err := s.repos.Opportunity.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to fetch opportunities", err)
		return
	}
	if opportunities == nil {
		opportunities = []*models.Opportunity{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": opportunities,
		"total":         len(opportunities),
		"filters": map[string]interface{}{
			"min_spread":    minSpread,
			"min_liquidity": minLiquidity,
			"venues":        nullableString(q.Get("venues")),
			"category":      nullableString(q.Get("category")),
			"status":        status,
			"limit":         limit,
		},
		"timestamp": timestamp(),
	})
}

// handleGetOpportunity returns one opportunity with both market legs
func (s *Server) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Invalid opportunity ID", nil)
		return
	}
	if !s.requireDB(w, r) {
		return
	}

	opportunity, err := s.repos.Opportunity.GetByID(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		s.respondError(w, r, http.StatusNotFound, "Opportunity not found", nil)
		return
	}
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to fetch opportunity", err)
		return
	}

	respondJSON(w, http.StatusOK, opportunity)
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
