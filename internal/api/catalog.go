package api

import (
	"net/http"

	"github.com/yourusername/arblens/internal/models"
	"github.com/yourusername/arblens/internal/repository"
)

// handleListVenues lists venues. Query params: status, venue_type
func (s *Server) handleListVenues(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}

	q := r.URL.Query()
	filter := repository.VenueFilter{
		Status:    q.Get("status"),
		VenueType: q.Get("venue_type"),
	}

	venues, err := s.repos.Venue.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to fetch venues", err)
		return
	}
	if venues == nil {
		venues = []*models.Venue{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"venues":    venues,
		"total":     len(venues),
		"timestamp": timestamp(),
	})
}

// handleListMarkets lists markets. Query params: venue_id, category, status, limit
func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	venueID, err := parseUUIDParam(r, "venue_id")
	if err != nil {
		s.respondParamError(w, r, err)
		return
	}
	limit, err := parseIntParam(r, "limit", 100, 1, 1000)
	if err != nil {
		s.respondParamError(w, r, err)
		return
	}
	if !s.requireDB(w, r) {
		return
	}

	q := r.URL.Query()
	filter := repository.MarketFilter{
		VenueID:  venueID,
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Limit:    limit,
	}

	markets, err := s.repos.Market.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to fetch markets", err)
		return
	}
	if markets == nil {
		markets = []*models.Market{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"markets":   markets,
		"total":     len(markets),
		"timestamp": timestamp(),
	})
}
