package api

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/yourusername/arblens/internal/metrics"
	"github.com/yourusername/arblens/internal/models"
)

const statsCacheKey = "platform_stats"

// handleStats returns platform-wide counters, cached for server.stats_cache_ttl
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}

	cacheEnabled := s.cfg.Server.StatsCacheTTL > 0
	if cacheEnabled {
		if cached, found := s.cache.Get(statsCacheKey); found {
			metrics.RecordStatsCache(true)
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"stats":     cached,
				"timestamp": timestamp(),
			})
			return
		}
		metrics.RecordStatsCache(false)
	}

	stats, err := s.repos.Stats.GetPlatformStats(r.Context())
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "Failed to fetch stats", err)
		return
	}
	rounded := roundStats(*stats)

	if cacheEnabled {
		s.cache.Set(statsCacheKey, rounded, s.cfg.Server.StatsCacheTTL)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":     rounded,
		"timestamp": timestamp(),
	})
}

func roundStats(stats models.PlatformStats) models.PlatformStats {
	stats.AvgSpread = decimal.NewFromFloat(stats.AvgSpread).Round(2).InexactFloat64()
	stats.TotalVolume = decimal.NewFromFloat(stats.TotalVolume).Round(2).InexactFloat64()
	return stats
}
