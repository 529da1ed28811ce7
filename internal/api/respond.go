package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// errorResponse mirrors the {"detail": ...} error body the frontend expects
type errorResponse struct {
	Detail    string `json:"detail"`
	Path      string `json:"path,omitempty"`
	Method    string `json:"method,omitempty"`
	Timestamp string `json:"timestamp"`
}

// paramError is a query or path parameter that failed validation
type paramError struct {
	param  string
	reason string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid query parameter %q: %s", e.param, e.reason)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, detail string, err error) {
	if err != nil {
		entry := s.logger.WithError(err).WithFields(logrus.Fields{
			"path":   r.URL.Path,
			"method": r.Method,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.Error(detail)
		} else {
			entry.Debug(detail)
		}
	}

	respondJSON(w, status, errorResponse{
		Detail:    detail,
		Path:      r.URL.Path,
		Method:    r.Method,
		Timestamp: timestamp(),
	})
}

func (s *Server) respondParamError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
}

// parseIntParam reads an integer query parameter bounded to [min, max]
func parseIntParam(r *http.Request, param string, defaultValue, min, max int) (int, error) {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, &paramError{param: param, reason: "must be an integer"}
	}
	if value < min || value > max {
		return 0, &paramError{param: param, reason: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return value, nil
}

// parseNonNegativeFloat reads an optional float query parameter that must be >= 0
func parseNonNegativeFloat(r *http.Request, param string) (*float64, error) {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return nil, nil
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return nil, &paramError{param: param, reason: "must be a number"}
	}
	if value < 0 {
		return nil, &paramError{param: param, reason: "must be greater than or equal to 0"}
	}
	return &value, nil
}

func parseUUIDParam(r *http.Request, param string) (*uuid.UUID, error) {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return nil, nil
	}
	id, err := uuid.Parse(valueStr)
	if err != nil {
		return nil, &paramError{param: param, reason: "must be a UUID"}
	}
	return &id, nil
}

// splitList parses a comma-separated parameter, dropping blanks
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
