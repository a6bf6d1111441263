package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/app"
	"github.com/raaihank/wellmatch/internal/events"
	"github.com/raaihank/wellmatch/internal/match"
)

const maxBodyBytes = 1 << 20

// MatchRequest is the body of POST /v1/match
type MatchRequest struct {
	Features []float64 `json:"features"`
	K        int       `json:"k,omitempty"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type infoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	app.Info
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo describes the reference table
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Name:    "wellmatch",
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Info:    s.querier.Info(),
	})
}

// handleMatch runs a closest-match query
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req MatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed request body: "+err.Error())
		return
	}

	res, err := s.querier.Query(r.Context(), match.Vector(req.Features), req.K)
	s.publishQuery(r, requestID, req, res, err, time.Since(start))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error("Query failed", zap.Error(err))
		} else {
			log.Debug("Query rejected", zap.Error(err))
		}
		writeError(w, status, match.Kind(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// publishQuery sends the outcome of a match request to event stream clients
func (s *Server) publishQuery(r *http.Request, requestID string, req MatchRequest, res *app.Result, err error, took time.Duration) {
	if s.hub == nil {
		return
	}
	event := events.QueryEvent{
		Features:   match.Vector(req.Features),
		K:          req.K,
		Outcome:    "ok",
		ClientIP:   s.clientIP(r),
		DurationMS: float64(took.Microseconds()) / 1000,
	}
	if err != nil {
		event.Outcome = match.Kind(err)
	} else {
		event.Cached = res.Cached
		for _, m := range res.Matches {
			event.Codinomes = append(event.Codinomes, m.Label)
		}
	}
	s.hub.PublishQuery(requestID, event)
}

// statusFor maps query errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, match.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, match.ErrEmptyReference):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
