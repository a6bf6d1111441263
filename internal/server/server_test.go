package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/wellmatch/internal/app"
	"github.com/raaihank/wellmatch/internal/config"
	"github.com/raaihank/wellmatch/internal/events"
	"github.com/raaihank/wellmatch/internal/logger"
	"github.com/raaihank/wellmatch/internal/match"
)

func newTestServer(t *testing.T, table *match.ReferenceTable, rl config.RateLimitConfig) *Server {
	t.Helper()
	cfg := config.GetDefaults().Server
	cfg.RateLimit = rl
	return New(cfg, app.NewSession(table, nil), logger.NewNop(), "test")
}

func sampleTable(t *testing.T) *match.ReferenceTable {
	t.Helper()
	table, err := match.NewReferenceTable(match.FeatureWidth,
		[]match.Vector{
			{1, 1, 100, 2.5, 50, 1},
			{1, 1, 101, 2.5, 51, 1},
			{2, 0, 200, 4, 150, 2},
		},
		[]int{0, 0, 1},
		match.WithNames(map[int]string{0: "ALFA", 1: "BETA"}))
	require.NoError(t, err)
	return table
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, sampleTable(t), config.RateLimitConfig{})
	rec := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestInfo(t *testing.T) {
	s := newTestServer(t, sampleTable(t), config.RateLimitConfig{})
	rec := do(t, s, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "wellmatch", body["name"])
	assert.Equal(t, float64(3), body["rows"])
	assert.Equal(t, float64(2), body["labels"])
	assert.Equal(t, float64(6), body["width"])
}

func TestMatch(t *testing.T) {
	s := newTestServer(t, sampleTable(t), config.RateLimitConfig{})
	rec := do(t, s, http.MethodPost, "/v1/match", `{"features":[1,1,100,2.5,50,1]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "ALFA", res.Matches[0].Name)
	assert.Equal(t, 0, res.Matches[0].Index)
	assert.Equal(t, 2, res.Matches[1].Index)
	assert.Nil(t, res.Prediction)
}

func TestMatch_Errors(t *testing.T) {
	empty, err := match.NewReferenceTable(match.FeatureWidth, nil, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		table  *match.ReferenceTable
		body   string
		status int
		kind   string
	}{
		{"WrongWidth", sampleTable(t), `{"features":[1,2,3]}`, http.StatusBadRequest, "invalid_input"},
		{"NegativeK", sampleTable(t), `{"features":[1,1,100,2.5,50,1],"k":-1}`, http.StatusBadRequest, "invalid_input"},
		{"Malformed", sampleTable(t), `{"features":`, http.StatusBadRequest, "bad_request"},
		{"UnknownField", sampleTable(t), `{"feature":[1]}`, http.StatusBadRequest, "bad_request"},
		{"EmptyReference", empty, `{"features":[1,1,100,2.5,50,1]}`, http.StatusUnprocessableEntity, "empty_reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.table, config.RateLimitConfig{})
			rec := do(t, s, http.MethodPost, "/v1/match", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestMatch_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, sampleTable(t), config.RateLimitConfig{})
	rec := do(t, s, http.MethodGet, "/v1/match", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/events", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, sampleTable(t), config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2})

	body := `{"features":[1,1,100,2.5,50,1]}`
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/match", body).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/match", body).Code)

	rec := do(t, s, http.MethodPost, "/v1/match", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")

	// Other clients and unlimited routes are unaffected
	req := httptest.NewRequest(http.MethodPost, "/v1/match", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.9:4321"
	other := httptest.NewRecorder()
	s.Handler().ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestRateLimit_ForwardingHeaders(t *testing.T) {
	body := `{"features":[1,1,100,2.5,50,1]}`
	send := func(s *Server, xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/match", strings.NewReader(body))
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}
	rl := config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}

	// Rotating the header does not escape the limit of the real peer
	s := newTestServer(t, sampleTable(t), rl)
	assert.Equal(t, http.StatusOK, send(s, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send(s, "10.0.0.2"))

	cfg := config.GetDefaults().Server
	cfg.RateLimit = rl
	cfg.TrustProxyHeaders = true
	trusted := New(cfg, app.NewSession(sampleTable(t), nil), logger.NewNop(), "test")
	assert.Equal(t, http.StatusOK, send(trusted, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, send(trusted, "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, send(trusted, "10.0.0.1"))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	r.Header.Set("X-Real-IP", "10.1.1.1")

	assert.Equal(t, "192.0.2.7", getClientIP(r, false))
	assert.Equal(t, "10.1.1.1", getClientIP(r, true))
}

func TestClientLimiter_Evict(t *testing.T) {
	l := newClientLimiter(1, 1)
	l.allow("a")
	l.evict(time.Now().Add(time.Second))
	assert.Empty(t, l.clients)
	l.stop()
	l.stop()
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, sampleTable(t), config.RateLimitConfig{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(match.ErrInvalidInput))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(match.ErrEmptyReference))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestStartStop(t *testing.T) {
	cfg := config.GetDefaults().Server
	cfg.Port = 0
	cfg.RateLimit.Enabled = true
	s := New(cfg, app.NewSession(sampleTable(t), nil), logger.NewNop(), "test")

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.NoError(t, <-done)
}

func TestEvents_StreamsMatchQueries(t *testing.T) {
	s := newTestServer(t, sampleTable(t), config.RateLimitConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	// A pong proves the client is registered
	require.NoError(t, conn.WriteJSON(events.ClientMessage{Type: "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var pong events.Event
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, events.EventTypePong, pong.Type)

	resp, err := http.Post(ts.URL+"/v1/match", "application/json",
		strings.NewReader(`{"features":[1,1,100,2.5,50,1]}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ev struct {
		Type      events.EventType  `json:"type"`
		RequestID string            `json:"request_id"`
		Data      events.QueryEvent `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))

	assert.Equal(t, events.EventTypeQuery, ev.Type)
	assert.Equal(t, resp.Header.Get(RequestIDHeader), ev.RequestID)
	assert.Equal(t, "ok", ev.Data.Outcome)
	assert.Equal(t, []int{0, 1}, ev.Data.Codinomes)
}

func TestEvents_Disabled(t *testing.T) {
	cfg := config.GetDefaults().Server
	cfg.Events.Enabled = false
	s := New(cfg, app.NewSession(sampleTable(t), nil), logger.NewNop(), "test")

	rec := do(t, s, http.MethodGet, "/v1/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
