package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"bitget-trader/internal/risk"
	"bitget-trader/pkg/db"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := db.NewStore(database)
	riskMgr := risk.NewManager(risk.DefaultConfig())
	meta := SystemMeta{Venue: "bitget", Symbols: []string{"BTCUSDT"}, Version: "test"}
	return NewServer(nil, store, riskMgr, nil, nil, meta, "test-secret", "hunter2")
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSystemStatusIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/system/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Venue string `json:"venue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Venue != "bitget" {
		t.Fatalf("venue = %s", resp.Venue)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/positions", "/api/decisions", "/api/strategies", "/api/risk"} {
		w := doJSON(t, s, http.MethodGet, path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want 401", path, w.Code)
		}
	}

	w := doJSON(t, s, http.MethodGet, "/api/positions", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", w.Code)
	}
}

func TestPositionsRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	if err := s.Store.SavePosition(context.Background(), db.Position{
		ID: "p1", Symbol: "BTCUSDT", Strategy: "rsi_reversal", Direction: "LONG",
		EntryPrice: 50000, Size: 0.1, Leverage: 10,
	}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	w := doJSON(t, s, http.MethodGet, "/api/positions", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count     int           `json:"count"`
		Positions []db.Position `json:"positions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Positions[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRiskEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/risk", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Config struct {
			MinConfidence float64 `json:"min_confidence"`
			Leverage      int     `json:"leverage"`
		} `json:"config"`
		OpenPositions int `json:"open_positions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Config.MinConfidence != 60 || resp.Config.Leverage != 10 {
		t.Fatalf("unexpected config: %+v", resp.Config)
	}
}
