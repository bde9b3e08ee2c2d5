// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/valvegate/internal/analyzer"
	"github.com/jeranaias/valvegate/internal/backend"
	"github.com/jeranaias/valvegate/internal/cache"
	"github.com/jeranaias/valvegate/internal/config"
	"github.com/jeranaias/valvegate/internal/router"
	"github.com/jeranaias/valvegate/internal/telemetry"
	"github.com/jeranaias/valvegate/internal/tier"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// newTestRouter builds a full pipeline on in-process backends and a
// fast-only cache.
func newTestRouter(t *testing.T, opts ...router.Option) *router.Router {
	t.Helper()

	tiers := tier.Default()
	backends := backend.NewRegistry()
	for _, tr := range tiers.List() {
		if err := backends.Register(tr.Name, backend.NewGenerative(tr.Model)); err != nil {
			t.Fatal(err)
		}
	}

	store := cache.New(cache.Config{MaxEntries: 100, TTL: time.Minute})
	rt, err := router.New(analyzer.New(tiers), tiers, backends, store, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return rt
}

// newTestServer builds a server over a fresh pipeline with metrics on.
func newTestServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()

	rt := newTestRouter(t, router.WithMetrics(telemetry.NewMetrics()))
	srv, err := New(cfg, rt)
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

// do runs one request through the full middleware chain.
func do(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// =============================================================================
// CONSTRUCTION TESTS
// =============================================================================

func TestNew(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})

	if srv.Addr() != DefaultAddr {
		t.Errorf("Addr() = %q, want %q", srv.Addr(), DefaultAddr)
	}
}

func TestNew_NilRouter(t *testing.T) {
	if _, err := New(config.ServerConfig{}, nil); err == nil {
		t.Error("New(nil router) should fail")
	}
}

func TestNew_CustomAddr(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{Addr: "127.0.0.1:9999"})

	if srv.Addr() != "127.0.0.1:9999" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9999", srv.Addr())
	}
}

func TestServer_WithMethods(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})

	if srv.WithLogger(nil) != srv {
		t.Error("WithLogger should return same server")
	}
	if srv.WithVersion("1.0.0") != srv {
		t.Error("WithVersion should return same server")
	}
	if srv.WithAuth(nil) != srv {
		t.Error("WithAuth should return same server")
	}
	if srv.WithCORS(nil) != srv {
		t.Error("WithCORS should return same server")
	}
}

// =============================================================================
// QUERY ENDPOINT TESTS
// =============================================================================

func TestHandleQuery(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "POST", "/query", `{"query": "What is the heart?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp QueryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.TierUsed != tier.Basic {
		t.Errorf("TierUsed = %q, want %q", resp.TierUsed, tier.Basic)
	}
	if resp.Text == "" {
		t.Error("Text should not be empty")
	}
	if resp.CacheHit {
		t.Error("first request should not be a cache hit")
	}
	if resp.RequestID == "" {
		t.Error("RequestID should be set by middleware")
	}
	if got := w.Header().Get("X-Request-Id"); got == "" {
		t.Error("X-Request-Id header should be set")
	}
}

func TestHandleQuery_CacheHit(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()
	body := `{"query": "What is the heart?"}`

	w1 := do(handler, "POST", "/query", body)
	if w1.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w1.Code)
	}
	var first QueryResponse
	if err := json.NewDecoder(w1.Body).Decode(&first); err != nil {
		t.Fatal(err)
	}

	w2 := do(handler, "POST", "/query", body)
	if w2.Code != http.StatusOK {
		t.Fatalf("second request status = %d", w2.Code)
	}
	var second QueryResponse
	if err := json.NewDecoder(w2.Body).Decode(&second); err != nil {
		t.Fatal(err)
	}

	if !second.CacheHit {
		t.Error("second identical request should hit the cache")
	}
	if second.Cost != first.Cost {
		t.Errorf("cached Cost = %v, want stored cost %v", second.Cost, first.Cost)
	}
	if second.Text != first.Text {
		t.Errorf("cached Text = %q, want %q", second.Text, first.Text)
	}
}

func TestHandleQuery_ForcedTier(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "POST", "/query", `{"query": "What is the heart?", "tier": "advanced"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp QueryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TierUsed != tier.Advanced {
		t.Errorf("TierUsed = %q, want %q", resp.TierUsed, tier.Advanced)
	}
}

func TestHandleQuery_UnknownTier(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "POST", "/query", `{"query": "What is the heart?", "tier": "quantum"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Type != "unknown_tier" {
		t.Errorf("error type = %q, want unknown_tier", resp.Error.Type)
	}
	if !strings.Contains(resp.Error.Message, "quantum") {
		t.Errorf("error message should name the bad tier, got %q", resp.Error.Message)
	}
	if !strings.Contains(resp.Error.Message, tier.Basic) {
		t.Errorf("error message should list valid tiers, got %q", resp.Error.Message)
	}
}

func TestHandleQuery_EmptyQuery(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	for _, body := range []string{`{"query": ""}`, `{"query": "   "}`, `{}`} {
		w := do(handler, "POST", "/query", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleQuery_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "POST", "/query", `{invalid json}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleQuery_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "GET", "/query", "")

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

// =============================================================================
// HEALTH ENDPOINT TESTS
// =============================================================================

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	srv.WithVersion("1.2.3")
	handler := srv.Handler()

	w := do(handler, "GET", "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", resp.Version)
	}
	if resp.Checks["cache"] != "ok" {
		t.Errorf("cache check = %q, want ok", resp.Checks["cache"])
	}
	if resp.Checks["durable"] != "disabled" {
		t.Errorf("durable check = %q, want disabled", resp.Checks["durable"])
	}
	if resp.Checks["backends"] != "ok" {
		t.Errorf("backends check = %q, want ok", resp.Checks["backends"])
	}
}

func TestHandleHealth_NoBackends(t *testing.T) {
	tiers := tier.Default()
	store := cache.New(cache.Config{MaxEntries: 10, TTL: time.Minute})
	rt, err := router.New(analyzer.New(tiers), tiers, backend.NewRegistry(), store)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(config.ServerConfig{}, rt)
	if err != nil {
		t.Fatal(err)
	}

	w := do(srv.Handler(), "GET", "/health", "")

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.Checks["backends"] != "none" {
		t.Errorf("backends check = %q, want none", resp.Checks["backends"])
	}
}

// =============================================================================
// MODEL STATUS TESTS
// =============================================================================

func TestHandleModelsStatus(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "GET", "/models/status", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ModelsStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(resp.Tiers) != 3 {
		t.Fatalf("Tiers length = %d, want 3", len(resp.Tiers))
	}

	for _, ts := range resp.Tiers {
		if !ts.Registered {
			t.Errorf("tier %q should have a registered backend", ts.Name)
		}
		if ts.Backend != "generative" {
			t.Errorf("tier %q backend = %q, want generative", ts.Name, ts.Backend)
		}
		if ts.Model == "" {
			t.Errorf("tier %q should have a model", ts.Name)
		}
	}

	if resp.Tiers[0].Name != tier.Basic {
		t.Errorf("first tier = %q, want %q", resp.Tiers[0].Name, tier.Basic)
	}
	if resp.Tiers[0].UpperBound != 25 {
		t.Errorf("basic UpperBound = %d, want 25", resp.Tiers[0].UpperBound)
	}
}

// =============================================================================
// COST ESTIMATE TESTS
// =============================================================================

func TestHandleCostEstimate_GET(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "GET", "/models/cost-estimate?query="+url.QueryEscape("What is the heart?"), "")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp router.CostEstimate
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(resp.Tiers) != 3 {
		t.Errorf("Tiers length = %d, want 3", len(resp.Tiers))
	}
	if resp.Recommended != tier.Basic {
		t.Errorf("Recommended = %q, want %q", resp.Recommended, tier.Basic)
	}
	if !resp.Tiers[tier.Basic].Recommended {
		t.Error("basic tier should be marked recommended")
	}
}

func TestHandleCostEstimate_POST(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "POST", "/models/cost-estimate", `{"query": "What is the heart?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp router.CostEstimate
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Analysis.Query != "What is the heart?" {
		t.Errorf("Analysis.Query = %q", resp.Analysis.Query)
	}
}

func TestHandleCostEstimate_MissingQuery(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "GET", "/models/cost-estimate", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// =============================================================================
// CACHE ENDPOINT TESTS
// =============================================================================

func TestHandleCacheStats(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "GET", "/cache/stats", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp cache.Stats
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Fast.MaxSize != 100 {
		t.Errorf("Fast.MaxSize = %d, want 100", resp.Fast.MaxSize)
	}
}

func TestHandleCacheClear(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	// Populate the cache.
	if w := do(handler, "POST", "/query", `{"query": "What is the heart?"}`); w.Code != http.StatusOK {
		t.Fatalf("query status = %d", w.Code)
	}

	w := do(handler, "POST", "/cache/clear", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
	if resp["scope"] != string(cache.ScopeAll) {
		t.Errorf("scope = %q, want %q", resp["scope"], cache.ScopeAll)
	}

	var stats cache.Stats
	sw := do(handler, "GET", "/cache/stats", "")
	if err := json.NewDecoder(sw.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Fast.Size != 0 {
		t.Errorf("cache size after clear = %d, want 0", stats.Fast.Size)
	}
}

func TestHandleCacheClear_InvalidScope(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	w := do(handler, "POST", "/cache/clear?scope=bogus", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// =============================================================================
// METRICS ENDPOINT TESTS
// =============================================================================

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	do(handler, "POST", "/query", `{"query": "What is the heart?"}`)
	do(handler, "POST", "/query", `{"query": "What is the heart?"}`)

	w := do(handler, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var snap telemetry.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if snap.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", snap.TotalRequests)
	}
	if snap.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", snap.CacheHits)
	}
}

func TestHandleMetrics_Disabled(t *testing.T) {
	rt := newTestRouter(t)
	srv, err := New(config.ServerConfig{}, rt)
	if err != nil {
		t.Fatal(err)
	}

	w := do(srv.Handler(), "GET", "/metrics", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHandlePerformance(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	do(handler, "POST", "/query", `{"query": "What is the heart?"}`)

	w := do(handler, "GET", "/performance", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp PerformanceResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", resp.TotalRequests)
	}
	if resp.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %f, should not be negative", resp.UptimeSeconds)
	}
	if resp.FastCache.Size != 1 {
		t.Errorf("FastCache.Size = %d, want 1", resp.FastCache.Size)
	}
}

// =============================================================================
// AUTH TESTS
// =============================================================================

func TestAuth_ProtectedEndpoints(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{AuthToken: "secret-token"})
	handler := srv.Handler()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret-token", http.StatusUnauthorized},
		{"wrong token", "Bearer wrong", http.StatusUnauthorized},
		{"valid token", "Bearer secret-token", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/query", strings.NewReader(`{"query": "What is the heart?"}`))
			req.Header.Set("Content-Type", "application/json")
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Errorf("Status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAuth_OpenEndpoints(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{AuthToken: "secret-token"})
	handler := srv.Handler()

	// Read-only endpoints stay open when auth is on.
	for _, path := range []string{"/health", "/models/status", "/cache/stats", "/metrics", "/performance"} {
		w := do(handler, "GET", path, "")
		if w.Code == http.StatusUnauthorized {
			t.Errorf("GET %s should not require auth", path)
		}
	}

	// Cache clear is protected.
	w := do(handler, "POST", "/cache/clear", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST /cache/clear without token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestValidateBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
		want     bool
	}{
		{"matching", "secret", "secret", true},
		{"mismatched", "secret", "other", false},
		{"empty token", "", "secret", false},
		{"empty expected", "secret", "", false},
		{"both empty", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateBearerToken(tc.token, tc.expected); got != tc.want {
				t.Errorf("ValidateBearerToken(%q, %q) = %v, want %v", tc.token, tc.expected, got, tc.want)
			}
		})
	}
}

func TestAuthConfig_IPAllowlist(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	srv.WithAuth(&AuthConfig{
		Enabled:     true,
		BearerToken: "secret",
		AllowedIPs:  []string{"10.0.0.0/8", "192.0.2.1"},
	})
	handler := srv.Handler()

	// httptest.NewRequest's default RemoteAddr is 192.0.2.1, which the
	// allowlist admits as a single IP.
	req := httptest.NewRequest("POST", "/query", strings.NewReader(`{"query": "What is the heart?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("allowed IP: status = %d, want %d", w.Code, http.StatusOK)
	}

	// An address outside the allowlist is rejected before token checks.
	req = httptest.NewRequest("POST", "/query", strings.NewReader(`{"query": "What is the heart?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	req.RemoteAddr = "203.0.113.50:4000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("blocked IP: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// =============================================================================
// RATE LIMIT TESTS
// =============================================================================

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{RequestsPerSecond: 1, Burst: 1})
	defer srv.limiter.Close()
	handler := srv.Handler()

	w1 := do(handler, "GET", "/health", "")
	if w1.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", w1.Code, http.StatusOK)
	}

	w2 := do(handler, "GET", "/health", "")
	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", w2.Code, http.StatusTooManyRequests)
	}
	if w2.Header().Get("Retry-After") == "" {
		t.Error("rate limited response should carry Retry-After")
	}
}

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	defer rl.Close()

	if !rl.Allow("10.0.0.1") {
		t.Error("first request should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("second immediate request should be limited")
	}

	// A different IP has its own bucket.
	if !rl.Allow("10.0.0.2") {
		t.Error("different IP should be allowed")
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{"direct connection", "203.0.113.7:9999", "", "", "203.0.113.7"},
		{"untrusted proxy cannot spoof", "203.0.113.7:9999", "198.51.100.9", "", "203.0.113.7"},
		{"trusted proxy forwards", "127.0.0.1:9999", "198.51.100.9", "", "198.51.100.9"},
		{"trusted proxy multi hop", "10.1.2.3:80", "198.51.100.9, 10.0.0.1", "", "198.51.100.9"},
		{"trusted proxy real ip", "127.0.0.1:9999", "", "198.51.100.10", "198.51.100.10"},
		{"invalid forwarded falls back", "127.0.0.1:9999", "not-an-ip", "", "127.0.0.1"},
		{"no port", "203.0.113.7", "", "", "203.0.113.7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/health", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xRealIP != "" {
				req.Header.Set("X-Real-IP", tc.xRealIP)
			}

			if got := GetClientIP(req); got != tc.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen == "" {
		t.Error("request ID should be generated")
	}
	if got := w.Header().Get("X-Request-Id"); got != seen {
		t.Errorf("header X-Request-Id = %q, want %q", got, seen)
	}

	// A client-supplied ID is preserved.
	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-Id", "client-id-42")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "client-id-42" {
		t.Errorf("request ID = %q, want client-id-42", seen)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})

	w := do(srv.Handler(), "GET", "/health", "")

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	req := httptest.NewRequest("OPTIONS", "/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})
	handler := srv.Handler()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mw("first"), mw("second"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"first", "second", "handler"}
	for i, name := range want {
		if i >= len(order) || order[i] != name {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "validation_error", "bad input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Message != "bad input" {
		t.Errorf("Message = %q", resp.Error.Message)
	}
	if resp.Error.Type != "validation_error" {
		t.Errorf("Type = %q", resp.Error.Type)
	}
	if resp.Error.Code != http.StatusBadRequest {
		t.Errorf("Code = %d", resp.Error.Code)
	}
}

func TestShutdown_BeforeStart(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown before Start should be a no-op, got %v", err)
	}
}
