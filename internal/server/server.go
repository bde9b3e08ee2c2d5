// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/valvegate/internal/backend"
	"github.com/jeranaias/valvegate/internal/cache"
	"github.com/jeranaias/valvegate/internal/config"
	"github.com/jeranaias/valvegate/internal/router"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address used when the config leaves it empty.
	DefaultAddr = "127.0.0.1:8090"

	// MaxRequestBodySize limits request bodies to 1MB.
	MaxRequestBodySize = 1 * 1024 * 1024

	// ReadTimeout bounds how long reading a request may take.
	ReadTimeout = 30 * time.Second

	// WriteTimeout bounds how long writing a response may take.
	WriteTimeout = 120 * time.Second

	// IdleTimeout bounds how long keep-alive connections stay open.
	IdleTimeout = 120 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the query router over HTTP.
type Server struct {
	addr       string
	router     *router.Router
	logger     *zap.Logger
	auth       *AuthConfig
	cors       *CORSConfig
	limiter    *IPRateLimiter
	version    string
	startTime  time.Time
	httpServer *http.Server
}

// New creates a Server from the given config. Auth and rate limiting are
// taken from the config: an empty AuthToken disables auth, a zero
// RequestsPerSecond disables rate limiting.
func New(cfg config.ServerConfig, rt *router.Router) (*Server, error) {
	if rt == nil {
		return nil, fmt.Errorf("server needs a router")
	}

	s := &Server{
		addr:      cfg.Addr,
		router:    rt,
		logger:    zap.NewNop(),
		cors:      DefaultCORSConfig(),
		version:   "dev",
		startTime: time.Now(),
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}

	s.auth = &AuthConfig{
		Enabled:     cfg.AuthToken != "",
		BearerToken: cfg.AuthToken,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = NewIPRateLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return s, nil
}

// WithLogger sets the server logger.
func (s *Server) WithLogger(logger *zap.Logger) *Server {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithVersion sets the version reported by the health endpoint.
func (s *Server) WithVersion(version string) *Server {
	s.version = version
	return s
}

// WithAuth replaces the auth configuration derived from the config,
// for callers that need an IP allowlist.
func (s *Server) WithAuth(auth *AuthConfig) *Server {
	if auth != nil {
		s.auth = auth
	}
	return s
}

// WithCORS replaces the default CORS configuration.
func (s *Server) WithCORS(cors *CORSConfig) *Server {
	if cors != nil {
		s.cors = cors
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

// Handler builds the full handler: routes wrapped in the middleware
// chain. Exposed so tests can drive the server without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Auth guards the endpoints that invoke backends or mutate state.
	protected := AuthMiddleware(s.auth, s.logger)

	mux.Handle("POST /query", protected(http.HandlerFunc(s.handleQuery)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /models/status", s.handleModelsStatus)
	mux.HandleFunc("GET /models/cost-estimate", s.handleCostEstimate)
	mux.HandleFunc("POST /models/cost-estimate", s.handleCostEstimate)
	mux.HandleFunc("GET /cache/stats", s.handleCacheStats)
	mux.Handle("POST /cache/clear", protected(http.HandlerFunc(s.handleCacheClear)))
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /performance", s.handlePerformance)

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.cors),
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter, s.logger))
	}

	return Chain(middlewares...)(mux)
}

// Start begins listening. It blocks until the server stops and returns
// nil on a clean shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	s.logger.Info("server listening",
		zap.String("addr", s.addr),
		zap.Bool("auth", s.auth.Enabled),
		zap.Bool("rate_limit", s.limiter != nil))

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, letting in-flight requests
// finish until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// ============================================================================
// QUERY HANDLER
// ============================================================================

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	// Query is the text to analyze and route.
	Query string `json:"query"`

	// Tier optionally forces a tier by name, skipping selection.
	Tier string `json:"tier,omitempty"`
}

// QueryResponse wraps the router envelope with the request ID.
type QueryResponse struct {
	router.Response
	RequestID string `json:"request_id,omitempty"`
}

// handleQuery runs one query through the router pipeline.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "validation_error",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return
		}
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request format")
		return
	}

	resp, err := s.router.Process(r.Context(), req.Query, req.Tier)
	if err != nil {
		s.writeProcessError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Response:  resp,
		RequestID: GetRequestID(r.Context()),
	})
}

// writeProcessError maps pipeline errors to HTTP statuses. Internal
// failures are logged in full and reported to the client generically.
func (s *Server) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *router.ValidationError
	var tierErr *router.UnknownTierError
	var backendErr *backend.UnavailableError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.As(err, &tierErr):
		writeError(w, http.StatusBadRequest, "unknown_tier",
			fmt.Sprintf("unknown tier %q, valid tiers: %s",
				tierErr.Name, strings.Join(s.router.Tiers().Names(), ", ")))
	case errors.As(err, &backendErr):
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable",
			fmt.Sprintf("backend for tier %q is unavailable", backendErr.Tier))
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "Request timed out")
	default:
		s.logger.Error("query processing failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
	}
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// handleHealth reports overall service health. The response is always
// 200; a degraded dependency shows up in the status and checks fields.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if s.router.Cache().Healthy(r.Context()) {
		checks["cache"] = "ok"
	} else {
		checks["cache"] = "degraded"
	}

	stats := s.router.Cache().Stats(r.Context())
	switch {
	case stats.DurableBackend == "":
		checks["durable"] = "disabled"
	case stats.DurableAvailable:
		checks["durable"] = "ok"
	default:
		checks["durable"] = "degraded"
	}

	if s.router.Backends().Len() > 0 {
		checks["backends"] = "ok"
	} else {
		checks["backends"] = "none"
	}

	status := "ok"
	for _, v := range checks {
		if v != "ok" && v != "disabled" {
			status = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Version:       s.version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Checks:        checks,
	})
}

// ============================================================================
// MODEL STATUS HANDLER
// ============================================================================

// TierStatus describes one tier for the status endpoint.
type TierStatus struct {
	Name        string  `json:"name"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	CostPerUnit float64 `json:"cost_per_unit"`
	UpperBound  int     `json:"upper_bound,omitempty"`
	Accelerated bool    `json:"accelerated,omitempty"`
	Backend     string  `json:"backend,omitempty"`
	Registered  bool    `json:"registered"`
}

// ModelsStatusResponse is the body of GET /models/status.
type ModelsStatusResponse struct {
	Tiers []TierStatus `json:"tiers"`
}

// handleModelsStatus lists the tier table and which tiers have a
// registered backend.
func (s *Server) handleModelsStatus(w http.ResponseWriter, r *http.Request) {
	kinds := s.router.Backends().Kinds()
	tiers := s.router.Tiers().List()

	resp := ModelsStatusResponse{Tiers: make([]TierStatus, 0, len(tiers))}
	for _, t := range tiers {
		ts := TierStatus{
			Name:        t.Name,
			Model:       t.Model,
			MaxTokens:   t.MaxTokens,
			CostPerUnit: t.CostPerUnit,
			UpperBound:  t.UpperBound,
			Accelerated: t.Accelerated,
		}
		if kind, ok := kinds[t.Name]; ok {
			ts.Backend = kind.String()
			ts.Registered = true
		}
		resp.Tiers = append(resp.Tiers, ts)
	}

	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// COST ESTIMATE HANDLER
// ============================================================================

// CostEstimateRequest is the body of POST /models/cost-estimate.
type CostEstimateRequest struct {
	Query string `json:"query"`
}

// handleCostEstimate prices a query on every tier without running it.
// GET takes the query from the URL, POST from a JSON body.
func (s *Server) handleCostEstimate(w http.ResponseWriter, r *http.Request) {
	var query string

	if r.Method == http.MethodGet {
		query = r.URL.Query().Get("query")
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		var req CostEstimateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "Invalid request format")
			return
		}
		query = req.Query
	}

	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "query is required")
		return
	}

	writeJSON(w, http.StatusOK, s.router.EstimateCosts(query))
}

// ============================================================================
// CACHE HANDLERS
// ============================================================================

// handleCacheStats reports both cache layers.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Cache().Stats(r.Context()))
}

// handleCacheClear wipes the cache layers selected by the scope query
// parameter (all, fast, or durable; empty means all).
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	scope, err := cache.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := s.router.Cache().Clear(r.Context(), scope); err != nil {
		s.logger.Error("cache clear failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("scope", string(scope)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache_error", "cache clear failed")
		return
	}

	s.logger.Info("cache cleared",
		zap.String("scope", string(scope)),
		zap.String("ip", GetClientIP(r)))

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"scope":  string(scope),
	})
}

// ============================================================================
// METRICS HANDLERS
// ============================================================================

// handleMetrics serves the full telemetry snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := s.router.Metrics()
	if metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics_disabled", "metrics collection is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, metrics.Snapshot())
}

// PerformanceResponse is the body of GET /performance.
type PerformanceResponse struct {
	UptimeSeconds   float64            `json:"uptime_seconds"`
	TotalRequests   uint64             `json:"total_requests"`
	Failures        uint64             `json:"failures"`
	AvgLatencyMs    float64            `json:"avg_latency_ms"`
	CacheHitRate    float64            `json:"cache_hit_rate"`
	TierLatenciesMs map[string]float64 `json:"tier_latencies_ms"`
	FastCache       cache.MemoryStats  `json:"fast_cache"`
}

// handlePerformance condenses the telemetry snapshot into the numbers
// an operator checks first: latency, hit rate, and cache pressure.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	resp := PerformanceResponse{
		UptimeSeconds:   time.Since(s.startTime).Seconds(),
		TierLatenciesMs: make(map[string]float64),
		FastCache:       s.router.Cache().Stats(r.Context()).Fast,
	}

	if metrics := s.router.Metrics(); metrics != nil {
		snap := metrics.Snapshot()
		resp.TotalRequests = snap.TotalRequests
		resp.Failures = snap.Failures
		resp.AvgLatencyMs = snap.AvgLatencyMs
		resp.CacheHitRate = snap.CacheHitRate
		for name, ts := range snap.Tiers {
			resp.TierLatenciesMs[name] = ts.AvgLatencyMs
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// RESPONSE HELPERS
// ============================================================================

// errorBody is the inner error payload.
type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// errorResponse is the JSON envelope for every error.
type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, errorResponse{
		Error: errorBody{
			Message: message,
			Type:    errType,
			Code:    status,
		},
	})
}
