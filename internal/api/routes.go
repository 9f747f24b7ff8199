package api

import (
	"net/http"

	"geotask/internal/health"
	"geotask/internal/observability"
	"geotask/internal/sim"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Engine        *sim.Engine
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Engine, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Analysis endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/analyses", authMiddleware(http.HandlerFunc(handler.SubmitAnalysis)))
	mux.Handle("GET /v1/analyses", authMiddleware(http.HandlerFunc(handler.ListAnalyses)))
	mux.Handle("GET /v1/analyses/{jobId}", authMiddleware(http.HandlerFunc(handler.GetAnalysis)))
	mux.Handle("GET /v1/analyses/{jobId}/result", authMiddleware(http.HandlerFunc(handler.GetAnalysisResult)))
	mux.Handle("POST /v1/analyses/{jobId}/cancel", authMiddleware(http.HandlerFunc(handler.CancelAnalysis)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
