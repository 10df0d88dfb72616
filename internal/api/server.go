package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/ratelimit"
	"github.com/shehryarbajwa/walla-export/pkg/models"
)

// RouteOptions configures the gates in front of the export routes
type RouteOptions struct {
	APIKey   string
	Limiter  *ratelimit.Limiter
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

// ExportPath is the route serving kind
func ExportPath(kind models.ReportKind) string {
	return "/export-walla-" + kind.Slug()
}

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(opts RouteOptions) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware(opts.Logger), RecoverMiddleware(opts.Logger))

	// Liveness stays outside the auth gate
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	gated := r.NewRoute().Subrouter()
	gated.Use(AuthMiddleware(opts.APIKey))

	if opts.Registry != nil {
		gated.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	exports := gated.NewRoute().Subrouter()
	exports.Use(RateLimitMiddleware(opts.Limiter))
	for _, kind := range models.ReportKinds {
		exports.HandleFunc(ExportPath(kind), h.Export(kind)).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "not_found"})
	})

	return r
}
