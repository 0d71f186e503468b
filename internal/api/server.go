package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/huyndo/tpcn-advisor/internal/advisor"
	"github.com/huyndo/tpcn-advisor/internal/common"
	"github.com/huyndo/tpcn-advisor/internal/common/telemetry"
	"github.com/huyndo/tpcn-advisor/internal/retriever"
)

type Server struct {
	router  chi.Router
	engine  *retriever.Engine
	advisor *advisor.Advisor
	metrics *telemetry.Metrics

	service    string
	adminToken string
}

// Config controls the optional API surfaces: the service label used in
// metrics, the admin token guarding reindex, and the metrics registry.
type Config struct {
	ServiceName string
	AdminToken  string
	Metrics     *telemetry.Metrics
}

// DefaultConfig returns the standard configuration used when no overrides
// are provided.
func DefaultConfig() Config {
	return Config{ServiceName: "advisord"}
}

// Merge overlays non-empty fields from the override onto the base
// configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.ServiceName) != "" {
		result.ServiceName = strings.TrimSpace(override.ServiceName)
	}
	if strings.TrimSpace(override.AdminToken) != "" {
		result.AdminToken = strings.TrimSpace(override.AdminToken)
	}
	if override.Metrics != nil {
		result.Metrics = override.Metrics
	}
	return result
}

// NewServer wires the HTTP surface around a retrieval engine. When the
// engine has no snapshot yet the initial index build runs here; a failed
// build leaves the server up in a degraded state that reindex can heal.
func NewServer(ctx context.Context, engine *retriever.Engine, cfg *Config) (*Server, error) {
	logger := common.Logger()
	if engine == nil {
		return nil, fmt.Errorf("retrieval engine required")
	}
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	if !engine.Ready() {
		stats, err := engine.Reload(ctx)
		if err != nil {
			logger.Warn("api: initial index build failed", "error", err)
		} else {
			logger.Info("api: initial index built",
				"products", stats.Counts.Products,
				"combos", stats.Counts.Combos,
				"symptoms", stats.Counts.Symptoms,
			)
		}
	}
	srv := &Server{
		router:     chi.NewRouter(),
		engine:     engine,
		advisor:    advisor.New(engine),
		metrics:    configuration.Metrics,
		service:    configuration.ServiceName,
		adminToken: configuration.AdminToken,
	}
	srv.routes()
	logger.Info("api: server ready", "admin_guard", srv.adminToken != "")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	common.Logger().Info("api: configuring routes")
	s.router.Use(corsHandler())
	s.router.Use(requestLogger)
	if s.metrics != nil {
		s.router.Use(func(next http.Handler) http.Handler {
			return s.metrics.Middleware(s.service, next)
		})
	}

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})

	s.router.Post("/v1/ask", s.handleAsk)
	s.router.Get("/v1/search", s.handleSearch)
	s.router.Post("/v1/admin/reindex", s.handleReindex)
	s.router.Get("/v1/logs", s.handleLogs)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
