package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valinor-ai/promptguard/internal/audit"
	"github.com/valinor-ai/promptguard/internal/auth"
	"github.com/valinor-ai/promptguard/internal/correction"
	"github.com/valinor-ai/promptguard/internal/imagecheck"
	"github.com/valinor-ai/promptguard/internal/ocr"
	"github.com/valinor-ai/promptguard/internal/platform/middleware"
	"github.com/valinor-ai/promptguard/internal/sentinel"
	"github.com/valinor-ai/promptguard/internal/stats"
)

const serviceName = "promptguard"

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	Pool               *pgxpool.Pool
	Auth               *auth.TokenService
	DevMode            bool
	DevIdentity        *auth.Identity
	Validator          *sentinel.Validator
	SentinelHandler    *sentinel.Handler
	ImageHandler       *imagecheck.Handler
	AuditHandler       *audit.Handler
	StatsHandler       *stats.Handler
	OCREngine          ocr.Engine
	Correction         *correction.Client
	AuditSinks         []string
	StatsBackend       string
	Version            string
	Logger             *slog.Logger
	CORSAllowedOrigins []string
}

type Server struct {
	httpServer   *http.Server
	protectedMux *http.ServeMux
	deps         Dependencies
	handler      http.Handler
}

func New(addr string, deps Dependencies) *Server {
	// Protected routes mux, wrapped with auth middleware when configured
	protectedMux := http.NewServeMux()

	var protectedHandler http.Handler = protectedMux
	if deps.Auth != nil {
		if deps.DevMode && deps.DevIdentity != nil {
			protectedHandler = auth.MiddlewareWithDevMode(deps.Auth, deps.DevIdentity)(protectedHandler)
		} else {
			protectedHandler = auth.Middleware(deps.Auth)(protectedHandler)
		}
	}

	// Top-level mux: public routes + protected catch-all
	topMux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			ReadTimeout: 15 * time.Second,
			// Image requests include OCR and an optional model round trip.
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		protectedMux: protectedMux,
		deps:         deps,
	}

	// Public routes (no auth required)
	topMux.HandleFunc("GET /{$}", s.handleIndex)
	topMux.HandleFunc("GET /healthz", s.handleHealth)
	topMux.HandleFunc("GET /readyz", s.handleReadiness)
	topMux.HandleFunc("GET /api/v1/status", s.handleStatus)
	if deps.SentinelHandler != nil {
		// Authenticates itself through the access_token query parameter.
		topMux.HandleFunc("GET /api/v1/validate/ws", deps.SentinelHandler.HandleWebSocket)
	}

	if deps.SentinelHandler != nil {
		protectedMux.HandleFunc("POST /api/v1/validate", deps.SentinelHandler.HandleValidate)
	}
	if deps.ImageHandler != nil {
		protectedMux.HandleFunc("POST /api/v1/validate-image", deps.ImageHandler.HandleValidateImage)
	}
	if deps.AuditHandler != nil {
		protectedMux.HandleFunc("GET /api/v1/logs", deps.AuditHandler.HandleListLogs)
		protectedMux.HandleFunc("GET /api/v1/statistics", deps.AuditHandler.HandleStatistics)
	}
	if deps.StatsHandler != nil {
		protectedMux.HandleFunc("GET /api/v1/statistics/daily", deps.StatsHandler.HandleDaily)
	}

	// All other routes go through auth middleware
	topMux.Handle("/", protectedHandler)

	// Wrap top-level mux with observability middleware
	var handler http.Handler = topMux
	if deps.Logger != nil {
		handler = middleware.Logging(deps.Logger)(handler)
	}
	handler = middleware.RequestID(handler)
	if len(deps.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(deps.CORSAllowedOrigins)(handler)
	}

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ProtectedMux returns the mux for authenticated routes.
func (s *Server) ProtectedMux() *http.ServeMux {
	return s.protectedMux
}

func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": s.deps.Version,
		"endpoints": map[string]string{
			"health":          "GET /healthz",
			"ready":           "GET /readyz",
			"status":          "GET /api/v1/status",
			"validate":        "POST /api/v1/validate",
			"validate_image":  "POST /api/v1/validate-image",
			"validate_stream": "GET /api/v1/validate/ws",
			"logs":            "GET /api/v1/logs",
			"statistics":      "GET /api/v1/statistics",
			"daily":           "GET /api/v1/statistics/daily",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Validator == nil || s.deps.Validator.Registry() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "rule registry not loaded",
		})
		return
	}

	// The database is optional; when configured it must answer.
	if s.deps.Pool != nil {
		if err := s.deps.Pool.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "database ping failed",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"service": serviceName,
		"version": s.deps.Version,
	}

	if v := s.deps.Validator; v != nil {
		reg := v.Registry()
		status["rules"] = map[string]int{
			"patterns":       len(reg.Patterns()),
			"keyword_groups": len(reg.KeywordGroups()),
			"keywords":       reg.KeywordCount(),
		}
	}

	ocrStatus := map[string]any{"engine": "", "available": false}
	if e := s.deps.OCREngine; e != nil {
		ocrStatus["engine"] = e.Name()
		ocrStatus["available"] = e.Available()
	}
	status["ocr"] = ocrStatus

	corr := map[string]any{"configured": false}
	if c := s.deps.Correction; c != nil {
		corr["configured"] = c.Configured()
		corr["model"] = c.Model()
	}
	status["correction"] = corr

	sinks := s.deps.AuditSinks
	if sinks == nil {
		sinks = []string{}
	}
	status["audit_sinks"] = sinks
	status["statistics_backend"] = s.deps.StatsBackend
	status["database"] = s.deps.Pool != nil
	status["auth"] = s.deps.Auth != nil

	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
