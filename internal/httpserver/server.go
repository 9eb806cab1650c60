package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"flip-earn/internal/auth"
	"flip-earn/internal/market"
	"flip-earn/internal/metrics"
	"flip-earn/internal/repo"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups optional HTTP handlers to mount.
type Handlers struct {
	UserWebhook http.Handler
}

// Server wraps an http.Server with the marketplace routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	service    *market.Service
	store      repo.Store
	authn      auth.Provider
	basePath   string
}

// New creates the HTTP server listening on addr. Routes rely on the Go 1.22
// method-pattern mux; authenticated routes resolve the identity through
// authn before reaching the service.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, service *market.Service, store repo.Store, authn auth.Provider, handlers Handlers, basePath string) *Server {
	server := &Server{
		logger:   logger.With("component", "http"),
		metrics:  metricRegistry,
		service:  service,
		store:    store,
		authn:    authn,
		basePath: normaliseBasePath(basePath),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", server.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /listings/public", server.handlePublicListings)
	mux.Handle("POST /listings", server.authed(server.handleCreateListing))
	mux.Handle("PUT /listings", server.authed(server.handleUpdateListing))
	mux.Handle("GET /listings/user", server.authed(server.handleUserListings))
	mux.Handle("PUT /listings/{id}/status", server.authed(server.handleToggleStatus))
	mux.Handle("DELETE /listings/{listingId}", server.authed(server.handleDeleteListing))
	mux.Handle("PUT /listings/featured/{id}", server.authed(server.handleMarkFeatured))
	mux.Handle("POST /listings/add-credential", server.authed(server.handleAddCredential))
	mux.Handle("PUT /listings/rotate-credential", server.authed(server.handleRotateCredential))
	mux.Handle("POST /listings/purchase-account/{listingId}", server.authed(server.handlePurchase))
	mux.Handle("GET /listings/user-orders", server.authed(server.handleUserOrders))
	mux.Handle("POST /listings/withdraw", server.authed(server.handleWithdraw))

	mux.Handle("PUT /listings/ban/{id}", server.authed(server.handleBanListing))
	mux.Handle("PUT /listings/approve/{id}", server.authed(server.handleApproveListing))
	mux.Handle("PUT /listings/verify-credential/{id}", server.authed(server.handleVerifyCredential))

	mux.Handle("POST /chats", server.authed(server.handleGetOrCreateChat))
	mux.Handle("POST /chats/message", server.authed(server.handleSendMessage))
	mux.Handle("GET /chats", server.authed(server.handleUserChats))

	if handlers.UserWebhook != nil {
		mux.Handle("POST /webhook/clerk", handlers.UserWebhook)
	}

	handler := mountWithBasePath(server.basePath, mux)

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if server.basePath != "" {
		server.logger.Info("http server configured with base path", "base_path", server.basePath)
	}

	return server
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check store ping failed", "error", err)
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// authed wraps a handler that needs the caller's identity.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.authn.Authenticate(r)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				s.logger.Warn("authentication failed", "error", err)
			}
			writeJSONStatus(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": "unauthorized",
			})
			return
		}
		next(w, r, identity)
	})
}

// writeServiceError maps a market error onto the response.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	code := market.CodeOf(err)
	if code == market.CodeInternal || code == market.CodeDependency {
		s.logger.Error("request failed", "code", code, "error", err)
		if s.metrics != nil {
			s.metrics.Errors.WithLabelValues("http").Inc()
		}
	}
	writeJSONStatus(w, code.HTTPStatus(), map[string]any{
		"success": false,
		"code":    code,
		"message": market.MessageOf(err),
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func mountWithBasePath(basePath string, handler http.Handler) http.Handler {
	if basePath == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, basePath) {
			http.NotFound(w, r)
			return
		}
		if len(r.URL.Path) > len(basePath) && r.URL.Path[len(basePath)] != '/' {
			http.NotFound(w, r)
			return
		}
		trimmed := strings.TrimPrefix(r.URL.Path, basePath)
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
		if r.URL.RawPath != "" {
			rawTrimmed := strings.TrimPrefix(r.URL.RawPath, basePath)
			if rawTrimmed == "" {
				rawTrimmed = "/"
			}
			r.URL.RawPath = rawTrimmed
		}
		handler.ServeHTTP(w, r)
	})
}

func normaliseBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}
