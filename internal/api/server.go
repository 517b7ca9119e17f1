package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bridgemod/internal/bridge"
	"bridgemod/internal/css"
	"bridgemod/internal/dispatch"
	"bridgemod/internal/lifecycle"
	"bridgemod/internal/plugins/messagelog"

	"go.uber.org/zap"
)

// MessageSource is the message history exposed at /api/messages.
type MessageSource interface {
	Recent(n int) []messagelog.Entry
}

// MuteLock is the lock exposed at /api/mutelock.
type MuteLock interface {
	Lock(releaseAfter time.Duration)
	Unlock()
	Locked() bool
	Vetoed() int
}

// Deps are the components the API reports on and controls.
type Deps struct {
	Lifecycle *lifecycle.Manager
	Registry  *dispatch.Registry
	Slots     *bridge.Slots
	Styles    *css.Store
	Messages  MessageSource
	MuteLock  MuteLock
}

// Server provides HTTP API endpoints for inspecting and controlling plugins
type Server struct {
	deps      Deps
	logger    *zap.Logger
	server    *http.Server
	endpoints []Endpoint
}

// NewServer creates a new API server
func NewServer(deps Deps, logger *zap.Logger, port int) *Server {
	s := &Server{
		deps:   deps,
		logger: logger.Named("api"),
	}

	mux := http.NewServeMux()
	s.route(mux, "GET", "/", "This sitemap - lists all available API endpoints", s.handleSitemap)
	s.route(mux, "GET", "/health", "Health check endpoint - returns {\"status\": \"ok\"}", s.handleHealth)
	s.route(mux, "GET", "/api/plugins", "List plugins with state, enablement and settings", s.handleListPlugins)
	s.route(mux, "POST", "/api/plugins/{name}/start", "Start a registered plugin", s.handleStartPlugin)
	s.route(mux, "POST", "/api/plugins/{name}/stop", "Stop an active plugin", s.handleStopPlugin)
	s.route(mux, "POST", "/api/reset", "Restart every active plugin", s.handleReset)
	s.route(mux, "GET", "/api/handlers", "List installed handlers by event key", s.handleHandlers)
	s.route(mux, "GET", "/api/bridges", "Show whether each bridge slot is filled and intercepted", s.handleBridges)
	s.route(mux, "GET", "/styles.css", "Combined stylesheet of active plugins", s.handleStyles)
	if deps.Messages != nil {
		s.route(mux, "GET", "/api/messages", "Recent messages (?limit=N)", s.handleMessages)
	}
	if deps.MuteLock != nil {
		s.route(mux, "GET", "/api/mutelock", "Mute lock status", s.handleMuteLockStatus)
		s.route(mux, "POST", "/api/mutelock/lock", "Lock mute on (?for=DURATION releases it later)", s.handleMuteLock)
		s.route(mux, "POST", "/api/mutelock/unlock", "Release the mute lock", s.handleMuteUnlock)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) route(mux *http.ServeMux, method, path, description string, h http.HandlerFunc) {
	pattern := method + " " + path
	if path == "/" {
		pattern = path
	}
	mux.HandleFunc(pattern, h)
	s.endpoints = append(s.endpoints, Endpoint{Path: path, Method: method, Description: description})
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"active": len(s.deps.Lifecycle.Active()),
	})
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Lifecycle.Plugins())
}

func (s *Server) pluginStatus(name string) (lifecycle.Status, bool) {
	for _, st := range s.deps.Lifecycle.Plugins() {
		if st.Name == name {
			return st, true
		}
	}
	return lifecycle.Status{}, false
}

func (s *Server) handleStartPlugin(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.deps.Lifecycle.Start)
}

func (s *Server) handleStopPlugin(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.deps.Lifecycle.Stop)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	name := r.PathValue("name")

	if err := op(r.Context(), name); err != nil {
		if errors.Is(err, lifecycle.ErrPluginNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	st, _ := s.pluginStatus(name)
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Lifecycle.Reset(r.Context())
	status := http.StatusOK
	if len(result.Failed) > 0 {
		status = http.StatusInternalServerError
	}
	if err != nil {
		s.logger.Warn("Reset finished with errors", zap.Error(err))
	}
	s.writeJSON(w, status, result)
}

func (s *Server) handleHandlers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Registry.Entries())
}

func (s *Server) handleBridges(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Slots.Status())
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	fmt.Fprint(w, s.deps.Styles.Render())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.deps.Messages.Recent(limit))
}

// MuteLockResponse is the body returned by the mute lock endpoints
type MuteLockResponse struct {
	Locked bool `json:"locked"`
	Vetoed int  `json:"vetoed"`
}

func (s *Server) muteLockStatus(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, MuteLockResponse{
		Locked: s.deps.MuteLock.Locked(),
		Vetoed: s.deps.MuteLock.Vetoed(),
	})
}

func (s *Server) handleMuteLockStatus(w http.ResponseWriter, r *http.Request) {
	s.muteLockStatus(w)
}

func (s *Server) handleMuteLock(w http.ResponseWriter, r *http.Request) {
	var releaseAfter time.Duration
	if v := r.URL.Query().Get("for"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid duration %q", v))
			return
		}
		releaseAfter = d
	}
	s.deps.MuteLock.Lock(releaseAfter)
	s.logger.Info("Mute locked via API", zap.Duration("release_after", releaseAfter))
	s.muteLockStatus(w)
}

func (s *Server) handleMuteUnlock(w http.ResponseWriter, r *http.Request) {
	s.deps.MuteLock.Unlock()
	s.logger.Info("Mute unlocked via API")
	s.muteLockStatus(w)
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// handleSitemap returns a list of all available API endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	// Only handle requests to the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		s.writeJSON(w, http.StatusOK, s.endpoints)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Bridge Plugin API\n")
	fmt.Fprintf(w, "=================\n\n")
	fmt.Fprintf(w, "Available endpoints:\n\n")
	for _, ep := range s.endpoints {
		fmt.Fprintf(w, "  %-6s %-28s %s\n", ep.Method, ep.Path, ep.Description)
	}
	fmt.Fprintf(w, "\nExamples:\n\n")
	fmt.Fprintf(w, "  List plugins:\n")
	fmt.Fprintf(w, "    curl http://localhost%s/api/plugins | jq\n\n", s.server.Addr)
	fmt.Fprintf(w, "  Stop a plugin:\n")
	fmt.Fprintf(w, "    curl -X POST http://localhost%s/api/plugins/theme/stop\n\n", s.server.Addr)

	s.logger.Debug("Sitemap request served", zap.String("remote_addr", r.RemoteAddr))
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
