package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flowgate/flowgate/core/flow"
	"github.com/flowgate/flowgate/core/infra/bus"
	"github.com/flowgate/flowgate/core/infra/config"
	"github.com/flowgate/flowgate/core/infra/kv"
	"github.com/flowgate/flowgate/core/infra/logging"
	"github.com/flowgate/flowgate/core/infra/metrics"
	"github.com/flowgate/flowgate/core/oauth"
	"github.com/flowgate/flowgate/core/routing"
)

const component = "gateway"

type ctxKey int

const requestIDKey ctxKey = iota

func withRequestID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestIDKey, id))
}

// RequestIDFromContext returns the correlation id the guard pinned on the
// request, or empty.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Server is the HTTP front of the gateway.
type Server struct {
	cfg        *config.Config
	dispatcher *flow.Dispatcher
	rules      *routing.Store
	bridge     *oauth.Bridge
	store      kv.Store
	guard      *Guard
	metrics    metrics.GatewayMetrics
	bus        bus.Publisher
	stream     *stream
	started    time.Time
}

func NewServer(cfg *config.Config, dispatcher *flow.Dispatcher, rules *routing.Store, bridge *oauth.Bridge, store kv.Store, m metrics.GatewayMetrics, pub bus.Publisher) *Server {
	if m == nil {
		m = metrics.Noop{}
	}
	if pub == nil {
		pub = bus.Noop{}
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		rules:      rules,
		bridge:     bridge,
		store:      store,
		guard:      NewGuard(cfg.BaseURL, cfg.AgentTag),
		metrics:    m,
		bus:        pub,
		stream:     newStream(),
		started:    time.Now().UTC(),
	}
}

// Routes builds the full request mux. Every route passes through the guard,
// so every response carries the correlation id and hop-count headers and
// looped or over-deep requests never reach a handler. The OAuth pages use
// the browser variant that skips the Referer loop signal.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	guarded := func(route string, h http.HandlerFunc) http.Handler {
		return s.guard.middleware(s.instrumented(route, h))
	}
	page := func(route string, h http.HandlerFunc) http.Handler {
		return s.guard.pageMiddleware(s.instrumented(route, h))
	}

	mux.Handle("POST /{$}", guarded("/", s.handleRoute))
	mux.Handle("POST /api/route-workflow", guarded("/api/route-workflow", s.handleRoute))

	mux.Handle("GET /api/intents", guarded("/api/intents", s.handleIntents))
	mux.Handle("GET /api/intents/{category}", guarded("/api/intents/category", s.handleIntentsByCategory))
	mux.Handle("GET /api/status", guarded("/api/status", s.handleStatus))
	mux.Handle("POST /api/cache/clear", guarded("/api/cache/clear", s.handleCacheClear))

	mux.Handle("GET /oauth/{provider}", page("/oauth/authorize", s.bridge.HandleAuthorize))
	mux.Handle("GET /oauth/{provider}/callback", page("/oauth/callback", s.bridge.HandleCallback))

	// Not instrumented: the upgrade needs the raw ResponseWriter's Hijacker.
	// The guard is fine here, it never wraps the writer.
	mux.Handle("GET /ws/dispatches", s.guard.middleware(http.HandlerFunc(s.stream.serveWS)))
	mux.Handle("GET /health", s.guard.middleware(http.HandlerFunc(s.handleHealth)))

	return mux
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(component, "http server listening", "addr", s.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.stream.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrumented records request duration and status per route.
func (s *Server) instrumented(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.ObserveRequest(r.Method, route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(component, "encode response", "error", err)
	}
}

type routeRequest struct {
	Prompt  string         `json:"prompt"`
	Input   string         `json:"input"`
	Context map[string]any `json:"context"`
}

func (req *routeRequest) text() string {
	if strings.TrimSpace(req.Prompt) != "" {
		return req.Prompt
	}
	return req.Input
}

// handleRoute resolves user input to an intent and runs the bound workflow.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   flow.ErrCodeInvalidInput,
			"message": "request body must be a JSON object with a prompt field",
		})
		return
	}

	id := RequestIDFromContext(r.Context())
	resp := s.dispatcher.HandleUserInput(r.Context(), req.text(), req.Context)
	s.publishDispatch(id, req.text(), resp)

	writeJSON(w, statusFor(resp), resp)
}

// statusFor maps dispatch outcomes to HTTP statuses. Lookup failures (bad
// input, no matching intent, missing table) are transport errors; failures
// inside a resolved workflow stay 200 with success=false so callers read the
// structured result instead of retrying the whole dispatch.
func statusFor(resp flow.Response) int {
	switch resp.Error {
	case flow.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case flow.ErrCodeNoIntentMatched:
		return http.StatusNotFound
	case flow.ErrCodeConfigNotFound:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (s *Server) publishDispatch(requestID, input string, resp flow.Response) {
	ev := &bus.DispatchEvent{
		RequestID:    requestID,
		Input:        input,
		Intent:       resp.Intent,
		Score:        resp.Score,
		IsFallback:   resp.IsFallback,
		Success:      resp.Success,
		WorkflowPath: resp.WorkflowPath,
		Error:        resp.Error,
		Timestamp:    resp.Timestamp,
	}
	if err := s.bus.PublishDispatch(ev); err != nil {
		logging.Warn(component, "dispatch event publish failed", "error", err)
	}
	s.stream.broadcast(ev)
}

func (s *Server) handleIntents(w http.ResponseWriter, r *http.Request) {
	intents, err := s.rules.AvailableIntents()
	if err != nil {
		writeRulesError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "intents": intents})
}

func (s *Server) handleIntentsByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	intents, err := s.rules.IntentsByCategory(category)
	if err != nil {
		writeRulesError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"category": category,
		"intents":  intents,
	})
}

func writeRulesError(w http.ResponseWriter, err error) {
	if errors.Is(err, routing.ErrConfigNotFound) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   flow.ErrCodeConfigNotFound,
			"message": "routing rules are not available",
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   "internal_error",
		"message": err.Error(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	kvOK := true
	if err := s.store.Ping(r.Context()); err != nil {
		kvOK = false
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"uptime_sec": int(time.Since(s.started).Seconds()),
		"rules":      s.rules.Status(),
		"workflows":  s.dispatcher.Paths(),
		"providers":  s.bridge.Providers(),
		"kv_ok":      kvOK,
		"stream":     s.stream.clientCount(),
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.rules.ClearCache()
	logging.Info(component, "routing rules cache cleared", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "routing rules cache cleared",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
