// Package api provides the HTTP server for the shuffle engine: a small JSON
// API for commands and snapshots, plus live SSE and WebSocket feeds.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shuffle-empire/shuffle/internal/domain"
	"github.com/shuffle-empire/shuffle/internal/infra/catalog"
	"github.com/shuffle-empire/shuffle/internal/infra/observability"
)

// Engine is the command surface the server drives. *game.Engine satisfies it.
type Engine interface {
	PerformAction() float64
	Purchase(key string) error
	ResetAll()
	Snapshot() domain.Snapshot
	TakeOfflineSummary() *domain.OfflineProgressSummary
	Catalog() *catalog.Catalog
}

// History reads the persisted journal. Optional.
type History interface {
	Recent(ctx context.Context, limit int) ([]domain.LedgerEntry, error)
	OfflineReports(ctx context.Context, limit int) ([]domain.OfflineProgressSummary, error)
	SpentByItem(ctx context.Context) (map[string]float64, error)
}

// Server is the shuffle HTTP API server.
type Server struct {
	engine         Engine
	history        History
	hub            *Hub
	log            *slog.Logger
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(engine Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, log: log.With("component", "api")}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHistory enables the journal endpoints.
func (s *Server) SetHistory(h History) { s.history = h }

// SetHub enables /api/live and /ws.
func (s *Server) SetHub(h *Hub) { s.hub = h }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Long-lived streams are mounted outside the timeout group.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/catalog", s.handleCatalog)
			r.Post("/action", s.handleAction)
			r.Post("/purchase/{key}", s.handlePurchase)
			r.Post("/reset", s.handleReset)
			r.Get("/offline", s.handleOffline)

			if s.history != nil {
				r.Get("/journal", s.handleJournal)
				r.Get("/journal/spent", s.handleSpent)
				r.Get("/offline/history", s.handleOfflineHistory)
			}
		})

		if s.hub != nil {
			r.Get("/live", s.hub.HandleSSE)
		}
	})

	if s.hub != nil {
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			s.hub.ServeWS(w, r, s.dispatch)
		})
	}

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Handlers ───────────────────────────────────────────────────────────────

// GET /api/snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// catalogItem is the wire form of a catalog entry.
type catalogItem struct {
	domain.ItemDef
	Group string `json:"group"`
	Kind  string `json:"kind"`
}

// GET /api/catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	defs := s.engine.Catalog().Items()
	out := make([]catalogItem, len(defs))
	for i, d := range defs {
		out[i] = catalogItem{ItemDef: d, Group: d.Group.String(), Kind: d.Kind.String()}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": out,
	})
}

type actionRequest struct {
	Count int `json:"count"`
}

// maxActionsPerRequest bounds a single batched action request.
const maxActionsPerRequest = 1000

// POST /api/action
// Body is optional: {"count": n} performs n actions.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	req := actionRequest{Count: 1}
	// An empty body, chunked or not, means one action.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Count < 1 || req.Count > maxActionsPerRequest {
		writeError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(maxActionsPerRequest))
		return
	}

	var gained float64
	for i := 0; i < req.Count; i++ {
		gained += s.engine.PerformAction()
	}
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gained":   gained,
		"snapshot": snap,
	})
}

// POST /api/purchase/{key}
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.engine.Purchase(key); err != nil {
		writeError(w, purchaseStatus(err), err.Error())
		return
	}
	snap := s.engine.Snapshot()
	if s.hub != nil {
		s.hub.Publish("purchase", snap)
	}
	writeJSON(w, http.StatusOK, snap)
}

// purchaseStatus maps purchase failures to HTTP status codes.
func purchaseStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownItem):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMaxLevelReached):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// POST /api/reset
// Body must be {"confirm": true}.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Confirm {
		writeError(w, http.StatusBadRequest, `reset requires {"confirm": true}`)
		return
	}
	s.engine.ResetAll()
	snap := s.engine.Snapshot()
	if s.hub != nil {
		s.hub.Publish("reset", snap)
	}
	s.log.Warn("reset via api", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, snap)
}

// GET /api/offline
// Returns the pending offline summary once; 204 when there is none.
func (s *Server) handleOffline(w http.ResponseWriter, r *http.Request) {
	summary := s.engine.TakeOfflineSummary()
	if summary == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GET /api/journal?limit=N
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.Recent(r.Context(), queryLimit(r))
	if err != nil {
		s.log.Error("read journal", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
	})
}

// GET /api/journal/spent
func (s *Server) handleSpent(w http.ResponseWriter, r *http.Request) {
	spent, err := s.history.SpentByItem(r.Context())
	if err != nil {
		s.log.Error("read spending", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read spending")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spent": spent,
	})
}

// GET /api/offline/history?limit=N
func (s *Server) handleOfflineHistory(w http.ResponseWriter, r *http.Request) {
	reports, err := s.history.OfflineReports(r.Context(), queryLimit(r))
	if err != nil {
		s.log.Error("read offline reports", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read offline reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
	})
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 50
	}
	if n > 500 {
		return 500
	}
	return n
}

// ─── WebSocket Commands ─────────────────────────────────────────────────────

// dispatch executes one WebSocket command against the engine.
func (s *Server) dispatch(_ context.Context, cmd Command) (string, interface{}) {
	switch cmd.Type {
	case "action":
		gained := s.engine.PerformAction()
		return "action", map[string]interface{}{
			"gained":   gained,
			"snapshot": s.engine.Snapshot(),
		}
	case "purchase":
		if err := s.engine.Purchase(cmd.Key); err != nil {
			return "error", errorBody(err.Error())
		}
		snap := s.engine.Snapshot()
		s.hub.Publish("purchase", snap)
		return "snapshot", snap
	case "snapshot":
		return "snapshot", s.engine.Snapshot()
	case "reset":
		if !cmd.Confirm {
			return "error", errorBody("reset requires confirm")
		}
		s.engine.ResetAll()
		snap := s.engine.Snapshot()
		s.hub.Publish("reset", snap)
		return "snapshot", snap
	default:
		return "error", errorBody("unknown command " + strconv.Quote(cmd.Type))
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorBody(msg string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody(msg))
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware counts requests by chi route pattern, which keeps item
// keys out of the label set.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
