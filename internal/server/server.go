// Package server exposes the latest pipeline snapshot over HTTP. Read-only:
// every endpoint serves from the in-memory snapshot, nothing is persisted.
package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rgsec/threatdeck/internal/intel"
	"github.com/rgsec/threatdeck/internal/logging"
	"github.com/rgsec/threatdeck/internal/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultIOCLimit = 50

// Holder keeps the latest completed snapshot. Writers swap, readers copy
// the pointer; published snapshots are never mutated.
type Holder struct {
	mu   sync.RWMutex
	snap *pipeline.Snapshot
}

// Set publishes a new snapshot.
func (h *Holder) Set(s *pipeline.Snapshot) {
	h.mu.Lock()
	h.snap = s
	h.mu.Unlock()
}

// Get returns the current snapshot, nil before the first run completes.
func (h *Holder) Get() *pipeline.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Server is the HTTP API over a snapshot holder.
type Server struct {
	addr   string
	holder *Holder
	router *mux.Router
	srv    *http.Server
}

// New creates the server and registers its routes.
func New(addr string, holder *Holder) *Server {
	s := &Server{addr: addr, holder: holder, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(corsMiddleware)
	s.router.HandleFunc("/api/iocs", s.handleIOCs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/items", s.handleItems).Methods(http.MethodGet)
	s.router.HandleFunc("/api/brief", s.handleBrief).Methods(http.MethodGet)
	s.router.HandleFunc("/api/techniques", s.handleTechniques).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Router returns the configured handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           otelhttp.NewHandler(s.router, "threatdeck-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("server shutdown", "error", err)
		}
	}()

	logging.Info("api listening", "addr", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// iocEntry is the wire shape of one /api/iocs row.
type iocEntry struct {
	Title    string       `json:"title"`
	Source   string       `json:"source"`
	GeoHints []string     `json:"geo_hints"`
	IOCs     intel.IOCSet `json:"iocs"`
}

// handleIOCs serves indicator-bearing items from the latest snapshot.
func (s *Server) handleIOCs(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Get()
	if snap == nil {
		writeJSON(w, map[string]any{"items": []iocEntry{}})
		return
	}

	limit := defaultIOCLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	// The limit sizes an allocation; never trust it past the data we hold.
	if limit > len(snap.Items) {
		limit = len(snap.Items)
	}

	entries := make([]iocEntry, 0, limit)
	for _, it := range snap.Items {
		if it.IOCs.Empty() {
			continue
		}
		entries = append(entries, iocEntry{
			Title:    it.Title,
			Source:   it.Source,
			GeoHints: it.GeoHints,
			IOCs:     it.IOCs,
		})
		if len(entries) >= limit {
			break
		}
	}
	writeJSON(w, map[string]any{"items": entries})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Get()
	if snap == nil {
		writeJSON(w, map[string]any{"items": []intel.Item{}})
		return
	}
	writeJSON(w, map[string]any{
		"run_id":       snap.RunID,
		"generated_at": snap.GeneratedAt,
		"items":        snap.Items,
	})
}

func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Get()
	if snap == nil {
		writeJSON(w, map[string]any{"briefs": []intel.RankedBrief{}})
		return
	}
	writeJSON(w, map[string]any{
		"run_id":       snap.RunID,
		"generated_at": snap.GeneratedAt,
		"outcome":      snap.Outcome,
		"briefs":       snap.Briefs,
	})
}

func (s *Server) handleTechniques(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Get()
	if snap == nil {
		writeJSON(w, map[string]any{"techniques": []intel.TechniqueMapping{}})
		return
	}
	writeJSON(w, map[string]any{
		"run_id":     snap.RunID,
		"techniques": snap.Mappings,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.holder.Get() == nil {
		status["status"] = "warming"
	}
	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("response encode failed", "error", err)
	}
}

// corsMiddleware lets browser dashboards on other origins read the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
