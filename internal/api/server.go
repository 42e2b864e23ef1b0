// Package api serves a read-only JSON view of wagers and stats, plus health
// and Prometheus endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"wagerbot/internal/metrics"
	"wagerbot/internal/wager"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	manager *wager.Manager
	db      Pinger
	log     *zap.Logger
}

func NewServer(m *wager.Manager, db Pinger, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{manager: m, db: db, log: log.Named("api")}
}

// Router wires every route onto a chi mux.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware(routePattern))

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/wagers", s.ListWagers)
		r.Get("/wagers/{wagerID}", s.GetWager)
		r.Get("/users/{userID}/stats", s.GetStats)
		r.Get("/users/{userID}/history", s.GetHistory)
		r.Get("/leaderboard", s.GetLeaderboard)
	})
	return r
}

// Start serves until ctx is cancelled, then drains for up to five seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting API server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListWagers handles GET /api/v1/wagers?limit=N, newest open wagers first.
func (s *Server) ListWagers(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	list, err := s.manager.ListOpen(r.Context(), limit)
	if err != nil {
		s.internal(w, "list wagers", err)
		return
	}
	if list == nil {
		list = []wager.Wager{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetWager handles GET /api/v1/wagers/{wagerID}.
func (s *Server) GetWager(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "wagerID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, "invalid wager id", http.StatusBadRequest)
		return
	}
	wg, err := s.manager.Get(r.Context(), id)
	if errors.Is(err, wager.ErrNotFound) {
		writeError(w, "wager not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internal(w, "get wager", err)
		return
	}
	writeJSON(w, http.StatusOK, wg)
}

type statsResponse struct {
	*wager.UserStats
	WinRate string `json:"winRate"`
}

// GetStats handles GET /api/v1/users/{userID}/stats. Unknown users get zeros.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.manager.Stats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.internal(w, "get stats", err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{UserStats: st, WinRate: st.WinRate().StringFixed(1)})
}

// GetHistory handles GET /api/v1/users/{userID}/history?limit=N.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	list, err := s.manager.History(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.internal(w, "get history", err)
		return
	}
	if list == nil {
		list = []wager.Wager{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetLeaderboard handles GET /api/v1/leaderboard?limit=N.
func (s *Server) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	list, err := s.manager.Leaderboard(r.Context(), limit)
	if err != nil {
		s.internal(w, "leaderboard", err)
		return
	}
	if list == nil {
		list = []wager.UserStats{}
	}
	writeJSON(w, http.StatusOK, list)
}

const maxLimit = 100

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxLimit {
		writeError(w, "limit must be between 1 and 100", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func (s *Server) internal(w http.ResponseWriter, op string, err error) {
	s.log.Error("request failed", zap.String("operation", op), zap.Error(err))
	writeError(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
