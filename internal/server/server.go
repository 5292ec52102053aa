package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/kalshi-rankings/internal/auth"
	"github.com/rickgao/kalshi-rankings/internal/cache"
	"github.com/rickgao/kalshi-rankings/internal/metrics"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"github.com/rickgao/kalshi-rankings/internal/pipeline"
	"github.com/rickgao/kalshi-rankings/internal/pool"
	"github.com/rickgao/kalshi-rankings/internal/store"
)

// Store is the read side of store.Store.
type Store interface {
	Ping(ctx context.Context) error
	LoadTeams(ctx context.Context) ([]model.Team, error)
	Rankings(ctx context.Context, eventTicker string) ([]model.Ranking, error)
	LatestQuotes(ctx context.Context, eventTicker string) (map[string]model.Quote, error)
	History(ctx context.Context, q store.HistoryQuery) ([]model.HistoryPoint, error)
}

// SnapshotSource serves the current-rankings view. *cache.Cache[pipeline.Snapshot] implements it.
type SnapshotSource interface {
	Get(ctx context.Context, eventTicker string) (cache.Result[pipeline.Snapshot], error)
	// Peek returns the stored view without fetching, or cache.ErrNoEntry.
	Peek(ctx context.Context, eventTicker string) (cache.Result[pipeline.Snapshot], error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes m on /metrics and reports websocket clients to it.
func WithMetrics(m *metrics.Metrics, path string) Option {
	return func(s *Server) {
		s.metrics = m
		if path != "" {
			s.metricsPath = path
		}
	}
}

// WithToken requires token on /api/ and /ws/. Only its digest is kept.
func WithToken(token string) Option {
	return func(s *Server) {
		if token != "" {
			d := auth.HashToken(token)
			s.token = &d
		}
	}
}

// WithSnapshots enables /api/rankings/current and /ws/rankings.
func WithSnapshots(src SnapshotSource) Option {
	return func(s *Server) {
		s.snapshots = src
	}
}

// WithPools enables the prediction pool endpoints under /api/teams/.
func WithPools(svc *pool.Service) Option {
	return func(s *Server) {
		s.pools = svc
	}
}

// WithClock sets the clock used for history cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server serves the read API.
type Server struct {
	store        Store
	defaultEvent string
	snapshots    SnapshotSource
	pools        *pool.Service
	metrics      *metrics.Metrics
	metricsPath  string
	token        *auth.TokenDigest
	logger       *slog.Logger
	now          func() time.Time
	hub          *Hub
	mux          *http.ServeMux
}

// New creates a Server. defaultEvent is used when a request omits event_ticker.
func New(st Store, defaultEvent string, opts ...Option) *Server {
	s := &Server{
		store:        st,
		defaultEvent: strings.ToUpper(defaultEvent),
		metricsPath:  "/metrics",
		logger:       slog.Default(),
		now:          time.Now,
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.logger, s.metrics.SetWSClients)
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// PublishSnapshot pushes a refreshed view to websocket clients.
// Its signature matches cache.Cache.OnRefresh.
func (s *Server) PublishSnapshot(_ string, r cache.Result[pipeline.Snapshot]) {
	msg, err := encodeCurrent(r)
	if err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	s.hub.Broadcast(msg)
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) routes() {
	s.mux.Handle("GET /api/metrics/rankings", s.protect(s.handleRankings))
	s.mux.Handle("GET /api/metrics/history", s.protect(s.handleHistory))
	s.mux.Handle("GET /api/metrics/teams/{team_name}", s.protect(s.handleTeam))
	s.mux.Handle("GET /api/rankings/current", s.protect(s.handleCurrent))
	s.mux.Handle("GET /ws/rankings", s.protect(s.handleWS))
	s.mux.Handle("GET /api/teams", s.protect(s.handleReferenceTeams))
	if s.pools != nil {
		// Pools carry their own creator and member tokens.
		s.mux.HandleFunc("POST /api/teams", s.handleCreatePool)
		s.mux.HandleFunc("GET /api/teams/{code}", s.handleGetPool)
		s.mux.HandleFunc("POST /api/teams/{code}/join", s.handleJoinPool)
		s.mux.HandleFunc("PUT /api/teams/{code}/members/{display_name}", s.handleUpdateBracket)
		s.mux.HandleFunc("DELETE /api/teams/{code}/members/{display_name}", s.handleLeavePool)
		s.mux.HandleFunc("DELETE /api/teams/{code}", s.handleDeletePool)
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET "+s.metricsPath, s.metrics.Handler())
}

// protect enforces the bearer token when one is configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.token == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.VerifyBearer(r, *s.token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="kalshi-rankings"`)
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		h(w, r)
	})
}

func (s *Server) eventTicker(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("event_ticker")); t != "" {
		return strings.ToUpper(t)
	}
	return s.defaultEvent
}
