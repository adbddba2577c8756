package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/aggregate"
	"github.com/hamed0406/upmon/internal/cache"
	"github.com/hamed0406/upmon/internal/httpapi/middleware"
	"github.com/hamed0406/upmon/internal/repo"
)

type Options struct {
	APIKeys        []string
	AllowedOrigins []string // empty allows any origin
	PublicRPM      int
	PublicBurst    int
}

type Server struct {
	Logger *zap.Logger
	Status repo.StatusStore
	Agg    *aggregate.Engine
	Cache  *cache.Cache
	Opts   Options
}

func NewServer(l *zap.Logger, st repo.StatusStore, agg *aggregate.Engine, c *cache.Cache, opts Options) *Server {
	return &Server{Logger: l, Status: st, Agg: agg, Cache: c, Opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLog(s.Logger))
	r.Use(s.corsHandler())
	r.Use(middleware.RateLimit(s.Opts.PublicRPM, s.Opts.PublicBurst))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(s.Opts.APIKeys))
		r.Get("/status", s.handleStatus)
		r.Get("/daily-summary", s.handleDailySummary)
		r.Get("/uptime", s.handleUptime)
		r.Get("/live", s.handleLive)
	})

	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	if len(s.Opts.AllowedOrigins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: s.Opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         int((10 * time.Minute).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseDays reads ?days=; absent means the default window.
func parseDays(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return aggregate.DefaultDays, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	if n == 0 {
		n = 1
	}
	return aggregate.ClampDays(n), true
}
