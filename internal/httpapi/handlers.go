package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hamed0406/upmon/internal/aggregate"
	"github.com/hamed0406/upmon/internal/domain"
)

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.Logger.Error("api_"+op+"_failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Status.ListStatus(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		s.internalError(w, r, "status", err)
		return
	}
	if rows == nil {
		rows = []domain.MonitorStatus{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDays(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be an integer")
		return
	}
	sum, err := s.Agg.Hourly(r.Context(), aggregate.Query{ProjectID: r.URL.Query().Get("project_id"), Days: days})
	if err != nil {
		s.internalError(w, r, "daily_summary", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDays(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "days must be an integer")
		return
	}
	rows, err := s.Agg.Daily(r.Context(), aggregate.Query{ProjectID: r.URL.Query().Get("project_id"), Days: days})
	if err != nil {
		s.internalError(w, r, "uptime", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleLive serves the in-memory cache; it never touches storage.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Cache.Snapshot(r.URL.Query().Get("project_id")))
}
