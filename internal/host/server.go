package host

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/boozedog/loginflow/internal/metrics"
	"github.com/boozedog/loginflow/internal/store"
)

const (
	healthCheckTimeout = 5 * time.Second
	defaultActivity    = 50
	maxActivity        = 500
)

type Server struct {
	mux    *http.ServeMux
	hub    *Hub
	store  *store.Store
	log    *slog.Logger
	logBuf *LogBuffer
}

// NewServer wires the bridge endpoints. st may be nil when no database is
// configured; /api/activity then reports 503.
func NewServer(hub *Hub, st *store.Store, logBuf *LogBuffer, log *slog.Logger) *Server {
	srv := &Server{
		mux:    http.NewServeMux(),
		hub:    hub,
		store:  st,
		log:    log,
		logBuf: logBuf,
	}
	srv.mux.HandleFunc("GET /loginflow.js", srv.handleScript)
	srv.mux.Handle("GET /ws", hub)
	srv.mux.HandleFunc("GET /api/health", srv.handleHealth)
	srv.mux.HandleFunc("GET /api/log", srv.adminOnly(srv.handleLog))
	srv.mux.HandleFunc("GET /api/activity", srv.adminOnly(srv.handleActivity))
	srv.mux.Handle("GET /metrics", metrics.Handler())
	srv.mux.HandleFunc("GET /", srv.handlePreview)
	return srv
}

// Handler returns the http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// adminOnly gates operator endpoints. With http.admin_token set a matching
// bearer token is required; otherwise only loopback clients are served.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.hub.Config().HTTP.AdminToken
		if token == "" {
			if !isLoopback(r.RemoteAddr) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next(w, r)
			return
		}

		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="loginflow"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip, err := netip.ParseAddr(host)
	return err == nil && ip.IsLoopback()
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	// Sites embed the script from their own origin.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if _, err := io.WriteString(w, renderScript(s.hub.Config())); err != nil {
		s.log.Debug("write script", "error", err)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	siteID := s.hub.Config().Site.ID
	if siteID == "" {
		siteID = "preview"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Preview(newPreviewPage(r.URL.Path, siteID, s.hub)).Render(r.Context(), w); err != nil {
		s.log.Error("render preview", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, message := "ok", ""
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.store.DB().PingContext(ctx); err != nil {
			status, message = "error", err.Error()
		}
	}
	if status != "ok" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	s.writeJSON(w, map[string]any{
		"status":  status,
		"message": message,
		"tabs":    s.hub.Len(),
	})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.logBuf.Entries())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "activity log disabled", http.StatusServiceUnavailable)
		return
	}
	limit := defaultActivity
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxActivity)
	}
	rows, err := s.store.RecentActivity(r.Context(), r.URL.Query().Get("tab"), limit)
	if err != nil {
		s.log.Error("query activity failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, rows)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}
