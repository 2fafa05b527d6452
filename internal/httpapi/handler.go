package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"noxmap/core-go/internal/atlas"
	"noxmap/core-go/internal/db"
	"noxmap/core-go/internal/metrics"
)

type Handler struct {
	log     zerolog.Logger
	pool    *db.Pool
	atlas   *atlas.Atlas
	hub     *Hub
	metrics *metrics.Metrics
}

func NewHandler(log zerolog.Logger, pool *db.Pool, a *atlas.Atlas, hub *Hub, m *metrics.Metrics) *Handler {
	return &Handler{log: log, pool: pool, atlas: a, hub: hub, metrics: m}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			// Long-lived; kept out of the request timeout.
			r.Get("/events", h.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(15 * time.Second))

				r.Get("/atlas", h.handleGetAtlas)

				r.Route("/submaps", func(r chi.Router) {
					r.Get("/", h.handleListSubMaps)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.handleGetSubMap)
						r.Get("/cell", h.handleCellToPoint)
					})
				})

				r.Get("/markers", h.handleListMarkers)

				r.Route("/view", func(r chi.Router) {
					r.Get("/", h.handleGetView)
					r.Put("/zoom", h.handleSetZoom)
					r.Route("/settings/{name}", func(r chi.Router) {
						r.Put("/", h.handleSetSetting)
						r.Post("/toggle", h.handleToggleSetting)
					})
				})
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		dur := time.Since(start)
		h.metrics.ObserveHTTPRequest(r.Method, route, status, dur)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", dur.Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) ensureAtlas(w http.ResponseWriter) bool {
	if h.atlas == nil {
		h.writeError(w, http.StatusServiceUnavailable, "atlas_unavailable", "map not loaded", nil)
		return false
	}
	return true
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAtlas(w) {
		return
	}

	// The database is optional; when configured it must answer.
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.writeError(w, http.StatusServiceUnavailable, "events_unavailable", "event stream not configured", nil)
		return
	}
	h.hub.ServeWS(w, r)
}
