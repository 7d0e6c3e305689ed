package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chatsounds/soundboard-server/internal/config"
	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/service"
)

type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Full)
	r.Get("/overview", h.Overview)
	r.Get("/daily", h.Daily)
	r.Get("/hourly", h.Hourly)
	r.Get("/popular", h.Popular)
	r.Get("/users", h.ActiveUsers)
	r.Get("/recent", h.Recent)
	r.Get("/sounds/{id}", h.Sound)
	r.Get("/reconcile", h.Reconcile)

	return r
}

func (h *AnalyticsHandler) Full(w http.ResponseWriter, r *http.Request) {
	out, err := h.analytics.FullAnalytics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.analytics.Overview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Daily serves GET /daily?days=N. N defaults to config.DefaultAnalyticsDays
// and must be between 1 and config.MaxAnalyticsDays; anything else is a 400.
func (h *AnalyticsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", config.DefaultAnalyticsDays)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.analytics.DailyStats(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) Hourly(w http.ResponseWriter, r *http.Request) {
	out, err := h.analytics.HourlyStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", config.DefaultRankingLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.analytics.PopularSounds(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) ActiveUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", config.DefaultRankingLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.analytics.ActiveUsers(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", config.DefaultActivityLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.analytics.RecentActivity(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Sound takes the same days bound as Daily.
func (h *AnalyticsHandler) Sound(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", config.DefaultAnalyticsDays)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.analytics.SoundAnalytics(r.Context(), chi.URLParam(r, "id"), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AnalyticsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	drift, err := h.analytics.Reconcile(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consistent": len(drift) == 0,
		"drift":      drift,
	})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput(name, "must be an integer")
	}
	return n, nil
}
