package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/audit"
	"github.com/chatsounds/soundboard-server/internal/middleware"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/service"
	"github.com/chatsounds/soundboard-server/internal/util"
)

type AuthHandler struct {
	auth         *service.AuthService
	isProduction bool
	// redirectTo is where the browser lands after the OAuth callback.
	redirectTo string
}

func NewAuthHandler(auth *service.AuthService, isProduction bool, redirectTo string) *AuthHandler {
	if redirectTo == "" {
		redirectTo = "/"
	}
	return &AuthHandler{auth: auth, isProduction: isProduction, redirectTo: redirectTo}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/twitch", h.Login)
	r.Get("/twitch/callback", h.Callback)
	r.Get("/status", h.Status)
	r.Post("/logout", h.Logout)
	r.Post("/refresh", h.Refresh)

	return r
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, authURL, err := h.auth.BeginLogin()
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.SetStateCookie(w, state, h.isProduction)
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	middleware.ClearStateCookie(w, h.isProduction)

	if providerErr := q.Get("error"); providerErr != "" {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"reason": providerErr},
		})
		http.Redirect(w, r, h.redirectTo+"?error=access_denied", http.StatusFound)
		return
	}

	cookie, err := r.Cookie(middleware.StateCookie)
	state := q.Get("state")
	if err != nil || state == "" || !util.ConstantTimeEqual(cookie.Value, state) {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"reason": "state mismatch"},
		})
		http.Redirect(w, r, h.redirectTo+"?error=invalid_state", http.StatusFound)
		return
	}

	sess, err := h.auth.CompleteLogin(r.Context(), q.Get("code"))
	if err != nil {
		log.Warn().Err(err).Msg("oauth callback failed")
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"reason": err.Error()},
		})
		http.Redirect(w, r, h.redirectTo+"?error=login_failed", http.StatusFound)
		return
	}

	middleware.SetSessionCookie(w, sess.ID, sess.ExpiresAt, h.isProduction)
	http.Redirect(w, r, h.redirectTo, http.StatusFound)
}

type statusResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *model.Profile `json:"user,omitempty"`
	ExpiresAt     *time.Time     `json:"expiresAt,omitempty"`
}

func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := middleware.SessionIDFromRequest(r)
	sess, err := h.auth.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess == nil {
		if id != "" {
			middleware.ClearSessionCookie(w, h.isProduction)
		}
		writeJSON(w, http.StatusOK, statusResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Authenticated: true,
		User:          &sess.Profile,
		ExpiresAt:     &sess.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := middleware.SessionIDFromRequest(r); id != "" {
		if err := h.auth.Logout(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
	}
	middleware.ClearSessionCookie(w, h.isProduction)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id := middleware.SessionIDFromRequest(r)
	sess, err := h.auth.Refresh(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	middleware.SetSessionCookie(w, sess.ID, sess.ExpiresAt, h.isProduction)
	writeJSON(w, http.StatusOK, map[string]any{"expiresAt": sess.ExpiresAt})
}
