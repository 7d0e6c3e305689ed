package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chatsounds/soundboard-server/internal/audit"
	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/middleware"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/util"
)

// ChatConnection is the management surface of the chat connection.
type ChatConnection interface {
	State() model.ConnectionState
	IsAuth(ctx context.Context) bool
	Config(ctx context.Context) (*model.ConnectionConfig, error)
	UpdateConfig(ctx context.Context, params model.UpdateConnectionParams) (*model.ConnectionConfig, error)
	Reconnect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

type ConnectionHandler struct {
	conn ChatConnection
}

func NewConnectionHandler(conn ChatConnection) *ConnectionHandler {
	return &ConnectionHandler{conn: conn}
}

func (h *ConnectionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Get)
	r.Put("/", h.Update)
	r.Get("/status", h.Status)
	r.Post("/connect", h.Connect)
	r.Post("/disconnect", h.Disconnect)

	return r
}

type connectionView struct {
	Username       string                `json:"username"`
	Channels       []string              `json:"channels"`
	HasCredentials bool                  `json:"hasCredentials"`
	Connected      bool                  `json:"connected"`
	State          model.ConnectionState `json:"state"`
}

func (h *ConnectionHandler) view(cfg *model.ConnectionConfig) connectionView {
	channels := []string(cfg.Channels)
	if channels == nil {
		channels = []string{}
	}
	return connectionView{
		Username:       cfg.Username,
		Channels:       channels,
		HasCredentials: cfg.HasCredentials(),
		Connected:      cfg.Connected,
		State:          h.conn.State(),
	}
}

func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.conn.Config(r.Context())
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, h.view(cfg))
}

// Update stores new credentials. The running session keeps its old
// credentials until the dashboard calls connect.
func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params model.UpdateConnectionParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}
	if params.Username == "" {
		writeError(w, apperrors.MissingRequired("username"))
		return
	}
	if params.OAuth == "" {
		writeError(w, apperrors.MissingRequired("oauth"))
		return
	}
	if len(util.NormalizeChannels(params.Channels)) == 0 {
		writeError(w, apperrors.MissingRequired("channels"))
		return
	}

	cfg, err := h.conn.UpdateConfig(r.Context(), params)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}

	logAudit(r, audit.Event{
		Type:    audit.EventConnectionUpdated,
		Details: map[string]interface{}{"username": cfg.Username, "channels": len(cfg.Channels)},
	})
	writeJSON(w, http.StatusOK, h.view(cfg))
}

func (h *ConnectionHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     h.conn.State(),
		"connected": h.conn.IsAuth(r.Context()),
	})
}

func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.conn.Config(r.Context())
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if !cfg.HasCredentials() {
		writeError(w, apperrors.ValidationError("No chat credentials configured"))
		return
	}

	if err := h.conn.Reconnect(r.Context()); err != nil {
		writeError(w, apperrors.External("twitch chat", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.conn.State()})
}

func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.conn.Disconnect(r.Context()); err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	logAudit(r, audit.Event{Type: audit.EventConnectionCleared})
	writeJSON(w, http.StatusOK, map[string]any{"state": h.conn.State()})
}

// logAudit tags the event with the dashboard session that made the change.
func logAudit(r *http.Request, event audit.Event) {
	event.SessionID = middleware.GetSessionID(r.Context())
	audit.LogFromRequest(r, event)
}
