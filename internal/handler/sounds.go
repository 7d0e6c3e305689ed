package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/service"
)

type SoundHandler struct {
	sounds   *service.SoundService
	commands *service.CommandService
}

func NewSoundHandler(sounds *service.SoundService, commands *service.CommandService) *SoundHandler {
	return &SoundHandler{sounds: sounds, commands: commands}
}

func (h *SoundHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/play", h.Play)

	return r
}

func (h *SoundHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sounds, total, err := h.sounds.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(sounds, total, p))
}

func (h *SoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	sound, err := h.sounds.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sound)
}

func (h *SoundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params model.CreateSoundParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	sound, err := h.sounds.Create(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sound)
}

func (h *SoundHandler) Update(w http.ResponseWriter, r *http.Request) {
	var params model.UpdateSoundParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, err)
		return
	}

	sound, err := h.sounds.Update(r.Context(), chi.URLParam(r, "id"), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sound)
}

func (h *SoundHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sounds.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Play triggers a sound from the dashboard without a chat message.
func (h *SoundHandler) Play(w http.ResponseWriter, r *http.Request) {
	play, err := h.commands.PlaySound(r.Context(), chi.URLParam(r, "id"), service.DashboardUsername)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, play)
}
