package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/broadcast"
	"github.com/chatsounds/soundboard-server/internal/model"
)

// StateSource reports the current chat connection state.
type StateSource interface {
	State() model.ConnectionState
}

// EventsHandler streams playback events to overlays over Server-Sent Events.
type EventsHandler struct {
	broker    *broadcast.Broker
	state     StateSource
	heartbeat time.Duration
}

func NewEventsHandler(broker *broadcast.Broker, state StateSource) *EventsHandler {
	return &EventsHandler{broker: broker, state: state, heartbeat: broadcast.HeartbeatInterval}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe("sse")
	defer h.broker.Unsubscribe(sub)

	if err := h.sendEvent(w, flusher, model.EventConnectionState, map[string]any{"state": h.state.State()}); err != nil {
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("subscriberId", sub.ID).Msg("sse connection closed by client")
			return

		case <-sub.Done:
			log.Debug().Str("subscriberId", sub.ID).Msg("sse connection closed by broker")
			return

		case event := <-sub.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Debug().Err(err).Str("subscriberId", sub.ID).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, kind model.EventKind, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return h.sendRawEvent(w, flusher, broadcast.Event{Kind: kind, Data: raw})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event broadcast.Event) error {
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
