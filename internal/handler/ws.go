package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/broadcast"
	"github.com/chatsounds/soundboard-server/internal/model"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 512
)

// wsMessage is the frame sent to WebSocket listeners.
type wsMessage struct {
	ID   string          `json:"id,omitempty"`
	Kind model.EventKind `json:"kind"`
	Data any             `json:"data"`
}

// WebSocketHandler is the WebSocket twin of EventsHandler, used by browser
// sources that cannot hold an EventSource open.
type WebSocketHandler struct {
	broker   *broadcast.Broker
	state    StateSource
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(broker *broadcast.Broker, state StateSource) *WebSocketHandler {
	return &WebSocketHandler{
		broker: broker,
		state:  state,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Overlays are loaded by streaming software with arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.broker.Subscribe("websocket")
	defer h.broker.Unsubscribe(sub)

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	if err := h.write(conn, wsMessage{Kind: model.EventConnectionState, Data: map[string]any{"state": h.state.State()}}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return

		case <-sub.Done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
			return

		case event := <-sub.Events:
			if err := h.write(conn, wsMessage{ID: event.ID, Kind: event.Kind, Data: event.Data}); err != nil {
				log.Debug().Err(err).Str("subscriberId", sub.ID).Msg("websocket write failed")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, msg wsMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
