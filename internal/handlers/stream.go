package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jwebster45206/escape-engine/internal/services/events"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/redis/go-redis/v9"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
	streamPongWait   = 2 * streamPingPeriod
)

// StreamMessage is written to the socket for anything that is not a
// broadcast event: the greeting and errors for events sent over the socket.
type StreamMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// StreamHandler serves a websocket per host connection. Broadcast session
// events are forwarded to the socket; events the host writes to the socket
// are applied to the session like POST /v1/sessions/{id}/events.
type StreamHandler struct {
	redisClient *redis.Client
	sessions    SessionService
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(redisClient *redis.Client, sessions SessionService, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		redisClient: redisClient,
		sessions:    sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades GET /v1/sessions/{id}/stream
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "v1" || parts[1] != "sessions" || parts[3] != "stream" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/sessions/{id}/stream")
		return
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	// Check the session before subscribing
	if _, err := h.sessions.Get(r.Context(), id); err != nil {
		writeSessionError(w, h.logger, id, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.redisClient.Subscribe(ctx, events.Channel(id))
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Error("Failed to subscribe to session events", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied to the client
		h.logger.Warn("Websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	log := h.logger.With("session_id", id.String(), "remote_addr", r.RemoteAddr)
	log.Info("Stream connection established")

	replies := make(chan StreamMessage, 16)
	go h.readPump(ctx, cancel, conn, id, replies, log)

	if !h.writeJSON(conn, StreamMessage{Type: "connected", SessionID: id.String()}, log) {
		return
	}

	msgChan := pubsub.Channel()
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stream client disconnected")
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.Warn("Failed to forward event", "error", err)
				return
			}

		case reply := <-replies:
			if !h.writeJSON(conn, reply, log) {
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				log.Warn("Failed to ping stream client", "error", err)
				return
			}
		}
	}
}

// readPump applies events the host sends over the socket. Outcomes come back
// through the broadcast; only refused events are answered directly.
func (h *StreamHandler) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, id uuid.UUID, replies chan<- StreamMessage, log *slog.Logger) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Stream read failed", "error", err)
			}
			return
		}

		var ev room.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			h.reply(ctx, replies, StreamMessage{Type: "error", SessionID: id.String(), Error: "invalid event"})
			continue
		}
		if _, _, err := h.sessions.Handle(ctx, id, ev); err != nil {
			h.reply(ctx, replies, StreamMessage{Type: "error", SessionID: id.String(), Error: err.Error()})
		}
	}
}

func (h *StreamHandler) reply(ctx context.Context, replies chan<- StreamMessage, msg StreamMessage) {
	select {
	case replies <- msg:
	case <-ctx.Done():
	}
}

func (h *StreamHandler) writeJSON(conn *websocket.Conn, v any, log *slog.Logger) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(v); err != nil {
		log.Warn("Failed to write to stream", "error", err)
		return false
	}
	return true
}
