package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/internal/services/sessions"
	"github.com/jwebster45206/escape-engine/pkg/puzzle"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/state"
	"github.com/jwebster45206/escape-engine/pkg/storage"
)

// SessionService is the live session manager as the handlers see it
type SessionService interface {
	Create(ctx context.Context, roomFile string) (*state.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*state.Session, error)
	Handle(ctx context.Context, id uuid.UUID, ev room.Event) (room.Outcome, *state.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Solves(ctx context.Context, id uuid.UUID) ([]storage.Solve, error)
}

// CreateSessionRequest defines the request body for starting a session
type CreateSessionRequest struct {
	Room string `json:"room"` // Required: room file name
}

// EventResponse is returned for every event a session accepted or rejected
type EventResponse struct {
	Outcome room.Outcome   `json:"outcome"`
	Session *state.Session `json:"session"`
}

type SolvesResponse struct {
	SessionID uuid.UUID       `json:"session_id"`
	Solves    []storage.Solve `json:"solves"`
}

type SessionHandler struct {
	sessions SessionService
	stream   http.Handler
	logger   *slog.Logger
}

// NewSessionHandler creates a session handler. stream serves
// /v1/sessions/{id}/stream and may be nil.
func NewSessionHandler(logger *slog.Logger, sessions SessionService, stream http.Handler) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		stream:   stream,
		logger:   logger,
	}
}

// ServeHTTP handles HTTP requests for session operations
// Routes:
// POST /v1/sessions               - Start a session of a room
// GET /v1/sessions/{id}           - Read session state
// DELETE /v1/sessions/{id}        - End a session
// POST /v1/sessions/{id}/events   - Send one host event
// GET /v1/sessions/{id}/solves    - Solves recorded for the session
// GET /v1/sessions/{id}/stream    - Websocket feedback stream
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Parse the path to extract the session ID and sub-resource
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
		return
	}
	if len(parts) != 2 {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}

	switch parts[1] {
	case "events":
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleEvent(w, r, id)
	case "solves":
		if r.Method != http.MethodGet {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
			return
		}
		h.handleSolves(w, r, id)
	case "stream":
		if h.stream == nil {
			writeError(w, h.logger, http.StatusNotFound, "Streaming is not enabled")
			return
		}
		h.stream.ServeHTTP(w, r)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	// Parse request body into CreateSessionRequest struct
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	// Normalize the room file name and validate required fields
	req.Room = normalizeRoomFile(req.Room)
	if req.Room == "" {
		writeError(w, h.logger, http.StatusBadRequest, "room field is required")
		return
	}

	s, err := h.sessions.Create(r.Context(), req.Room)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Room not found: "+req.Room)
			return
		}
		h.logger.Warn("Failed to create session", "room", req.Room, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Failed to start session: "+err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, s)
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeSessionError(w, h.logger, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s)
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		writeSessionError(w, h.logger, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleEvent(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	// Parse the event strictly so typos in field names are reported
	var ev room.Event
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		h.logger.Warn("Invalid event body", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if ev.Type == "" {
		writeError(w, h.logger, http.StatusBadRequest, "type field is required")
		return
	}

	// Rejected input is still a 200; only events that do not fit the room fail
	out, s, err := h.sessions.Handle(r.Context(), id, ev)
	if err != nil {
		writeSessionError(w, h.logger, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, EventResponse{Outcome: out, Session: s})
}

func (h *SessionHandler) handleSolves(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if _, err := h.sessions.Get(r.Context(), id); err != nil {
		writeSessionError(w, h.logger, id, err)
		return
	}
	solves, err := h.sessions.Solves(r.Context(), id)
	if err != nil {
		writeSessionError(w, h.logger, id, err)
		return
	}
	if solves == nil {
		solves = []storage.Solve{}
	}
	writeJSON(w, h.logger, http.StatusOK, SolvesResponse{SessionID: id, Solves: solves})
}

// writeSessionError maps manager and room errors to status codes
func writeSessionError(w http.ResponseWriter, logger *slog.Logger, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "Session not found")
	case errors.Is(err, puzzle.ErrDestroyed):
		writeError(w, logger, http.StatusGone, "Session has ended")
	case errors.Is(err, room.ErrUnknownTarget),
		errors.Is(err, room.ErrUnknownEvent),
		errors.Is(err, puzzle.ErrUnknownSlot):
		writeError(w, logger, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error("Session operation failed", "session_id", id, "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Session operation failed")
	}
}
