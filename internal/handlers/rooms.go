package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/storage"
)

// StatsSource reports how often each puzzle of a room was solved
type StatsSource interface {
	Stats(ctx context.Context, roomName string) ([]storage.PuzzleStat, error)
}

type RoomListResponse struct {
	Rooms map[string]string `json:"rooms"`
}

type RoomStatsResponse struct {
	Room    string               `json:"room"`
	Puzzles []storage.PuzzleStat `json:"puzzles"`
}

type RoomHandler struct {
	log     *slog.Logger
	storage storage.Storage
	stats   StatsSource
}

// NewRoomHandler creates a room handler. stats may be nil.
func NewRoomHandler(log *slog.Logger, storage storage.Storage, stats StatsSource) *RoomHandler {
	return &RoomHandler{
		log:     log,
		storage: storage,
		stats:   stats,
	}
}

// ServeHTTP handles room lookups
// Routes:
// GET /v1/rooms               - List rooms by name
// GET /v1/rooms/{file}        - Room definition
// GET /v1/rooms/{file}/stats  - Solve counts per puzzle
func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/rooms"), "/")
	if path == "" {
		h.handleList(w, r)
		return
	}

	parts := strings.Split(path, "/")
	filename := normalizeRoomFile(parts[0])
	switch {
	case len(parts) == 1:
		h.handleGet(w, r, filename)
	case len(parts) == 2 && parts[1] == "stats":
		h.handleStats(w, r, filename)
	default:
		writeError(w, h.log, http.StatusNotFound, "Not found")
	}
}

func (h *RoomHandler) handleList(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.storage.ListRooms(r.Context())
	if err != nil {
		h.log.Error("Failed to list rooms", "error", err)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to list rooms")
		return
	}
	writeJSON(w, h.log, http.StatusOK, RoomListResponse{Rooms: rooms})
}

func (h *RoomHandler) loadRoom(w http.ResponseWriter, r *http.Request, filename string) (*room.Definition, bool) {
	if strings.Contains(filename, "..") {
		writeError(w, h.log, http.StatusBadRequest, "Invalid room file name")
		return nil, false
	}
	def, err := h.storage.GetRoom(r.Context(), filename)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			writeError(w, h.log, http.StatusNotFound, "Room not found")
			return nil, false
		}
		h.log.Error("Failed to get room", "error", err, "filename", filename)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to load room: "+err.Error())
		return nil, false
	}
	return def, true
}

func (h *RoomHandler) handleGet(w http.ResponseWriter, r *http.Request, filename string) {
	def, ok := h.loadRoom(w, r, filename)
	if !ok {
		return
	}
	writeJSON(w, h.log, http.StatusOK, def)
}

func (h *RoomHandler) handleStats(w http.ResponseWriter, r *http.Request, filename string) {
	def, ok := h.loadRoom(w, r, filename)
	if !ok {
		return
	}
	resp := RoomStatsResponse{Room: def.Name, Puzzles: []storage.PuzzleStat{}}
	if h.stats != nil {
		stats, err := h.stats.Stats(r.Context(), def.Name)
		if err != nil {
			h.log.Error("Failed to read room stats", "error", err, "room", def.Name)
			writeError(w, h.log, http.StatusInternalServerError, "Failed to read room stats")
			return
		}
		resp.Puzzles = stats
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}

// normalizeRoomFile trims the name and defaults to a YAML file when no
// extension is given
func normalizeRoomFile(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := room.FormatFor(s); err != nil && !strings.Contains(s, ".") {
		return s + ".yaml"
	}
	return s
}
