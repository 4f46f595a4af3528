package state

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/pkg/room"
)

// Session is the persisted record of one play-through of a room.
type Session struct {
	ID        uuid.UUID      `json:"id"`                 // Unique ID per session
	RoomFile  string         `json:"room_file"`          // Room definition file under the data dir
	Room      string         `json:"room"`               // Room name, as in the definition
	Snapshot  *room.Snapshot `json:"snapshot,omitempty"` // Puzzle, zone and vitals state
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSession creates a record for a fresh play-through of def
func NewSession(roomFile string, def *room.Definition) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New(),
		RoomFile:  roomFile,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if def != nil {
		s.Room = def.Name
	}
	return s
}

// Solved returns the number of solved puzzles recorded in the snapshot
func (s *Session) Solved() (solved, total int) {
	if s.Snapshot == nil {
		return 0, 0
	}
	return s.Snapshot.Solved, s.Snapshot.Total
}

// Complete reports whether every puzzle in the room was solved
func (s *Session) Complete() bool {
	solved, total := s.Solved()
	return total > 0 && solved == total
}
