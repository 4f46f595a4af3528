package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/state"
)

// Storage defines a unified interface for all storage operations
// This interface combines session persistence (Redis) with room loading (filesystem)
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Session operations (Redis-backed)
	SaveSession(ctx context.Context, id uuid.UUID, s *state.Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*state.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// Room operations (filesystem-backed)
	// ListRooms maps room names to their file names
	ListRooms(ctx context.Context) (map[string]string, error)
	GetRoom(ctx context.Context, filename string) (*room.Definition, error)
}

// Solve is one puzzle solved in one session.
type Solve struct {
	SessionID uuid.UUID `json:"session_id"`
	Room      string    `json:"room"`
	PuzzleID  string    `json:"puzzle_id"`
	SolvedAt  time.Time `json:"solved_at"`
}

// PuzzleStat counts the sessions that solved a puzzle.
type PuzzleStat struct {
	Room     string `json:"room"`
	PuzzleID string `json:"puzzle_id"`
	Solves   int    `json:"solves"`
}

// Ledger is the durable record of solved puzzles. A session solves a puzzle
// at most once; repeated records are ignored.
type Ledger interface {
	RecordSolve(ctx context.Context, s Solve) error
	Solves(ctx context.Context, sessionID uuid.UUID) ([]Solve, error)
	Stats(ctx context.Context, roomName string) ([]PuzzleStat, error)
	Close() error
}
