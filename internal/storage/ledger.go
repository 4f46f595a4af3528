package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	store "github.com/jwebster45206/escape-engine/pkg/storage"
	_ "github.com/mattn/go-sqlite3"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS solves (
	session_id TEXT NOT NULL,
	room TEXT NOT NULL,
	puzzle_id TEXT NOT NULL,
	solved_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, puzzle_id)
);
CREATE INDEX IF NOT EXISTS solves_room ON solves (room, puzzle_id);
`

// SQLiteLedger records solved puzzles in a sqlite database.
type SQLiteLedger struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.Ledger = (*SQLiteLedger)(nil)

// OpenLedger opens or creates the ledger at path. ":memory:" gives a
// private in-memory database.
func OpenLedger(path string, logger *slog.Logger) (*SQLiteLedger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// each in-memory connection is its own database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	logger.Info("Ledger opened", "path", path)
	return &SQLiteLedger{db: db, logger: logger}, nil
}

// RecordSolve stores a solve. A second record for the same session and
// puzzle keeps the first timestamp.
func (l *SQLiteLedger) RecordSolve(ctx context.Context, s store.Solve) error {
	if s.SolvedAt.IsZero() {
		s.SolvedAt = time.Now()
	}
	query := `
	INSERT INTO solves (session_id, room, puzzle_id, solved_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(session_id, puzzle_id) DO NOTHING;
	`
	if _, err := l.db.ExecContext(ctx, query, s.SessionID.String(), s.Room, s.PuzzleID, s.SolvedAt.UTC()); err != nil {
		l.logger.Error("Failed to record solve", "session_id", s.SessionID, "puzzle_id", s.PuzzleID, "error", err)
		return fmt.Errorf("failed to record solve: %w", err)
	}
	return nil
}

// Solves lists a session's solves in the order they happened
func (l *SQLiteLedger) Solves(ctx context.Context, sessionID uuid.UUID) ([]store.Solve, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT room, puzzle_id, solved_at FROM solves WHERE session_id = ? ORDER BY solved_at, puzzle_id",
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query solves: %w", err)
	}
	defer rows.Close()

	var out []store.Solve
	for rows.Next() {
		s := store.Solve{SessionID: sessionID}
		if err := rows.Scan(&s.Room, &s.PuzzleID, &s.SolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan solve: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats counts solving sessions per puzzle of a room
func (l *SQLiteLedger) Stats(ctx context.Context, roomName string) ([]store.PuzzleStat, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT puzzle_id, COUNT(*) FROM solves WHERE room = ? GROUP BY puzzle_id ORDER BY puzzle_id",
		roomName)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	out := []store.PuzzleStat{}
	for rows.Next() {
		st := store.PuzzleStat{Room: roomName}
		if err := rows.Scan(&st.PuzzleID, &st.Solves); err != nil {
			return nil, fmt.Errorf("failed to scan stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
