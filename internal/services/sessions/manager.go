package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/internal/logger"
	"github.com/jwebster45206/escape-engine/pkg/puzzle"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/state"
	"github.com/jwebster45206/escape-engine/pkg/storage"
)

// ErrNotFound is returned for sessions that are neither live nor stored.
var ErrNotFound = errors.New("session not found")

// Publisher fans session activity out to connected hosts.
type Publisher interface {
	PublishCreated(ctx context.Context, id uuid.UUID, roomName string, signals []puzzle.Signal) error
	PublishRestored(ctx context.Context, id uuid.UUID, roomName string, signals []puzzle.Signal) error
	PublishOutcome(ctx context.Context, id uuid.UUID, out room.Outcome, signals []puzzle.Signal) error
	PublishFeedback(ctx context.Context, id uuid.UUID, signals []puzzle.Signal) error
	PublishSolved(ctx context.Context, id uuid.UUID, puzzleID string, solved, total int) error
	PublishCompleted(ctx context.Context, id uuid.UUID, roomName string) error
	PublishDeleted(ctx context.Context, id uuid.UUID) error
}

// live is a session loaded in memory. mu serializes everything that touches
// the room session, since room sessions are not safe for concurrent use.
type live struct {
	mu         sync.Mutex
	record     *state.Session
	room       *room.Session
	rec        *puzzle.Recorder
	log        *slog.Logger
	completed  bool
	lastActive time.Time
}

// Manager owns the live room sessions of a server. Every change is saved to
// storage, solves go to the ledger and feedback goes to the publisher.
type Manager struct {
	store  storage.Storage
	ledger storage.Ledger
	pub    Publisher
	log    *slog.Logger

	mu      sync.RWMutex
	live    map[uuid.UUID]*live
	deleted map[uuid.UUID]time.Time
}

// NewManager creates a manager. ledger and pub may be nil.
func NewManager(store storage.Storage, ledger storage.Ledger, pub Publisher, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:   store,
		ledger:  ledger,
		pub:     pub,
		log:     log,
		live:    make(map[uuid.UUID]*live),
		deleted: make(map[uuid.UUID]time.Time),
	}
}

// Create starts a new session of the room stored in roomFile
func (m *Manager) Create(ctx context.Context, roomFile string) (*state.Session, error) {
	def, err := m.store.GetRoom(ctx, roomFile)
	if err != nil {
		return nil, err
	}

	record := state.NewSession(roomFile, def)
	l, err := m.build(record, def)
	if err != nil {
		return nil, err
	}
	record.Snapshot = l.room.Snapshot()
	if err := m.store.SaveSession(ctx, record.ID, record); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.live[record.ID] = l
	m.mu.Unlock()

	l.log.Info("Session created", "room", def.Name, "room_file", roomFile)
	if m.pub != nil {
		if err := m.pub.PublishCreated(ctx, record.ID, def.Name, l.rec.Drain()); err != nil {
			l.log.Warn("Failed to publish session creation", "error", err)
		}
	}
	return copyRecord(record), nil
}

// Get returns the current record of a session, loading it from storage if it
// is not live
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*state.Session, error) {
	l, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()
	l.lastActive = time.Now()
	return copyRecord(l.record), nil
}

// Handle applies one host event to a session and saves the result. The
// returned error is reserved for events that do not fit the room; rejected
// input comes back in the Outcome. A failed save is returned after the
// outcome has been published and its solves recorded, since the room has
// already moved on in memory.
func (m *Manager) Handle(ctx context.Context, id uuid.UUID, ev room.Event) (room.Outcome, *state.Session, error) {
	l, err := m.lock(ctx, id)
	if err != nil {
		return room.Outcome{}, nil, err
	}
	defer l.mu.Unlock()

	out, err := l.room.Handle(ev)
	signals := l.rec.Drain()
	if err != nil {
		return out, nil, err
	}
	l.lastActive = time.Now()

	l.record.Snapshot = l.room.Snapshot()
	saveErr := m.store.SaveSession(ctx, id, l.record)
	if saveErr != nil {
		l.log.Error("Failed to save session", "error", saveErr)
	}

	if m.pub != nil {
		if err := m.pub.PublishOutcome(ctx, id, out, signals); err != nil {
			l.log.Warn("Failed to publish outcome", "error", err)
		}
	}
	m.recordSolves(ctx, l, out.NewlySolved)
	if saveErr != nil {
		return out, nil, fmt.Errorf("failed to save session %s: %w", id, saveErr)
	}
	return out, copyRecord(l.record), nil
}

func (m *Manager) recordSolves(ctx context.Context, l *live, ids []string) {
	if len(ids) == 0 {
		return
	}
	solved, total := l.room.Progress()
	for _, puzzleID := range ids {
		if m.ledger != nil {
			err := m.ledger.RecordSolve(ctx, storage.Solve{
				SessionID: l.record.ID,
				Room:      l.record.Room,
				PuzzleID:  puzzleID,
				SolvedAt:  time.Now(),
			})
			if err != nil {
				l.log.Warn("Failed to record solve", "puzzle_id", puzzleID, "error", err)
			}
		}
		if m.pub != nil {
			if err := m.pub.PublishSolved(ctx, l.record.ID, puzzleID, solved, total); err != nil {
				l.log.Warn("Failed to publish solve", "puzzle_id", puzzleID, "error", err)
			}
		}
	}

	if !l.completed && l.room.Complete() {
		l.completed = true
		l.log.Info("Room completed", "room", l.record.Room, "puzzles", total)
		if m.pub != nil {
			if err := m.pub.PublishCompleted(ctx, l.record.ID, l.record.Room); err != nil {
				l.log.Warn("Failed to publish completion", "error", err)
			}
		}
	}
}

// Tick advances every live session by dt. Sessions whose clock raised
// feedback are saved and their signals published. It returns the number of
// callbacks fired across all sessions.
func (m *Manager) Tick(ctx context.Context, dt time.Duration) int {
	fired := 0
	for _, l := range m.snapshotLive() {
		l.mu.Lock()
		if l.room.Destroyed() {
			l.mu.Unlock()
			continue
		}
		fired += l.room.Tick(dt)
		signals := l.rec.Drain()
		if len(signals) > 0 {
			l.lastActive = time.Now()
			l.record.Snapshot = l.room.Snapshot()
			if err := m.store.SaveSession(ctx, l.record.ID, l.record); err != nil {
				l.log.Warn("Failed to save session after tick", "error", err)
			}
			if m.pub != nil {
				if err := m.pub.PublishFeedback(ctx, l.record.ID, signals); err != nil {
					l.log.Warn("Failed to publish feedback", "error", err)
				}
			}
		}
		l.mu.Unlock()
	}
	return fired
}

// Delete destroys a session and removes it from storage. The id is
// tombstoned first so a request racing the delete cannot restore the stored
// record.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	if _, gone := m.deleted[id]; gone {
		m.mu.Unlock()
		return ErrNotFound
	}
	l, isLive := m.live[id]
	delete(m.live, id)
	m.deleted[id] = time.Now()
	m.mu.Unlock()

	if isLive {
		l.mu.Lock()
		l.room.Destroy()
		l.mu.Unlock()
	} else {
		record, err := m.store.LoadSession(ctx, id)
		if err == nil && record == nil {
			err = ErrNotFound
		}
		if err != nil {
			m.forget(id)
			return err
		}
	}

	if err := m.store.DeleteSession(ctx, id); err != nil {
		// the record is still stored, so it may be restored again
		m.forget(id)
		return err
	}
	m.log.Info("Session deleted", "session_id", id)
	if m.pub != nil {
		if err := m.pub.PublishDeleted(ctx, id); err != nil {
			m.log.Warn("Failed to publish session deletion", "session_id", id, "error", err)
		}
	}
	return nil
}

func (m *Manager) forget(id uuid.UUID) {
	m.mu.Lock()
	delete(m.deleted, id)
	m.mu.Unlock()
}

// Solves lists what the ledger holds for a session
func (m *Manager) Solves(ctx context.Context, id uuid.UUID) ([]storage.Solve, error) {
	if m.ledger == nil {
		return []storage.Solve{}, nil
	}
	return m.ledger.Solves(ctx, id)
}

// Stats lists per-puzzle solve counts for a room
func (m *Manager) Stats(ctx context.Context, roomName string) ([]storage.PuzzleStat, error) {
	if m.ledger == nil {
		return []storage.PuzzleStat{}, nil
	}
	return m.ledger.Stats(ctx, roomName)
}

// Sweep unloads sessions idle for longer than idle. Their records stay in
// storage and load again on the next request. Sessions still waiting on a
// delayed cue or a fade stay loaded. It returns how many were unloaded.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, at := range m.deleted {
		if at.Before(cutoff) {
			delete(m.deleted, id)
		}
	}

	n := 0
	for id, l := range m.live {
		l.mu.Lock()
		stale := l.lastActive.Before(cutoff) && !l.room.Busy()
		if stale {
			l.room.Destroy()
		}
		l.mu.Unlock()
		if stale {
			delete(m.live, id)
			n++
		}
	}
	if n > 0 {
		m.log.Debug("Unloaded idle sessions", "count", n)
	}
	return n
}

// Live returns the number of sessions held in memory
func (m *Manager) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// Close saves every live session and unloads it
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, l := range m.snapshotLive() {
		l.mu.Lock()
		if !l.room.Destroyed() {
			l.record.Snapshot = l.room.Snapshot()
			if err := m.store.SaveSession(ctx, l.record.ID, l.record); err != nil {
				errs = append(errs, err)
			}
			l.room.Destroy()
		}
		l.mu.Unlock()
	}
	m.mu.Lock()
	m.live = make(map[uuid.UUID]*live)
	m.mu.Unlock()
	return errors.Join(errs...)
}

// lock returns the live session for id with its mutex held. A session unloaded
// by Sweep between lookup and lock is restored again; a deleted one is not found.
func (m *Manager) lock(ctx context.Context, id uuid.UUID) (*live, error) {
	for attempt := 0; attempt < 2; attempt++ {
		l, err := m.acquire(ctx, id)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		if !l.room.Destroyed() {
			return l, nil
		}
		l.mu.Unlock()
	}
	return nil, ErrNotFound
}

// acquire returns the live session for id, restoring it from storage first
// when needed
func (m *Manager) acquire(ctx context.Context, id uuid.UUID) (*live, error) {
	m.mu.RLock()
	l, ok := m.live[id]
	_, gone := m.deleted[id]
	m.mu.RUnlock()
	if ok {
		return l, nil
	}
	if gone {
		return nil, ErrNotFound
	}

	record, err := m.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	def, err := m.store.GetRoom(ctx, record.RoomFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load room for session %s: %w", id, err)
	}
	l, err = m.build(record, def)
	if err != nil {
		return nil, err
	}
	if record.Snapshot != nil {
		if err := l.room.Restore(record.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to restore session %s: %w", id, err)
		}
	}
	l.completed = l.room.Complete()
	record.Snapshot = l.room.Snapshot()

	m.mu.Lock()
	if _, gone := m.deleted[id]; gone {
		m.mu.Unlock()
		l.room.Destroy()
		return nil, ErrNotFound
	}
	if existing, ok := m.live[id]; ok {
		// another request restored it first
		m.mu.Unlock()
		l.room.Destroy()
		return existing, nil
	}
	m.live[id] = l
	m.mu.Unlock()

	l.log.Info("Session restored", "room", record.Room)
	if m.pub != nil {
		if err := m.pub.PublishRestored(ctx, id, record.Room, l.rec.Drain()); err != nil {
			l.log.Warn("Failed to publish session restore", "error", err)
		}
	}
	return l, nil
}

func (m *Manager) build(record *state.Session, def *room.Definition) (*live, error) {
	log := logger.WithSession(m.log, record.ID)
	rec := puzzle.NewRecorder()
	rs, err := room.NewSession(def, rec, log)
	if err != nil {
		return nil, err
	}
	return &live{
		record:     record,
		room:       rs,
		rec:        rec,
		log:        log,
		lastActive: time.Now(),
	}, nil
}

func (m *Manager) snapshotLive() []*live {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*live, 0, len(m.live))
	for _, l := range m.live {
		out = append(out, l)
	}
	return out
}

func copyRecord(s *state.Session) *state.Session {
	cp := *s
	return &cp
}
