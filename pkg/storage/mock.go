package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/state"
)

// MockStorage is an in-memory Storage for tests
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*state.Session
	rooms     map[string]*room.Definition
	pingError error
}

var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage instance
func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[uuid.UUID]*state.Session),
		rooms:    make(map[string]*room.Definition),
	}
}

// SetPingError makes Ping fail with err
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetPingSuccess clears any ping error
func (m *MockStorage) SetPingSuccess() {
	m.SetPingError(nil)
}

// Ping mocks a storage health check
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// SaveSession stores a copy of the session record
func (m *MockStorage) SaveSession(ctx context.Context, id uuid.UUID, s *state.Session) error {
	if s == nil {
		return errors.New("session cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[id] = &cp
	return nil
}

// LoadSession returns nil, nil when the session does not exist
func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*state.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.sessions[id]
	if !exists {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// DeleteSession mocks deleting a session
func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// ListRooms maps room names to file names
func (m *MockStorage) ListRooms(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string, len(m.rooms))
	for filename, def := range m.rooms {
		result[def.Name] = filename
	}
	return result, nil
}

// GetRoom mocks loading a room definition by file name
func (m *MockStorage) GetRoom(ctx context.Context, filename string) (*room.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, exists := m.rooms[filename]
	if !exists {
		return nil, fmt.Errorf("%w: %s", room.ErrNotFound, filename)
	}
	return def, nil
}

// AddRoom adds a room to the mock storage (for testing)
func (m *MockStorage) AddRoom(filename string, def *room.Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[filename] = def
}

// SessionCount returns the number of stored sessions
func (m *MockStorage) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// MockLedger is an in-memory Ledger for tests
type MockLedger struct {
	mu     sync.Mutex
	solves []Solve
}

var _ Ledger = (*MockLedger)(nil)

// NewMockLedger creates an empty ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{}
}

func (l *MockLedger) RecordSolve(ctx context.Context, s Solve) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.solves {
		if existing.SessionID == s.SessionID && existing.PuzzleID == s.PuzzleID {
			return nil
		}
	}
	l.solves = append(l.solves, s)
	return nil
}

func (l *MockLedger) Solves(ctx context.Context, sessionID uuid.UUID) ([]Solve, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Solve
	for _, s := range l.solves {
		if s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *MockLedger) Stats(ctx context.Context, roomName string) ([]PuzzleStat, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[string]int)
	for _, s := range l.solves {
		if s.Room == roomName {
			counts[s.PuzzleID]++
		}
	}
	out := make([]PuzzleStat, 0, len(counts))
	for id, n := range counts {
		out = append(out, PuzzleStat{Room: roomName, PuzzleID: id, Solves: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PuzzleID < out[j].PuzzleID })
	return out, nil
}

func (l *MockLedger) Close() error {
	return nil
}
