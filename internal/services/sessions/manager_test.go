package sessions

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/pkg/puzzle"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/state"
	"github.com/jwebster45206/escape-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roomFile = "escape_room.yaml"

type published struct {
	kind    string
	id      uuid.UUID
	outcome room.Outcome
	signals []puzzle.Signal
	puzzle  string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) add(p published) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, p)
	return nil
}

func (f *fakePublisher) PublishCreated(ctx context.Context, id uuid.UUID, roomName string, signals []puzzle.Signal) error {
	return f.add(published{kind: "created", id: id, signals: signals})
}

func (f *fakePublisher) PublishRestored(ctx context.Context, id uuid.UUID, roomName string, signals []puzzle.Signal) error {
	return f.add(published{kind: "restored", id: id, signals: signals})
}

func (f *fakePublisher) PublishOutcome(ctx context.Context, id uuid.UUID, out room.Outcome, signals []puzzle.Signal) error {
	return f.add(published{kind: "outcome", id: id, outcome: out, signals: signals})
}

func (f *fakePublisher) PublishFeedback(ctx context.Context, id uuid.UUID, signals []puzzle.Signal) error {
	return f.add(published{kind: "feedback", id: id, signals: signals})
}

func (f *fakePublisher) PublishSolved(ctx context.Context, id uuid.UUID, puzzleID string, solved, total int) error {
	return f.add(published{kind: "solved", id: id, puzzle: puzzleID})
}

func (f *fakePublisher) PublishCompleted(ctx context.Context, id uuid.UUID, roomName string) error {
	return f.add(published{kind: "completed", id: id})
}

func (f *fakePublisher) PublishDeleted(ctx context.Context, id uuid.UUID) error {
	return f.add(published{kind: "deleted", id: id})
}

func (f *fakePublisher) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.kind
	}
	return out
}

func (f *fakePublisher) last(kind string) (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].kind == kind {
			return f.events[i], true
		}
	}
	return published{}, false
}

func (f *fakePublisher) count(kind string) int {
	n := 0
	for _, k := range f.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	manager *Manager
	store   *storage.MockStorage
	ledger  *storage.MockLedger
	pub     *fakePublisher
}

func setup(t *testing.T) fixture {
	t.Helper()
	def, err := room.Load("../../../data/rooms/" + roomFile)
	require.NoError(t, err)

	store := storage.NewMockStorage()
	store.AddRoom(roomFile, def)
	ledger := storage.NewMockLedger()
	pub := &fakePublisher{}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return fixture{
		manager: NewManager(store, ledger, pub, log),
		store:   store,
		ledger:  ledger,
		pub:     pub,
	}
}

func (f fixture) handle(t *testing.T, id uuid.UUID, ev room.Event) room.Outcome {
	t.Helper()
	out, _, err := f.manager.Handle(context.Background(), id, ev)
	require.NoError(t, err, "event %+v", ev)
	return out
}

func (f fixture) typeCode(t *testing.T, id uuid.UUID, keypad, code string) room.Outcome {
	t.Helper()
	for _, r := range code {
		f.handle(t, id, room.Event{Type: room.EventKey, Target: keypad, Key: string(r)})
	}
	return f.handle(t, id, room.Event{Type: room.EventEnter, Target: keypad})
}

func TestManager_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)
	assert.Equal(t, "Escape Room", s.Room)
	require.NotNil(t, s.Snapshot)
	assert.Equal(t, 6, s.Snapshot.Total)
	assert.Equal(t, 1, f.manager.Live())

	stored, err := f.store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	created, ok := f.pub.last("created")
	require.True(t, ok)
	assert.NotEmpty(t, created.signals, "opening state is published")
}

func TestManager_Create_UnknownRoom(t *testing.T) {
	f := setup(t)
	_, err := f.manager.Create(context.Background(), "missing.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, room.ErrNotFound))
	assert.Equal(t, 0, f.store.SessionCount())
}

func TestManager_HandleSolvesAndRecords(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	out := f.typeCode(t, s.ID, "keypad_two", "1115")
	assert.Equal(t, "matched", out.Result)
	assert.Equal(t, []string{"keypad_two"}, out.NewlySolved)

	last, ok := f.pub.last("outcome")
	require.True(t, ok)
	assert.Equal(t, "matched", last.outcome.Result)
	assert.NotEmpty(t, last.signals)

	solved, ok := f.pub.last("solved")
	require.True(t, ok)
	assert.Equal(t, "keypad_two", solved.puzzle)

	solves, err := f.manager.Solves(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, solves, 1)
	assert.Equal(t, "Escape Room", solves[0].Room)

	stored, err := f.store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.Snapshot.Flags["keypad_two"])
	assert.Equal(t, 1, stored.Snapshot.Solved)
}

func TestManager_RejectedInputIsNotAnError(t *testing.T) {
	f := setup(t)
	s, err := f.manager.Create(context.Background(), roomFile)
	require.NoError(t, err)

	out := f.typeCode(t, s.ID, "keypad_two", "9999")
	assert.False(t, out.Accepted)
	assert.Equal(t, "not_matched", out.Result)
	assert.Equal(t, 0, f.pub.count("solved"))
}

func TestManager_HardErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	_, _, err = f.manager.Handle(ctx, s.ID, room.Event{Type: room.EventKey, Target: "no_such_keypad", Key: "1"})
	assert.True(t, errors.Is(err, room.ErrUnknownTarget))

	_, _, err = f.manager.Handle(ctx, uuid.New(), room.Event{Type: room.EventPause})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestManager_TickPublishesDelayedCue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	f.typeCode(t, s.ID, "keypad_two", "1115")

	assert.Equal(t, 0, f.manager.Tick(ctx, 500*time.Millisecond))
	_, ok := f.pub.last("feedback")
	assert.False(t, ok, "nothing is due yet")

	assert.Equal(t, 1, f.manager.Tick(ctx, 500*time.Millisecond))
	fb, ok := f.pub.last("feedback")
	require.True(t, ok)
	require.Len(t, fb.signals, 1)
	assert.Equal(t, puzzle.SignalDelayedCue, fb.signals[0].Kind)
	assert.Equal(t, "access_granted_voice", fb.signals[0].Target)
}

func TestManager_TickWhilePaused(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	f.typeCode(t, s.ID, "keypad_two", "1115")
	f.handle(t, s.ID, room.Event{Type: room.EventPause})

	assert.Equal(t, 0, f.manager.Tick(ctx, 5*time.Second))

	f.handle(t, s.ID, room.Event{Type: room.EventPause})
	assert.Equal(t, 1, f.manager.Tick(ctx, time.Second))
}

func TestManager_CompletesRoomOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	f.handle(t, s.ID, room.Event{Type: room.EventPress, Target: "keypad_one"})
	f.typeCode(t, s.ID, "keypad_two", "1115")
	f.handle(t, s.ID, room.Event{Type: room.EventGrab, Target: "note"})
	f.typeCode(t, s.ID, "room_two", "871")
	f.typeCode(t, s.ID, "room_five", "3745")
	f.handle(t, s.ID, room.Event{Type: room.EventPlace, Target: "tracing_panel", Slot: "tracing_spot_circle", Tag: "circle_piece"})
	f.handle(t, s.ID, room.Event{Type: room.EventPlace, Target: "tracing_panel", Slot: "tracing_spot_square", Tag: "square_piece"})
	assert.Equal(t, 0, f.pub.count("completed"))

	out := f.handle(t, s.ID, room.Event{Type: room.EventPlace, Target: "tracing_panel", Slot: "tracing_spot_triangle", Tag: "triangle_piece"})
	assert.Equal(t, []string{"tracing_panel"}, out.NewlySolved)
	assert.Equal(t, 1, f.pub.count("completed"))
	assert.Equal(t, 6, f.pub.count("solved"))

	// more input after completion does not complete the room again
	f.handle(t, s.ID, room.Event{Type: room.EventPress, Target: "keypad_one"})
	assert.Equal(t, 1, f.pub.count("completed"))

	got, err := f.manager.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Complete())

	stats, err := f.manager.Stats(ctx, "Escape Room")
	require.NoError(t, err)
	assert.Len(t, stats, 6)
}

func TestManager_RestoresFromStorage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)
	f.typeCode(t, s.ID, "keypad_two", "1115")
	f.handle(t, s.ID, room.Event{Type: room.EventKey, Target: "room_two", Key: "8"})

	// a second manager over the same storage plays the stored session
	other := NewManager(f.store, f.ledger, f.pub, nil)
	got, err := other.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Snapshot.Flags["keypad_two"])
	_, ok := f.pub.last("restored")
	assert.True(t, ok)

	out, _, err := other.Handle(ctx, s.ID, room.Event{Type: room.EventKey, Target: "room_two", Key: "7"})
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	out, _, err = other.Handle(ctx, s.ID, room.Event{Type: room.EventKey, Target: "room_two", Key: "1"})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	out, _, err = other.Handle(ctx, s.ID, room.Event{Type: room.EventEnter, Target: "room_two"})
	require.NoError(t, err)
	assert.Equal(t, []string{"room_two"}, out.NewlySolved)
}

func TestManager_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	require.NoError(t, f.manager.Delete(ctx, s.ID))
	assert.Equal(t, 0, f.manager.Live())
	assert.Equal(t, 0, f.store.SessionCount())
	assert.Equal(t, 1, f.pub.count("deleted"))

	_, err = f.manager.Get(ctx, s.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(f.manager.Delete(ctx, s.ID), ErrNotFound))
}

func TestManager_SweepAndReload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)
	f.typeCode(t, s.ID, "keypad_two", "1115")

	assert.Equal(t, 0, f.manager.Sweep(time.Hour))
	// the granted voice cue is still pending
	assert.Equal(t, 0, f.manager.Sweep(0))
	f.manager.Tick(ctx, time.Second)
	assert.Equal(t, 1, f.manager.Sweep(0))
	assert.Equal(t, 0, f.manager.Live())

	got, err := f.manager.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Snapshot.Flags["keypad_two"])
	assert.Equal(t, 1, f.manager.Live())
}

func TestManager_Close(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)
	_, err = f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	require.NoError(t, f.manager.Close(ctx))
	assert.Equal(t, 0, f.manager.Live())
	assert.Equal(t, 2, f.store.SessionCount())
}

func TestManager_ConcurrentHandle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = f.manager.Handle(ctx, s.ID, room.Event{Type: room.EventDamage, Amount: 5})
			f.manager.Tick(ctx, 10*time.Millisecond)
		}()
	}
	wg.Wait()

	got, err := f.manager.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Snapshot.Health)
	assert.Equal(t, 60.0, *got.Snapshot.Health)
}

// hookStore runs onDelete before removing a stored session
type hookStore struct {
	*storage.MockStorage
	onDelete func()
}

func (h *hookStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if h.onDelete != nil {
		h.onDelete()
	}
	return h.MockStorage.DeleteSession(ctx, id)
}

// flakyStore fails the save selected by failOn
type flakyStore struct {
	*storage.MockStorage
	mu     sync.Mutex
	saves  int
	failOn int
}

func (f *flakyStore) SaveSession(ctx context.Context, id uuid.UUID, s *state.Session) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves == f.failOn
	f.mu.Unlock()
	if fail {
		return errors.New("redis down")
	}
	return f.MockStorage.SaveSession(ctx, id, s)
}

func TestManager_DeleteRacingRequestsDoNotRestore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	store := &hookStore{MockStorage: f.store}
	m := NewManager(store, f.ledger, f.pub, nil)

	s, err := m.Create(ctx, roomFile)
	require.NoError(t, err)

	var racedErr error
	store.onDelete = func() {
		_, racedErr = m.Get(ctx, s.ID)
	}
	require.NoError(t, m.Delete(ctx, s.ID))

	assert.True(t, errors.Is(racedErr, ErrNotFound))
	assert.Equal(t, 0, m.Live())

	_, _, err = m.Handle(ctx, s.ID, room.Event{Type: room.EventPause})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, f.store.SessionCount())
}

func TestManager_DeleteStoredSessionRacingRestore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	store := &hookStore{MockStorage: f.store}
	m := NewManager(store, f.ledger, f.pub, nil)

	s, err := m.Create(ctx, roomFile)
	require.NoError(t, err)
	require.Equal(t, 1, m.Sweep(0))

	var racedErr error
	store.onDelete = func() {
		_, racedErr = m.Get(ctx, s.ID)
	}
	require.NoError(t, m.Delete(ctx, s.ID))

	assert.True(t, errors.Is(racedErr, ErrNotFound))
	assert.Equal(t, 0, m.Live())
	assert.Equal(t, 0, f.store.SessionCount())
}

func TestManager_FailedSaveKeepsSolve(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	// create, four keys, then the failing enter
	store := &flakyStore{MockStorage: f.store, failOn: 6}
	m := NewManager(store, f.ledger, f.pub, nil)

	s, err := m.Create(ctx, roomFile)
	require.NoError(t, err)
	for _, r := range "1115" {
		_, _, err := m.Handle(ctx, s.ID, room.Event{Type: room.EventKey, Target: "keypad_two", Key: string(r)})
		require.NoError(t, err)
	}

	out, _, err := m.Handle(ctx, s.ID, room.Event{Type: room.EventEnter, Target: "keypad_two"})
	require.Error(t, err)
	assert.Equal(t, []string{"keypad_two"}, out.NewlySolved)

	solves, err := f.ledger.Solves(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, solves, 1)
	assert.Equal(t, "keypad_two", solves[0].PuzzleID)

	published, ok := f.pub.last("solved")
	require.True(t, ok)
	assert.Equal(t, "keypad_two", published.puzzle)
	outcome, ok := f.pub.last("outcome")
	require.True(t, ok)
	assert.NotEmpty(t, outcome.signals)

	// the next change saves the solved flag
	_, _, err = m.Handle(ctx, s.ID, room.Event{Type: room.EventPause})
	require.NoError(t, err)
	stored, err := f.store.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.Snapshot.Flags["keypad_two"])
}

func TestManager_SweepKeepsRunningFade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, roomFile)
	require.NoError(t, err)

	f.typeCode(t, s.ID, "room_five", "3745")
	f.handle(t, s.ID, room.Event{Type: room.EventZoneEnter, Target: "exit_door", Tag: "Player"})
	assert.Equal(t, 0, f.manager.Sweep(0), "fade waiting on the door")

	f.manager.Tick(ctx, time.Second)
	assert.Equal(t, 0, f.manager.Sweep(0), "fade running")

	f.manager.Tick(ctx, 2*time.Second)
	assert.Equal(t, 1, f.manager.Sweep(0))
}
