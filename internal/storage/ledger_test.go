package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	store "github.com/jwebster45206/escape-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := OpenLedger(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_RecordAndList(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	id := uuid.New()
	base := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.RecordSolve(ctx, store.Solve{SessionID: id, Room: "Escape Room", PuzzleID: "keypad_two", SolvedAt: base}))
	require.NoError(t, l.RecordSolve(ctx, store.Solve{SessionID: id, Room: "Escape Room", PuzzleID: "keypad_one", SolvedAt: base.Add(time.Minute)}))

	solves, err := l.Solves(ctx, id)
	require.NoError(t, err)
	require.Len(t, solves, 2)
	assert.Equal(t, "keypad_two", solves[0].PuzzleID)
	assert.Equal(t, "keypad_one", solves[1].PuzzleID)
	assert.Equal(t, id, solves[0].SessionID)
	assert.True(t, solves[0].SolvedAt.Equal(base))
}

func TestLedger_DuplicateKeepsFirst(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	id := uuid.New()
	first := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.RecordSolve(ctx, store.Solve{SessionID: id, Room: "Escape Room", PuzzleID: "note", SolvedAt: first}))
	require.NoError(t, l.RecordSolve(ctx, store.Solve{SessionID: id, Room: "Escape Room", PuzzleID: "note", SolvedAt: first.Add(time.Hour)}))

	solves, err := l.Solves(ctx, id)
	require.NoError(t, err)
	require.Len(t, solves, 1)
	assert.True(t, solves[0].SolvedAt.Equal(first))
}

func TestLedger_Stats(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := uuid.New()
		require.NoError(t, l.RecordSolve(ctx, store.Solve{SessionID: id, Room: "Escape Room", PuzzleID: "keypad_two"}))
		if i == 0 {
			require.NoError(t, l.RecordSolve(ctx, store.Solve{SessionID: id, Room: "Escape Room", PuzzleID: "room_five"}))
		}
	}
	require.NoError(t, l.RecordSolve(ctx, store.Solve{SessionID: uuid.New(), Room: "Other Room", PuzzleID: "keypad_two"}))

	stats, err := l.Stats(ctx, "Escape Room")
	require.NoError(t, err)
	assert.Equal(t, []store.PuzzleStat{
		{Room: "Escape Room", PuzzleID: "keypad_two", Solves: 3},
		{Room: "Escape Room", PuzzleID: "room_five", Solves: 1},
	}, stats)

	empty, err := l.Stats(ctx, "Nowhere")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLedger_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	id := uuid.New()

	l, err := OpenLedger(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, l.RecordSolve(ctx, store.Solve{SessionID: id, Room: "Escape Room", PuzzleID: "tracing_panel"}))
	require.NoError(t, l.Close())

	l, err = OpenLedger(path, testLogger())
	require.NoError(t, err)
	defer l.Close()
	solves, err := l.Solves(ctx, id)
	require.NoError(t, err)
	assert.Len(t, solves, 1)
}
