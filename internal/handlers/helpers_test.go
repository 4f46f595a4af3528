package handlers

import (
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/escape-engine/internal/services/events"
	"github.com/jwebster45206/escape-engine/internal/services/sessions"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testRoomFile = "escape_room.yaml"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestStorage(t *testing.T) *storage.MockStorage {
	t.Helper()
	def, err := room.Load("../../data/rooms/" + testRoomFile)
	require.NoError(t, err)
	store := storage.NewMockStorage()
	store.AddRoom(testRoomFile, def)
	return store
}

// newTestManager builds a manager without a publisher
func newTestManager(t *testing.T) (*sessions.Manager, *storage.MockStorage) {
	t.Helper()
	store := newTestStorage(t)
	return sessions.NewManager(store, storage.NewMockLedger(), nil, testLogger()), store
}

// newBroadcastManager builds a manager that publishes to a miniredis instance
func newBroadcastManager(t *testing.T) (*sessions.Manager, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	pub := events.NewBroadcaster(client, testLogger())
	return sessions.NewManager(newTestStorage(t), storage.NewMockLedger(), pub, testLogger()), client
}
