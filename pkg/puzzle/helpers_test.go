package puzzle

import (
	"log/slog"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func newTestDeps(t *testing.T) (Deps, *Recorder) {
	t.Helper()
	rec := NewRecorder()
	return Deps{
		Registry:  NewRegistry(),
		Scheduler: NewScheduler(),
		Feedback:  rec,
		Controls:  rec,
		Logger:    testLogger(),
	}, rec
}

// lastControl returns the most recent enable state sent for controlID
func lastControl(signals []Signal, controlID string) (enabled bool, found bool) {
	for _, s := range signals {
		if s.Kind == SignalControl && s.Target == controlID {
			enabled, found = s.On, true
		}
	}
	return enabled, found
}
