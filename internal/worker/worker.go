package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// maxStep caps how much time one tick may advance, so a stalled process
// does not fire a burst of delayed cues at once.
const maxStep = time.Second

// Ticker is what the worker drives: the live session manager.
type Ticker interface {
	Tick(ctx context.Context, dt time.Duration) int
	Sweep(idle time.Duration) int
}

// Worker advances live sessions on a fixed interval and unloads idle ones
type Worker struct {
	id       string
	ticker   Ticker
	interval time.Duration
	idle     time.Duration
	sweep    time.Duration
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new worker instance. idle is how long a session may go
// without input before it is unloaded; zero disables sweeping.
func New(ticker Ticker, interval, idle time.Duration, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		id:       workerID,
		ticker:   ticker,
		interval: interval,
		idle:     idle,
		sweep:    time.Minute,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the worker id
func (w *Worker) ID() string {
	return w.id
}

// Start ticks until Stop is called. It blocks.
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id, "interval", w.interval)

	tick := time.NewTicker(w.interval)
	defer tick.Stop()
	sweep := time.NewTicker(w.sweep)
	defer sweep.Stop()

	last := time.Now()
	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		case now := <-tick.C:
			dt := now.Sub(last)
			last = now
			if dt > maxStep {
				w.log.Debug("Tick step capped", "worker_id", w.id, "elapsed", dt)
				dt = maxStep
			}
			if fired := w.ticker.Tick(w.ctx, dt); fired > 0 {
				w.log.Debug("Delayed callbacks fired", "worker_id", w.id, "count", fired)
			}
		case <-sweep.C:
			if w.idle > 0 {
				if n := w.ticker.Sweep(w.idle); n > 0 {
					w.log.Info("Idle sessions unloaded", "worker_id", w.id, "count", n)
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}
