package puzzle

import (
	"fmt"
	"log/slog"
)

// Deps are the collaborators shared by every puzzle instance in a room.
type Deps struct {
	Registry  *Registry
	Scheduler *Scheduler
	Feedback  FeedbackSink
	Controls  ControlSink
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// CoordinatorConfig declares what happens when a puzzle is solved.
type CoordinatorConfig struct {
	Owner   string
	Effects []Effect
	// Preconditions are other puzzles that must be solved before this
	// coordinator counts as unlocked.
	Preconditions []string
	// RequireUnlocked makes OnSolved refuse to fire until Preconditions hold.
	RequireUnlocked bool
}

// Coordinator runs a puzzle's completion effects exactly once.
type Coordinator struct {
	cfg       CoordinatorConfig
	deps      Deps
	log       *slog.Logger
	applied   bool
	destroyed bool
	skipped   []error
}

// NewCoordinator creates a coordinator for cfg.Owner
func NewCoordinator(cfg CoordinatorConfig, deps Deps) *Coordinator {
	return &Coordinator{
		cfg:  cfg,
		deps: deps,
		log:  deps.logger().With("puzzle_id", cfg.Owner),
	}
}

// Applied reports whether the effects have run
func (c *Coordinator) Applied() bool { return c.applied }

// Unlocked reports whether every precondition puzzle is solved
func (c *Coordinator) Unlocked() bool {
	if len(c.cfg.Preconditions) == 0 {
		return true
	}
	return c.deps.Registry.AllSolved(c.cfg.Preconditions...)
}

// Missing returns the preconditions that are not yet solved
func (c *Coordinator) Missing() []string {
	var missing []string
	for _, id := range c.cfg.Preconditions {
		if !c.deps.Registry.Solved(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Skipped returns the effects that could not run on the last application
func (c *Coordinator) Skipped() []error {
	return c.skipped
}

// OnSolved runs the declared effects in order the first time it is called.
// Later calls, calls after Destroy, and calls while a required precondition
// is missing do nothing. Returns true only on the call that applied.
func (c *Coordinator) OnSolved() bool {
	if c.destroyed || c.applied {
		return false
	}
	if c.cfg.RequireUnlocked && !c.Unlocked() {
		c.log.Debug("Completion held back by preconditions", "missing", c.Missing())
		return false
	}
	c.applied = true
	c.skipped = nil

	for i, e := range c.cfg.Effects {
		if err := c.run(e); err != nil {
			c.skipped = append(c.skipped, fmt.Errorf("effect %d %s: %w", i, e, err))
			c.log.Warn("Skipped completion effect", "effect", e.String(), "index", i, "error", err)
		}
	}
	c.log.Debug("Completion effects applied", "effects", len(c.cfg.Effects), "skipped", len(c.skipped))
	return true
}

// MarkApplied records the effects as already run without running them. Used
// when restoring a solved puzzle from a snapshot.
func (c *Coordinator) MarkApplied() {
	c.applied = true
}

// Rearm clears the applied guard. Only an explicit puzzle reset calls this.
func (c *Coordinator) Rearm() {
	c.applied = false
	c.skipped = nil
}

// Destroy permanently disables the coordinator and cancels its pending cue
func (c *Coordinator) Destroy() {
	c.destroyed = true
	if c.deps.Scheduler != nil {
		c.deps.Scheduler.Cancel(c.cfg.Owner)
	}
}

func (c *Coordinator) run(e Effect) error {
	if err := e.Check(); err != nil {
		return err
	}
	return apply(e, c.cfg.Owner, c.deps)
}

// apply performs a single checked effect. Delayed cues are owned by owner on
// the scheduler.
func apply(e Effect, owner string, deps Deps) error {
	if e.Kind == EffectSetControl {
		if deps.Controls == nil {
			return fmt.Errorf("%w: no control sink", ErrMisconfiguredCollaborator)
		}
		deps.Controls.SetEnabled(e.Target, e.Active)
		return nil
	}

	fb := deps.Feedback
	if fb == nil {
		return fmt.Errorf("%w: no feedback sink", ErrMisconfiguredCollaborator)
	}
	switch e.Kind {
	case EffectPlayCue:
		fb.PlayImmediateCue(e.Target)
	case EffectPlayDelayedCue:
		if deps.Scheduler == nil {
			return fmt.Errorf("%w: no scheduler for delayed cue", ErrMisconfiguredCollaborator)
		}
		cue, delay := e.Target, e.Delay
		deps.Scheduler.Schedule(owner, Seconds(delay), func() {
			fb.PlayDelayedCue(cue, delay)
		})
	case EffectSetVisual:
		fb.SetVisualState(e.Target, e.Value)
	case EffectTriggerAnimation:
		fb.TriggerAnimation(e.Target, e.Value)
	case EffectSetActive:
		fb.SetActive(e.Target, e.Active)
	}
	return nil
}

// Apply runs effects outside of a coordinator, for one-off feedback such as
// zone enter/exit. Problems are logged and returned, and never stop the
// remaining effects.
func Apply(effects []Effect, owner string, deps Deps) []error {
	var skipped []error
	for i, e := range effects {
		err := e.Check()
		if err == nil {
			err = apply(e, owner, deps)
		}
		if err != nil {
			skipped = append(skipped, fmt.Errorf("effect %d %s: %w", i, e, err))
			deps.logger().Warn("Skipped effect", "owner", owner, "effect", e.String(), "error", err)
		}
	}
	return skipped
}
