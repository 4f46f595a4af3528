package puzzle

import (
	"fmt"
	"log/slog"
)

// SwitchConfig describes a one-shot interaction: a button press or a grab
// that fires its effects once, optionally only after other puzzles are solved.
type SwitchConfig struct {
	ID            string   `json:"id" yaml:"id"`
	OnActivate    []Effect `json:"on_activate,omitempty" yaml:"on_activate,omitempty"`
	Preconditions []string `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`

	// LockedCue plays when the switch is used before its preconditions hold.
	LockedCue string `json:"locked_cue,omitempty" yaml:"locked_cue,omitempty"`
}

// SwitchState is the persisted part of a switch.
type SwitchState struct {
	ID        string `json:"id"`
	Activated bool   `json:"activated"`
}

// Switch is solved by activating it. Activations before the preconditions
// hold are rejected and can be retried; activations after the first
// successful one do nothing.
type Switch struct {
	cfg         SwitchConfig
	deps        Deps
	log         *slog.Logger
	flag        *Flag
	coordinator *Coordinator
	destroyed   bool
}

// NewSwitch builds a switch and registers its solved flag
func NewSwitch(cfg SwitchConfig, deps Deps) (*Switch, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: switch %s has no registry", ErrInvalidConfig, cfg.ID)
	}
	flag, err := deps.Registry.Register(cfg.ID)
	if err != nil {
		return nil, err
	}
	return &Switch{
		cfg:  cfg,
		deps: deps,
		log:  deps.logger().With("puzzle_id", cfg.ID, "puzzle_kind", "switch"),
		flag: flag,
		coordinator: NewCoordinator(CoordinatorConfig{
			Owner:           cfg.ID,
			Effects:         cfg.OnActivate,
			Preconditions:   cfg.Preconditions,
			RequireUnlocked: true,
		}, deps),
	}, nil
}

// ID returns the switch's puzzle id
func (s *Switch) ID() string { return s.cfg.ID }

// Activated reports whether the switch has fired
func (s *Switch) Activated() bool { return s.flag.Solved() }

// Coordinator exposes the completion coordinator for inspection
func (s *Switch) Coordinator() *Coordinator { return s.coordinator }

// Activate fires the switch. It returns ErrRejectedLocked while preconditions
// are missing.
func (s *Switch) Activate() error {
	if s.destroyed {
		return ErrDestroyed
	}
	if s.flag.Solved() {
		s.log.Debug("Switch already activated, ignoring")
		return nil
	}
	if !s.coordinator.Unlocked() {
		s.log.Debug("Switch locked", "missing", s.coordinator.Missing())
		if s.cfg.LockedCue != "" {
			if s.deps.Feedback != nil {
				s.deps.Feedback.PlayImmediateCue(s.cfg.LockedCue)
			} else {
				s.log.Warn("Cue not played", "cue", s.cfg.LockedCue, "error", ErrMisconfiguredCollaborator)
			}
		}
		return ErrRejectedLocked
	}
	s.flag.MarkSolved()
	s.coordinator.OnSolved()
	s.log.Info("Switch activated")
	return nil
}

// Reset returns the switch to unactivated
func (s *Switch) Reset() {
	if s.destroyed {
		return
	}
	if s.deps.Scheduler != nil {
		s.deps.Scheduler.Cancel(s.cfg.ID)
	}
	s.flag.Clear()
	s.coordinator.Rearm()
}

// Destroy tears the switch down
func (s *Switch) Destroy() {
	s.destroyed = true
	s.coordinator.Destroy()
}

// State captures the switch for persistence
func (s *Switch) State() SwitchState {
	return SwitchState{ID: s.cfg.ID, Activated: s.Activated()}
}

// Restore rebuilds the switch from a saved state without replaying effects
func (s *Switch) Restore(st SwitchState) {
	if st.Activated {
		s.flag.MarkSolved()
		s.coordinator.MarkApplied()
	}
}
