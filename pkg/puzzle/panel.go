package puzzle

import (
	"errors"
	"fmt"
	"log/slog"
)

// PanelConfig describes a placement puzzle: a set of spots that each take one
// tagged piece.
type PanelConfig struct {
	ID    string `json:"id" yaml:"id"`
	Slots []Slot `json:"slots" yaml:"slots"`

	// FilledState is applied to a slot's object when a piece lands in it.
	FilledState string `json:"filled_state,omitempty" yaml:"filled_state,omitempty"`
	RejectCue   string `json:"reject_cue,omitempty" yaml:"reject_cue,omitempty"`

	// ReleaseSlots frees every spot once assembled. Completion still fires only once.
	ReleaseSlots bool `json:"release_slots,omitempty" yaml:"release_slots,omitempty"`

	OnAssembled     []Effect `json:"on_assembled,omitempty" yaml:"on_assembled,omitempty"`
	Preconditions   []string `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	RequireUnlocked bool     `json:"require_unlocked,omitempty" yaml:"require_unlocked,omitempty"`
}

// PanelState is the persisted part of a panel.
type PanelState struct {
	ID      string   `json:"id"`
	Filled  []string `json:"filled,omitempty"`
	Solved  bool     `json:"solved"`
	Applied bool     `json:"applied"`
}

// Panel couples an assembly tracker with a completion coordinator.
type Panel struct {
	cfg         PanelConfig
	deps        Deps
	log         *slog.Logger
	flag        *Flag
	tracker     *Tracker
	coordinator *Coordinator
	destroyed   bool
}

// NewPanel builds a panel and registers its solved flag
func NewPanel(cfg PanelConfig, deps Deps) (*Panel, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: panel %s has no registry", ErrInvalidConfig, cfg.ID)
	}
	tracker, err := NewTracker(cfg.Slots)
	if err != nil {
		return nil, fmt.Errorf("panel %s: %w", cfg.ID, err)
	}
	flag, err := deps.Registry.Register(cfg.ID)
	if err != nil {
		return nil, err
	}

	p := &Panel{
		cfg:     cfg,
		deps:    deps,
		log:     deps.logger().With("puzzle_id", cfg.ID, "puzzle_kind", "panel"),
		flag:    flag,
		tracker: tracker,
		coordinator: NewCoordinator(CoordinatorConfig{
			Owner:         cfg.ID,
			Effects:       cfg.OnAssembled,
			Preconditions: cfg.Preconditions,
		}, deps),
	}
	tracker.OnComplete = p.assembled
	return p, nil
}

// ID returns the panel's puzzle id
func (p *Panel) ID() string { return p.cfg.ID }

// Solved reports whether every slot has been filled
func (p *Panel) Solved() bool { return p.flag.Solved() }

// Tracker exposes the slot tracker for inspection
func (p *Panel) Tracker() *Tracker { return p.tracker }

// Coordinator exposes the completion coordinator for inspection
func (p *Panel) Coordinator() *Coordinator { return p.coordinator }

// Place puts a piece tagged tag into slotID
func (p *Panel) Place(slotID, tag string) error {
	if p.destroyed {
		return ErrDestroyed
	}
	if p.cfg.RequireUnlocked && !p.coordinator.Unlocked() {
		return ErrRejectedLocked
	}
	if err := p.tracker.FillSlot(slotID, tag); err != nil {
		p.log.Debug("Piece rejected", "slot", slotID, "tag", tag, "error", err)
		if errors.Is(err, ErrRejectedWrongFillerTag) {
			p.cue(p.cfg.RejectCue)
		}
		return err
	}
	p.log.Debug("Piece placed", "slot", slotID, "tag", tag, "filled", p.tracker.FilledCount())
	if p.cfg.FilledState != "" {
		if p.deps.Feedback == nil {
			p.log.Warn("Filled state not applied", "slot", slotID, "error", ErrMisconfiguredCollaborator)
		} else {
			p.deps.Feedback.SetVisualState(slotID, p.cfg.FilledState)
		}
	}
	return nil
}

// Reset empties every slot, clears the solved state and re-arms completion
func (p *Panel) Reset() {
	if p.destroyed {
		return
	}
	if p.deps.Scheduler != nil {
		p.deps.Scheduler.Cancel(p.cfg.ID)
	}
	p.tracker.ResetAll()
	p.flag.Clear()
	p.coordinator.Rearm()
}

// Destroy tears the panel down
func (p *Panel) Destroy() {
	p.destroyed = true
	p.coordinator.Destroy()
}

// State captures the panel for persistence
func (p *Panel) State() PanelState {
	return PanelState{
		ID:      p.cfg.ID,
		Filled:  p.tracker.filledIDs(),
		Solved:  p.Solved(),
		Applied: p.coordinator.Applied(),
	}
}

// Restore rebuilds the panel from a saved state without replaying effects
func (p *Panel) Restore(st PanelState) {
	p.tracker.restore(st.Filled, st.Solved)
	if st.Solved {
		p.flag.MarkSolved()
	}
	if st.Applied {
		p.coordinator.MarkApplied()
	}
}

func (p *Panel) assembled() {
	p.log.Info("Assembly complete")
	p.flag.MarkSolved()
	p.coordinator.OnSolved()
	if p.cfg.ReleaseSlots {
		p.tracker.ClearSlots()
	}
}

func (p *Panel) cue(id string) {
	if id == "" {
		return
	}
	if p.deps.Feedback == nil {
		p.log.Warn("Cue not played", "cue", id, "error", ErrMisconfiguredCollaborator)
		return
	}
	p.deps.Feedback.PlayImmediateCue(id)
}
