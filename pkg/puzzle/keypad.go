package puzzle

import (
	"fmt"
	"log/slog"
)

// KeypadControls names the input widgets a keypad drives.
type KeypadControls struct {
	Keys   string `json:"keys,omitempty" yaml:"keys,omitempty"`
	Delete string `json:"delete,omitempty" yaml:"delete,omitempty"`
	Enter  string `json:"enter,omitempty" yaml:"enter,omitempty"`
}

// ProgressVisual swaps an object's visual state as the entry grows, keyed by
// entry length.
type ProgressVisual struct {
	Target string         `json:"target,omitempty" yaml:"target,omitempty"`
	States map[int]string `json:"states,omitempty" yaml:"states,omitempty"`
}

// KeypadConfig is everything that differs between keypads in a room.
type KeypadConfig struct {
	ID         string `json:"id" yaml:"id"`
	TargetCode string `json:"target_code" yaml:"target_code"`
	MinLength  int    `json:"min_length" yaml:"min_length"`
	MaxLength  int    `json:"max_length" yaml:"max_length"`

	Controls KeypadControls `json:"controls,omitempty" yaml:"controls,omitempty"`
	Progress ProgressVisual `json:"progress,omitempty" yaml:"progress,omitempty"`

	// OverflowCue plays when a key is pressed at max length.
	OverflowCue string `json:"overflow_cue,omitempty" yaml:"overflow_cue,omitempty"`

	// DeniedCue plays right away on a wrong code, DeniedDelayedCue after DeniedDelay seconds.
	DeniedCue        string  `json:"denied_cue,omitempty" yaml:"denied_cue,omitempty"`
	DeniedDelayedCue string  `json:"denied_delayed_cue,omitempty" yaml:"denied_delayed_cue,omitempty"`
	DeniedDelay      float64 `json:"denied_delay,omitempty" yaml:"denied_delay,omitempty"`

	// Display is the object showing the entered text; SolvedText replaces it once solved.
	Display    string `json:"display,omitempty" yaml:"display,omitempty"`
	SolvedText string `json:"solved_text,omitempty" yaml:"solved_text,omitempty"`

	OnSolved        []Effect `json:"on_solved,omitempty" yaml:"on_solved,omitempty"`
	Preconditions   []string `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	RequireUnlocked bool     `json:"require_unlocked,omitempty" yaml:"require_unlocked,omitempty"`
}

// KeypadState is the persisted part of a keypad.
type KeypadState struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Solved  bool   `json:"solved"`
	Applied bool   `json:"applied"`
}

// Keypad is one code-entry puzzle: buffer, validator and completion
// coordinator wired to the room's shared collaborators.
type Keypad struct {
	cfg         KeypadConfig
	deps        Deps
	log         *slog.Logger
	flag        *Flag
	buffer      *Buffer
	validator   *Validator
	coordinator *Coordinator
	locked      bool
	destroyed   bool
}

// NewKeypad builds a keypad and registers its solved flag
func NewKeypad(cfg KeypadConfig, deps Deps) (*Keypad, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: keypad %s has no registry", ErrInvalidConfig, cfg.ID)
	}
	buffer, err := NewBuffer(cfg.MinLength, cfg.MaxLength)
	if err != nil {
		return nil, fmt.Errorf("keypad %s: %w", cfg.ID, err)
	}
	if n := len([]rune(cfg.TargetCode)); n != cfg.MaxLength {
		return nil, fmt.Errorf("%w: keypad %s target code has %d characters, max length is %d", ErrInvalidConfig, cfg.ID, n, cfg.MaxLength)
	}
	flag, err := deps.Registry.Register(cfg.ID)
	if err != nil {
		return nil, err
	}
	validator, err := NewValidator(cfg.TargetCode, cfg.MaxLength, flag)
	if err != nil {
		return nil, fmt.Errorf("keypad %s: %w", cfg.ID, err)
	}

	k := &Keypad{
		cfg:       cfg,
		deps:      deps,
		log:       deps.logger().With("puzzle_id", cfg.ID, "puzzle_kind", "keypad"),
		flag:      flag,
		buffer:    buffer,
		validator: validator,
		coordinator: NewCoordinator(CoordinatorConfig{
			Owner:           cfg.ID,
			Effects:         cfg.OnSolved,
			Preconditions:   cfg.Preconditions,
			RequireUnlocked: cfg.RequireUnlocked,
		}, deps),
	}
	buffer.OnChange = func(*Buffer) { k.syncControls() }
	k.syncControls()
	return k, nil
}

// ID returns the keypad's puzzle id
func (k *Keypad) ID() string { return k.cfg.ID }

// Solved reports whether the correct code has been confirmed
func (k *Keypad) Solved() bool { return k.validator.Solved() }

// Locked reports whether key and delete input is disabled
func (k *Keypad) Locked() bool { return k.locked }

// Buffer exposes the entry buffer for inspection
func (k *Keypad) Buffer() *Buffer { return k.buffer }

// Coordinator exposes the completion coordinator for inspection
func (k *Keypad) Coordinator() *Coordinator { return k.coordinator }

// Display returns what the keypad's field should show
func (k *Keypad) Display() string {
	if k.Solved() && k.cfg.SolvedText != "" {
		return k.cfg.SolvedText
	}
	return k.buffer.Text()
}

// PressKey enters label at the cursor
func (k *Keypad) PressKey(label string) error {
	if k.destroyed {
		return ErrDestroyed
	}
	if k.locked {
		return ErrInputDisabled
	}
	if err := k.buffer.Insert(label); err != nil {
		k.log.Debug("Key press ignored at max length", "length", k.buffer.Length())
		k.cue(k.cfg.OverflowCue)
		return err
	}
	k.showProgress()
	return nil
}

// PressDelete removes the selection or the character before the cursor
func (k *Keypad) PressDelete() error {
	if k.destroyed {
		return ErrDestroyed
	}
	if k.locked {
		return ErrInputDisabled
	}
	if k.buffer.DeleteBackward() {
		k.showProgress()
	}
	return nil
}

// Select forwards a selection change from the input field
func (k *Keypad) Select(anchor, focus int) error {
	if k.destroyed {
		return ErrDestroyed
	}
	if k.locked {
		return ErrInputDisabled
	}
	k.buffer.Select(anchor, focus)
	return nil
}

// PressEnter submits the entry. A match locks input and runs the completion
// effects once; repeated confirms after solving match again without
// re-running them. A mismatch plays the denied cues.
func (k *Keypad) PressEnter() (Result, error) {
	if k.destroyed {
		return NotMatched, ErrDestroyed
	}
	if !k.buffer.ConfirmEnabled() {
		return NotMatched, ErrInputDisabled
	}
	if k.cfg.RequireUnlocked && !k.coordinator.Unlocked() {
		k.log.Debug("Keypad not unlocked yet", "missing", k.coordinator.Missing())
		k.cue(k.cfg.DeniedCue)
		return NotMatched, ErrRejectedLocked
	}

	result, err := k.validator.Validate(k.buffer)
	if result == NotMatched {
		k.log.Debug("Incorrect code entered", "length", k.buffer.Length())
		k.cue(k.cfg.DeniedCue)
		k.scheduleDenied()
		return result, err
	}

	if !k.locked {
		k.log.Info("Correct code entered")
		k.lock()
	}
	k.coordinator.OnSolved()
	return Matched, nil
}

// Reset clears the entry and the solved state, cancels the pending cue and
// re-arms completion.
func (k *Keypad) Reset() {
	if k.destroyed {
		return
	}
	if k.deps.Scheduler != nil {
		k.deps.Scheduler.Cancel(k.cfg.ID)
	}
	k.flag.Clear()
	k.coordinator.Rearm()
	k.locked = false
	k.buffer.Clear()
	k.showProgress()
}

// Destroy tears the keypad down. Pending cues are cancelled and completion
// can no longer fire.
func (k *Keypad) Destroy() {
	k.destroyed = true
	k.coordinator.Destroy()
}

// State captures the keypad for persistence
func (k *Keypad) State() KeypadState {
	return KeypadState{
		ID:      k.cfg.ID,
		Text:    k.buffer.Text(),
		Solved:  k.Solved(),
		Applied: k.coordinator.Applied(),
	}
}

// Restore rebuilds the keypad from a saved state without replaying effects
func (k *Keypad) Restore(st KeypadState) {
	k.buffer.Set(st.Text)
	if st.Solved {
		k.flag.MarkSolved()
		k.lock()
	}
	if st.Applied {
		k.coordinator.MarkApplied()
	}
}

func (k *Keypad) lock() {
	k.locked = true
	k.syncControls()
	if k.cfg.Display != "" && k.cfg.SolvedText != "" {
		k.visual(k.cfg.Display, k.cfg.SolvedText)
	}
}

func (k *Keypad) syncControls() {
	if k.deps.Controls == nil {
		return
	}
	c := k.cfg.Controls
	if c.Keys != "" {
		k.deps.Controls.SetEnabled(c.Keys, !k.locked && k.buffer.EntryEnabled())
	}
	if c.Delete != "" {
		k.deps.Controls.SetEnabled(c.Delete, !k.locked)
	}
	if c.Enter != "" {
		k.deps.Controls.SetEnabled(c.Enter, k.buffer.ConfirmEnabled())
	}
}

func (k *Keypad) showProgress() {
	p := k.cfg.Progress
	if p.Target == "" {
		return
	}
	if state, ok := p.States[k.buffer.Length()]; ok {
		k.visual(p.Target, state)
	}
}

func (k *Keypad) scheduleDenied() {
	if k.cfg.DeniedDelayedCue == "" {
		return
	}
	if k.deps.Scheduler == nil || k.deps.Feedback == nil {
		k.log.Warn("Delayed denied cue not configured", "cue", k.cfg.DeniedDelayedCue, "error", ErrMisconfiguredCollaborator)
		return
	}
	cue, delay, fb := k.cfg.DeniedDelayedCue, k.cfg.DeniedDelay, k.deps.Feedback
	k.deps.Scheduler.Schedule(k.cfg.ID, Seconds(delay), func() {
		fb.PlayDelayedCue(cue, delay)
	})
}

func (k *Keypad) cue(id string) {
	if id == "" {
		return
	}
	if k.deps.Feedback == nil {
		k.log.Warn("Cue not played", "cue", id, "error", ErrMisconfiguredCollaborator)
		return
	}
	k.deps.Feedback.PlayImmediateCue(id)
}

func (k *Keypad) visual(target, state string) {
	if k.deps.Feedback == nil {
		k.log.Warn("Visual state not applied", "target", target, "error", ErrMisconfiguredCollaborator)
		return
	}
	k.deps.Feedback.SetVisualState(target, state)
}
