package puzzle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keypadTwoConfig() KeypadConfig {
	return KeypadConfig{
		ID:         "keypad_two",
		TargetCode: "1115",
		MinLength:  3,
		MaxLength:  4,
		Controls:   KeypadControls{Keys: "keys", Delete: "delete", Enter: "enter"},
		Progress: ProgressVisual{
			Target: "tv",
			States: map[int]string{0: "tv_off", 1: "tv_one", 2: "tv_two", 3: "tv_three", 4: "tv_four"},
		},
		OverflowCue:      "beep",
		DeniedCue:        "denied",
		DeniedDelayedCue: "try_again",
		DeniedDelay:      1.5,
		Display:          "display",
		SolvedText:       "7",
		OnSolved: []Effect{
			{Kind: EffectPlayCue, Target: "granted"},
			{Kind: EffectSetVisual, Target: "tv", Value: "tv_correct"},
		},
	}
}

func newTestKeypad(t *testing.T, cfg KeypadConfig) (*Keypad, Deps, *Recorder) {
	t.Helper()
	deps, rec := newTestDeps(t)
	k, err := NewKeypad(cfg, deps)
	require.NoError(t, err)
	rec.Drain()
	return k, deps, rec
}

func pressAll(t *testing.T, k *Keypad, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, k.PressKey(key))
	}
}

func TestKeypad_CorrectCode(t *testing.T) {
	k, deps, rec := newTestKeypad(t, keypadTwoConfig())

	pressAll(t, k, "1", "1")
	enter, _ := lastControl(rec.Signals(), "enter")
	assert.False(t, enter, "confirm disabled below min length")

	pressAll(t, k, "1")
	enter, _ = lastControl(rec.Signals(), "enter")
	assert.True(t, enter, "confirm enabled at min length")

	pressAll(t, k, "5")
	keys, _ := lastControl(rec.Signals(), "keys")
	assert.False(t, keys, "entry disabled at max length")

	result, err := k.PressEnter()
	require.NoError(t, err)
	assert.Equal(t, Matched, result)
	assert.True(t, k.Solved())
	assert.True(t, deps.Registry.Solved("keypad_two"))
	assert.Equal(t, 1, rec.Count(SignalCue, "granted"))
	assert.Equal(t, "7", k.Display())

	deleteOn, _ := lastControl(rec.Signals(), "delete")
	assert.False(t, deleteOn, "delete disabled after solve")

	// A second confirm matches again without re-running effects
	result, err = k.PressEnter()
	require.NoError(t, err)
	assert.Equal(t, Matched, result)
	assert.Equal(t, 1, rec.Count(SignalCue, "granted"))
}

func TestKeypad_WrongCode(t *testing.T) {
	k, deps, rec := newTestKeypad(t, keypadTwoConfig())

	pressAll(t, k, "9", "9", "9", "9")
	result, err := k.PressEnter()
	assert.Equal(t, NotMatched, result)
	assert.ErrorIs(t, err, ErrRejectedInvalidCode)
	assert.False(t, k.Solved())
	assert.Equal(t, 1, rec.Count(SignalCue, "denied"))
	assert.Equal(t, 0, rec.Count(SignalCue, "granted"))

	deps.Scheduler.Advance(time.Second)
	assert.Equal(t, 0, rec.Count(SignalDelayedCue, "try_again"))
	deps.Scheduler.Advance(time.Second)
	assert.Equal(t, 1, rec.Count(SignalDelayedCue, "try_again"))
}

func TestKeypad_DeniedCueLastWriteWins(t *testing.T) {
	k, deps, rec := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "9", "9", "9")

	_, _ = k.PressEnter()
	deps.Scheduler.Advance(time.Second)
	_, _ = k.PressEnter()

	deps.Scheduler.Advance(time.Second) // first cue would be due at 1.5s
	assert.Equal(t, 0, rec.Count(SignalDelayedCue, "try_again"))

	deps.Scheduler.Advance(time.Second)
	assert.Equal(t, 1, rec.Count(SignalDelayedCue, "try_again"))
	assert.Equal(t, 2, rec.Count(SignalCue, "denied"))
}

func TestKeypad_Overflow(t *testing.T) {
	k, _, rec := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "1", "2", "3", "4")

	err := k.PressKey("5")
	assert.ErrorIs(t, err, ErrRejectedOverflow)
	assert.Equal(t, 4, k.Buffer().Length())
	assert.Equal(t, "1234", k.Buffer().Text())
	assert.Equal(t, 1, rec.Count(SignalCue, "beep"))
}

func TestKeypad_ConfirmBelowMinLength(t *testing.T) {
	k, _, _ := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "1", "1")

	result, err := k.PressEnter()
	assert.Equal(t, NotMatched, result)
	assert.ErrorIs(t, err, ErrInputDisabled)
}

func TestKeypad_ConfirmBetweenMinAndMax(t *testing.T) {
	k, _, rec := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "1", "1", "1")

	result, err := k.PressEnter()
	assert.Equal(t, NotMatched, result)
	assert.ErrorIs(t, err, ErrRejectedInvalidCode)
	assert.Equal(t, 1, rec.Count(SignalCue, "denied"))
}

func TestKeypad_ProgressVisuals(t *testing.T) {
	k, _, rec := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "1", "1")
	require.NoError(t, k.PressDelete())

	var states []string
	for _, s := range rec.Signals() {
		if s.Kind == SignalVisual && s.Target == "tv" {
			states = append(states, s.Value)
		}
	}
	assert.Equal(t, []string{"tv_one", "tv_two", "tv_one"}, states)
}

func TestKeypad_InputDisabledAfterSolve(t *testing.T) {
	k, _, _ := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "1", "1", "1", "5")
	_, err := k.PressEnter()
	require.NoError(t, err)

	assert.ErrorIs(t, k.PressKey("1"), ErrInputDisabled)
	assert.ErrorIs(t, k.PressDelete(), ErrInputDisabled)
	assert.ErrorIs(t, k.Select(0, 1), ErrInputDisabled)
	assert.Equal(t, "1115", k.Buffer().Text())
}

func TestKeypad_Reset(t *testing.T) {
	k, deps, rec := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "9", "9", "9")
	_, _ = k.PressEnter()
	require.True(t, deps.Scheduler.Pending("keypad_two"))

	k.Reset()
	assert.False(t, deps.Scheduler.Pending("keypad_two"))
	assert.Equal(t, 0, k.Buffer().Length())

	deps.Scheduler.Advance(5 * time.Second)
	assert.Equal(t, 0, rec.Count(SignalDelayedCue, "try_again"))

	pressAll(t, k, "1", "1", "1", "5")
	_, err := k.PressEnter()
	require.NoError(t, err)
	k.Reset()
	assert.False(t, k.Solved())
	assert.False(t, k.Locked())
	pressAll(t, k, "1", "1", "1", "5")
	_, err = k.PressEnter()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Count(SignalCue, "granted"), "reset re-arms completion")
}

func TestKeypad_Destroy(t *testing.T) {
	k, deps, rec := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "9", "9", "9")
	_, _ = k.PressEnter()

	k.Destroy()
	deps.Scheduler.Advance(5 * time.Second)
	assert.Equal(t, 0, rec.Count(SignalDelayedCue, "try_again"))

	assert.ErrorIs(t, k.PressKey("1"), ErrDestroyed)
	_, err := k.PressEnter()
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.False(t, k.Solved())
}

func TestKeypad_RequireUnlocked(t *testing.T) {
	deps, rec := newTestDeps(t)
	shift, err := deps.Registry.Register("shift")
	require.NoError(t, err)

	cfg := keypadTwoConfig()
	cfg.Preconditions = []string{"shift"}
	cfg.RequireUnlocked = true
	k, err := NewKeypad(cfg, deps)
	require.NoError(t, err)

	pressAll(t, k, "1", "1", "1", "5")
	result, err := k.PressEnter()
	assert.Equal(t, NotMatched, result)
	assert.ErrorIs(t, err, ErrRejectedLocked)
	assert.False(t, k.Solved())

	shift.MarkSolved()
	result, err = k.PressEnter()
	require.NoError(t, err)
	assert.Equal(t, Matched, result)
	assert.Equal(t, 1, rec.Count(SignalCue, "granted"))
}

func TestKeypad_StateRestore(t *testing.T) {
	k, _, _ := newTestKeypad(t, keypadTwoConfig())
	pressAll(t, k, "1", "1", "1", "5")
	_, err := k.PressEnter()
	require.NoError(t, err)
	st := k.State()
	assert.Equal(t, KeypadState{ID: "keypad_two", Text: "1115", Solved: true, Applied: true}, st)

	restored, _, rec := newTestKeypad(t, keypadTwoConfig())
	restored.Restore(st)
	assert.True(t, restored.Solved())
	assert.True(t, restored.Locked())

	_, err = restored.PressEnter()
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Count(SignalCue, "granted"), "restore does not replay effects")
}

func TestNewKeypad_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*KeypadConfig)
	}{
		{"code longer than max", func(c *KeypadConfig) { c.TargetCode = "11155" }},
		{"code shorter than max", func(c *KeypadConfig) { c.TargetCode = "111" }},
		{"min above max", func(c *KeypadConfig) { c.MinLength = 5 }},
		{"empty id", func(c *KeypadConfig) { c.ID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := newTestDeps(t)
			cfg := keypadTwoConfig()
			tt.modify(&cfg)
			_, err := NewKeypad(cfg, deps)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewKeypad_DuplicateID(t *testing.T) {
	deps, _ := newTestDeps(t)
	_, err := NewKeypad(keypadTwoConfig(), deps)
	require.NoError(t, err)
	_, err = NewKeypad(keypadTwoConfig(), deps)
	assert.ErrorIs(t, err, ErrDuplicateID)
}
