package puzzle

import "fmt"

// EffectKind is the action an Effect performs on the feedback or control sink.
type EffectKind string

const (
	EffectPlayCue          EffectKind = "play_cue"
	EffectPlayDelayedCue   EffectKind = "play_delayed_cue"
	EffectSetVisual        EffectKind = "set_visual"
	EffectTriggerAnimation EffectKind = "trigger_animation"
	EffectSetActive        EffectKind = "set_active"
	EffectSetControl       EffectKind = "set_control"
)

// Effect is one declarative completion action.
//
//	play_cue           Target = cue id
//	play_delayed_cue   Target = cue id, Delay = seconds
//	set_visual         Target = object ref, Value = state id
//	trigger_animation  Target = object ref, Value = trigger name
//	set_active         Target = object ref, Active
//	set_control        Target = control id, Active
type Effect struct {
	Kind   EffectKind `json:"kind" yaml:"kind"`
	Target string     `json:"target,omitempty" yaml:"target,omitempty"`
	Value  string     `json:"value,omitempty" yaml:"value,omitempty"`
	Active bool       `json:"active,omitempty" yaml:"active,omitempty"`
	Delay  float64    `json:"delay,omitempty" yaml:"delay,omitempty"`
}

func (e Effect) String() string {
	if e.Value != "" {
		return fmt.Sprintf("%s(%s=%s)", e.Kind, e.Target, e.Value)
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.Target)
}

// Check reports a configuration problem with the effect itself, without
// looking at collaborators.
func (e Effect) Check() error {
	switch e.Kind {
	case EffectPlayCue, EffectSetActive, EffectSetControl:
		if e.Target == "" {
			return fmt.Errorf("%w: %s has no target", ErrMisconfiguredCollaborator, e.Kind)
		}
	case EffectPlayDelayedCue:
		if e.Target == "" {
			return fmt.Errorf("%w: %s has no target", ErrMisconfiguredCollaborator, e.Kind)
		}
		if e.Delay < 0 {
			return fmt.Errorf("%w: %s has negative delay", ErrInvalidConfig, e.Kind)
		}
	case EffectSetVisual, EffectTriggerAnimation:
		if e.Target == "" || e.Value == "" {
			return fmt.Errorf("%w: %s needs target and value", ErrMisconfiguredCollaborator, e.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown effect kind %q", ErrInvalidConfig, e.Kind)
	}
	return nil
}
