package room

import (
	"log/slog"

	"github.com/jwebster45206/escape-engine/pkg/puzzle"
)

// ZoneKind selects what a trigger volume does beyond its effects.
type ZoneKind string

const (
	// ZoneTrigger only runs its enter and exit effects.
	ZoneTrigger ZoneKind = "trigger"
	// ZoneFade runs its enter effects, then fades the screen out.
	ZoneFade ZoneKind = "fade"
	// ZoneTeleport moves the player for a health cost and refuses at zero health.
	ZoneTeleport ZoneKind = "teleport"
)

// ZoneConfig is a trigger volume in the room.
type ZoneConfig struct {
	ID   string   `json:"id" yaml:"id"`
	Kind ZoneKind `json:"kind" yaml:"kind"`

	// Tag limits the zone to bodies carrying this tag. Empty accepts any body.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`

	// Requires lists puzzles that must be solved before the zone reacts.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// Once makes the zone react to the first accepted entry only.
	Once bool `json:"once,omitempty" yaml:"once,omitempty"`

	OnEnter   []puzzle.Effect `json:"on_enter,omitempty" yaml:"on_enter,omitempty"`
	OnExit    []puzzle.Effect `json:"on_exit,omitempty" yaml:"on_exit,omitempty"`
	DeniedCue string          `json:"denied_cue,omitempty" yaml:"denied_cue,omitempty"`

	Fade       *FadeConfig `json:"fade,omitempty" yaml:"fade,omitempty"`
	HealthCost float64     `json:"health_cost,omitempty" yaml:"health_cost,omitempty"`
}

// ZoneState is the persisted part of a zone.
type ZoneState struct {
	ID          string    `json:"id"`
	Fired       bool      `json:"fired,omitempty"`
	FadeState   FadeState `json:"fade_state,omitempty"`
	FadeElapsed float64   `json:"fade_elapsed,omitempty"`
}

type zone struct {
	cfg   ZoneConfig
	log   *slog.Logger
	fade  *Fade
	fired bool
}

func newZone(cfg ZoneConfig, logger *slog.Logger) *zone {
	z := &zone{
		cfg: cfg,
		log: logger.With("zone_id", cfg.ID, "zone_kind", string(cfg.Kind)),
	}
	if cfg.Kind == ZoneFade && cfg.Fade != nil {
		z.fade = NewFade(*cfg.Fade)
	}
	return z
}

// accepts reports whether a body with tag is one this zone reacts to
func (z *zone) accepts(tag string) bool {
	return z.cfg.Tag == "" || z.cfg.Tag == tag
}

func (z *zone) owner() string { return "zone:" + z.cfg.ID }
func (z *zone) fadeOwner() string { return "zone:" + z.cfg.ID + ":fade" }

func (z *zone) state() ZoneState {
	st := ZoneState{ID: z.cfg.ID, Fired: z.fired}
	if z.fade != nil && z.fade.Busy() {
		st.FadeState = z.fade.State()
		st.FadeElapsed = z.fade.elapsed.Seconds()
	}
	return st
}

func (z *zone) restore(st ZoneState) {
	z.fired = st.Fired
	if z.fade != nil {
		z.fade.restore(st.FadeState, puzzle.Seconds(st.FadeElapsed))
	}
}

func (z *zone) reset() {
	z.fired = false
	if z.fade != nil {
		z.fade.reset()
	}
}
