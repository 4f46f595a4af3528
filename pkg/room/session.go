package room

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/escape-engine/pkg/puzzle"
)

const startOwner = "room:start"

// Session is one live playthrough of a room. All puzzles share one registry
// and one scheduler, and every feedback call goes to the session's sink.
//
// A Session is not safe for concurrent use. Callers serialize Handle, Tick and
// the other methods.
type Session struct {
	def       *Definition
	deps      puzzle.Deps
	log       *slog.Logger
	keypads   map[string]*puzzle.Keypad
	panels    map[string]*puzzle.Panel
	switches  map[string]*puzzle.Switch
	zones     map[string]*zone
	zoneOrder []string
	vitals    *Vitals
	paused    bool
	destroyed bool
}

// NewSession validates def and builds every puzzle in it. A nil sink discards
// feedback.
func NewSession(def *Definition, sink puzzle.Sink, logger *slog.Logger) (*Session, error) {
	if def == nil {
		return nil, fmt.Errorf("room definition is required")
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room %q: %w", def.Name, err)
	}
	if sink == nil {
		sink = puzzle.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("room", def.Name)

	s := &Session{
		def: def,
		deps: puzzle.Deps{
			Registry:  puzzle.NewRegistry(),
			Scheduler: puzzle.NewScheduler(),
			Feedback:  sink,
			Controls:  sink,
			Logger:    logger,
		},
		log:      logger,
		keypads:  make(map[string]*puzzle.Keypad, len(def.Keypads)),
		panels:   make(map[string]*puzzle.Panel, len(def.Panels)),
		switches: make(map[string]*puzzle.Switch, len(def.Switches)),
		zones:    make(map[string]*zone, len(def.Zones)),
	}

	for _, cfg := range def.Keypads {
		k, err := puzzle.NewKeypad(cfg, s.deps)
		if err != nil {
			return nil, fmt.Errorf("failed to build keypad: %w", err)
		}
		s.keypads[cfg.ID] = k
	}
	for _, cfg := range def.Panels {
		p, err := puzzle.NewPanel(cfg, s.deps)
		if err != nil {
			return nil, fmt.Errorf("failed to build panel: %w", err)
		}
		s.panels[cfg.ID] = p
	}
	for _, cfg := range def.Switches {
		sw, err := puzzle.NewSwitch(cfg, s.deps)
		if err != nil {
			return nil, fmt.Errorf("failed to build switch: %w", err)
		}
		s.switches[cfg.ID] = sw
	}
	for _, cfg := range def.Zones {
		s.zones[cfg.ID] = newZone(cfg, logger)
		s.zoneOrder = append(s.zoneOrder, cfg.ID)
	}
	if def.Vitals != nil {
		v, err := NewVitals(def.Vitals.Max)
		if err != nil {
			return nil, err
		}
		s.vitals = v
	}

	s.start()
	s.log.Debug("Session started",
		"keypads", len(s.keypads),
		"panels", len(s.panels),
		"switches", len(s.switches),
		"zones", len(s.zones))
	return s, nil
}

// start applies the room's opening state. It runs after every puzzle has
// synced its controls, so OnStart can override them.
func (s *Session) start() {
	puzzle.Apply(s.def.OnStart, startOwner, s.deps)
	if s.def.Pause != nil {
		s.deps.Feedback.SetActive(s.def.Pause.Menu, false)
	}
	s.publishHealth()
}

// Definition returns the room the session plays
func (s *Session) Definition() *Definition { return s.def }

// Registry exposes the solved flags for reading
func (s *Session) Registry() *puzzle.Registry { return s.deps.Registry }

// Now returns the session clock
func (s *Session) Now() time.Duration { return s.deps.Scheduler.Now() }

// Paused reports whether the pause menu is open
func (s *Session) Paused() bool { return s.paused }

// Destroyed reports whether the session has been torn down
func (s *Session) Destroyed() bool { return s.destroyed }

// Vitals returns the health pool, or nil when the room has none
func (s *Session) Vitals() *Vitals { return s.vitals }

// Keypad returns the keypad with id, or nil
func (s *Session) Keypad(id string) *puzzle.Keypad { return s.keypads[id] }

// Panel returns the panel with id, or nil
func (s *Session) Panel(id string) *puzzle.Panel { return s.panels[id] }

// Switch returns the switch with id, or nil
func (s *Session) Switch(id string) *puzzle.Switch { return s.switches[id] }

// Progress counts solved puzzles
func (s *Session) Progress() (solved, total int) {
	for _, id := range s.def.PuzzleIDs() {
		if s.deps.Registry.Solved(id) {
			solved++
		}
	}
	return solved, len(s.def.PuzzleIDs())
}

// Complete reports whether every puzzle in the room is solved
func (s *Session) Complete() bool {
	solved, total := s.Progress()
	return total > 0 && solved == total
}

// Busy reports whether a running clock would still change the session: a
// delayed cue is pending or a fade has not finished. Paused and destroyed
// sessions are never busy.
func (s *Session) Busy() bool {
	if s.destroyed || s.paused {
		return false
	}
	if s.deps.Scheduler.Len() > 0 {
		return true
	}
	for _, z := range s.zones {
		if z.fade != nil && (z.fade.State() == FadeWaiting || z.fade.State() == FadeRunning) {
			return true
		}
	}
	return false
}

// Handle applies one host event. Rejections come back in the Outcome; the
// error is reserved for events that do not fit the room.
func (s *Session) Handle(ev Event) (Outcome, error) {
	out := Outcome{Type: ev.Type, Target: ev.Target}
	if s.destroyed {
		return out, puzzle.ErrDestroyed
	}

	before := s.deps.Registry.Snapshot()
	err := s.dispatch(ev, &out)
	if err != nil && hardError(err) {
		s.log.Debug("Event refused", "type", ev.Type, "target", ev.Target, "error", err)
		return out, err
	}
	if err != nil {
		out.Err = err
		out.Rejection = err.Error()
	} else {
		out.Accepted = true
	}
	out.NewlySolved = newlySolved(before, s.deps.Registry.Snapshot())
	for _, id := range out.NewlySolved {
		s.log.Info("Puzzle solved", "puzzle_id", id)
	}
	return out, nil
}

func (s *Session) dispatch(ev Event, out *Outcome) error {
	switch ev.Type {
	case EventKey, EventDelete, EventEnter, EventSelect:
		k, ok := s.keypads[ev.Target]
		if !ok {
			return fmt.Errorf("%w: keypad %q", ErrUnknownTarget, ev.Target)
		}
		switch ev.Type {
		case EventKey:
			return k.PressKey(ev.Key)
		case EventDelete:
			return k.PressDelete()
		case EventSelect:
			return k.Select(ev.Anchor, ev.Focus)
		}
		result, err := k.PressEnter()
		out.Result = result.String()
		return err

	case EventPlace:
		p, ok := s.panels[ev.Target]
		if !ok {
			return fmt.Errorf("%w: panel %q", ErrUnknownTarget, ev.Target)
		}
		return p.Place(ev.Slot, ev.Tag)

	case EventGrab, EventPress:
		sw, ok := s.switches[ev.Target]
		if !ok {
			return fmt.Errorf("%w: switch %q", ErrUnknownTarget, ev.Target)
		}
		return sw.Activate()

	case EventZoneEnter, EventZoneExit:
		z, ok := s.zones[ev.Target]
		if !ok {
			return fmt.Errorf("%w: zone %q", ErrUnknownTarget, ev.Target)
		}
		if ev.Type == EventZoneEnter {
			return s.enterZone(z, ev.Tag)
		}
		return s.exitZone(z, ev.Tag)

	case EventPause:
		s.setPaused(!s.paused)
		out.Result = "resumed"
		if s.paused {
			out.Result = "paused"
		}
		return nil

	case EventDamage:
		if s.vitals == nil {
			return fmt.Errorf("%w: room has no vitals", ErrUnknownTarget)
		}
		s.damage(ev.Amount)
		out.Result = formatFraction(s.vitals.Fraction())
		return nil

	case EventReset:
		return s.resetTarget(ev.Target)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}

func (s *Session) enterZone(z *zone, tag string) error {
	if !z.accepts(tag) {
		return fmt.Errorf("%w: zone %s does not react to %q", ErrIgnored, z.cfg.ID, tag)
	}
	if !s.deps.Registry.AllSolved(z.cfg.Requires...) {
		z.log.Debug("Zone locked")
		s.cue(z.cfg.DeniedCue)
		return puzzle.ErrRejectedLocked
	}
	if z.cfg.Once && z.fired {
		return fmt.Errorf("%w: zone %s already fired", ErrIgnored, z.cfg.ID)
	}

	switch z.cfg.Kind {
	case ZoneFade:
		if z.fade.Busy() {
			return fmt.Errorf("%w: zone %s is already transitioning", ErrIgnored, z.cfg.ID)
		}
		z.fired = true
		puzzle.Apply(z.cfg.OnEnter, z.owner(), s.deps)
		z.fade.wait()
		s.deps.Scheduler.Schedule(z.fadeOwner(), puzzle.Seconds(z.cfg.Fade.Delay), func() {
			z.fade.begin()
			s.publishFade(z)
		})

	case ZoneTeleport:
		if !s.vitals.Alive() {
			z.log.Debug("Teleport refused")
			s.cue(z.cfg.DeniedCue)
			return ErrNoHealth
		}
		z.fired = true
		puzzle.Apply(z.cfg.OnEnter, z.owner(), s.deps)
		s.damage(z.cfg.HealthCost)

	default:
		z.fired = true
		puzzle.Apply(z.cfg.OnEnter, z.owner(), s.deps)
	}
	z.log.Debug("Zone entered", "tag", tag)
	return nil
}

func (s *Session) exitZone(z *zone, tag string) error {
	if !z.accepts(tag) {
		return fmt.Errorf("%w: zone %s does not react to %q", ErrIgnored, z.cfg.ID, tag)
	}
	if !s.deps.Registry.AllSolved(z.cfg.Requires...) {
		return puzzle.ErrRejectedLocked
	}
	puzzle.Apply(z.cfg.OnExit, z.owner(), s.deps)
	z.log.Debug("Zone exited", "tag", tag)
	return nil
}

// Tick advances the session clock by dt. Paused and destroyed sessions do
// not move. Returns the number of delayed callbacks that ran.
func (s *Session) Tick(dt time.Duration) int {
	if s.destroyed || s.paused {
		return 0
	}
	for _, id := range s.zoneOrder {
		z := s.zones[id]
		if z.fade != nil && z.fade.advance(dt) {
			s.publishFade(z)
		}
	}
	return s.deps.Scheduler.Advance(dt)
}

// Reset returns every puzzle, zone and the health pool to their opening
// state. Pending delayed cues are cancelled.
func (s *Session) Reset() {
	if s.destroyed {
		return
	}
	for _, sw := range s.switches {
		sw.Reset()
	}
	for _, k := range s.keypads {
		k.Reset()
	}
	for _, p := range s.panels {
		p.Reset()
	}
	for _, z := range s.zones {
		s.resetZone(z)
	}
	s.deps.Scheduler.Cancel(startOwner)
	if s.vitals != nil {
		s.vitals.Reset()
	}
	s.paused = false
	s.start()
	s.log.Info("Session reset")
}

func (s *Session) resetTarget(id string) error {
	if id == "" {
		s.Reset()
		return nil
	}
	if k, ok := s.keypads[id]; ok {
		k.Reset()
		return nil
	}
	if p, ok := s.panels[id]; ok {
		p.Reset()
		return nil
	}
	if sw, ok := s.switches[id]; ok {
		sw.Reset()
		return nil
	}
	if z, ok := s.zones[id]; ok {
		s.resetZone(z)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownTarget, id)
}

func (s *Session) resetZone(z *zone) {
	s.deps.Scheduler.Cancel(z.owner())
	s.deps.Scheduler.Cancel(z.fadeOwner())
	z.reset()
}

// Destroy tears the session down. Pending callbacks are cancelled and no
// further effects fire.
func (s *Session) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	for _, sw := range s.switches {
		sw.Destroy()
	}
	for _, k := range s.keypads {
		k.Destroy()
	}
	for _, p := range s.panels {
		p.Destroy()
	}
	for _, z := range s.zones {
		s.deps.Scheduler.Cancel(z.owner())
		s.deps.Scheduler.Cancel(z.fadeOwner())
	}
	s.deps.Scheduler.Cancel(startOwner)
	s.log.Debug("Session destroyed")
}

func (s *Session) setPaused(paused bool) {
	s.paused = paused
	if s.def.Pause != nil {
		s.deps.Feedback.SetActive(s.def.Pause.Menu, paused)
	}
}

func (s *Session) damage(amount float64) {
	before := s.vitals.Current()
	after := s.vitals.TakeDamage(amount)
	if after != before {
		s.log.Debug("Health changed", "from", before, "to", after)
	}
	s.publishHealth()
}

func (s *Session) publishHealth() {
	if s.vitals == nil || s.def.Vitals.Bar == "" {
		return
	}
	s.deps.Feedback.SetVisualState(s.def.Vitals.Bar, formatFraction(s.vitals.Fraction()))
}

func (s *Session) publishFade(z *zone) {
	s.deps.Feedback.SetVisualState(z.fade.cfg.Target, formatFraction(z.fade.Alpha()))
}

func (s *Session) cue(id string) {
	if id != "" {
		s.deps.Feedback.PlayImmediateCue(id)
	}
}
