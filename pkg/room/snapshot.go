package room

import (
	"fmt"

	"github.com/jwebster45206/escape-engine/pkg/puzzle"
)

// Snapshot is the persisted form of a session. Pending delayed cues are not
// part of it.
type Snapshot struct {
	Room     string               `json:"room"`
	FileName string               `json:"file_name,omitempty"`
	Flags    map[string]bool      `json:"flags"`
	Keypads  []puzzle.KeypadState `json:"keypads,omitempty"`
	Panels   []puzzle.PanelState  `json:"panels,omitempty"`
	Switches []puzzle.SwitchState `json:"switches,omitempty"`
	Zones    []ZoneState          `json:"zones,omitempty"`
	Health   *float64             `json:"health,omitempty"`
	Paused   bool                 `json:"paused,omitempty"`
	Solved   int                  `json:"solved"`
	Total    int                  `json:"total"`
}

// Snapshot captures the session in declaration order
func (s *Session) Snapshot() *Snapshot {
	snap := &Snapshot{
		Room:     s.def.Name,
		FileName: s.def.FileName,
		Flags:    s.deps.Registry.Snapshot(),
		Paused:   s.paused,
	}
	for _, cfg := range s.def.Keypads {
		snap.Keypads = append(snap.Keypads, s.keypads[cfg.ID].State())
	}
	for _, cfg := range s.def.Panels {
		snap.Panels = append(snap.Panels, s.panels[cfg.ID].State())
	}
	for _, cfg := range s.def.Switches {
		snap.Switches = append(snap.Switches, s.switches[cfg.ID].State())
	}
	for _, id := range s.zoneOrder {
		snap.Zones = append(snap.Zones, s.zones[id].state())
	}
	if s.vitals != nil {
		h := s.vitals.Current()
		snap.Health = &h
	}
	snap.Solved, snap.Total = s.Progress()
	return snap
}

// Restore loads a snapshot taken from a session of the same room. Completion
// effects that already ran are not replayed.
func (s *Session) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is required")
	}
	if snap.Room != s.def.Name {
		return fmt.Errorf("%w: %q, session plays %q", ErrRoomMismatch, snap.Room, s.def.Name)
	}
	if s.destroyed {
		return puzzle.ErrDestroyed
	}

	for _, st := range snap.Keypads {
		if k, ok := s.keypads[st.ID]; ok {
			k.Restore(st)
		} else {
			s.log.Warn("Snapshot keypad not in room", "puzzle_id", st.ID)
		}
	}
	for _, st := range snap.Panels {
		if p, ok := s.panels[st.ID]; ok {
			p.Restore(st)
		} else {
			s.log.Warn("Snapshot panel not in room", "puzzle_id", st.ID)
		}
	}
	for _, st := range snap.Switches {
		if sw, ok := s.switches[st.ID]; ok {
			sw.Restore(st)
		} else {
			s.log.Warn("Snapshot switch not in room", "puzzle_id", st.ID)
		}
	}
	if unknown := s.deps.Registry.Restore(snap.Flags); len(unknown) > 0 {
		s.log.Warn("Snapshot flags not in room", "ids", unknown)
	}
	for _, st := range snap.Zones {
		if z, ok := s.zones[st.ID]; ok {
			z.restore(st)
		}
	}
	if s.vitals != nil && snap.Health != nil {
		s.vitals.Set(*snap.Health)
		s.publishHealth()
	}
	if snap.Paused != s.paused {
		s.setPaused(snap.Paused)
	}
	return nil
}
