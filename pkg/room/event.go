package room

import (
	"errors"
	"sort"

	"github.com/jwebster45206/escape-engine/pkg/puzzle"
)

// EventType is a kind of host input.
type EventType string

const (
	EventKey       EventType = "key"
	EventDelete    EventType = "delete"
	EventEnter     EventType = "enter"
	EventSelect    EventType = "select"
	EventPlace     EventType = "place"
	EventGrab      EventType = "grab"
	EventPress     EventType = "press"
	EventZoneEnter EventType = "zone_enter"
	EventZoneExit  EventType = "zone_exit"
	EventPause     EventType = "pause"
	EventDamage    EventType = "damage"
	EventReset     EventType = "reset"
)

// Event is one input from the host. Which fields matter depends on Type:
//
//	key          Target = keypad, Key = label
//	delete       Target = keypad
//	enter        Target = keypad
//	select       Target = keypad, Anchor, Focus
//	place        Target = panel, Slot, Tag
//	grab, press  Target = switch
//	zone_enter   Target = zone, Tag = body tag
//	zone_exit    Target = zone, Tag = body tag
//	pause        toggles the pause menu
//	damage       Amount
//	reset        Target = puzzle or zone, empty resets the room
type Event struct {
	Type   EventType `json:"type" yaml:"type"`
	Target string    `json:"target,omitempty" yaml:"target,omitempty"`
	Key    string    `json:"key,omitempty" yaml:"key,omitempty"`
	Slot   string    `json:"slot,omitempty" yaml:"slot,omitempty"`
	Tag    string    `json:"tag,omitempty" yaml:"tag,omitempty"`
	Anchor int       `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	Focus  int       `json:"focus,omitempty" yaml:"focus,omitempty"`
	Amount float64   `json:"amount,omitempty" yaml:"amount,omitempty"`
}

// Outcome reports how the room reacted to an event. A rejected event is
// still a handled event: Accepted is false and Rejection says why.
type Outcome struct {
	Type        EventType `json:"type"`
	Target      string    `json:"target,omitempty"`
	Accepted    bool      `json:"accepted"`
	Result      string    `json:"result,omitempty"`
	Rejection   string    `json:"rejection,omitempty"`
	NewlySolved []string  `json:"newly_solved,omitempty"`

	// Err is the rejection for errors.Is checks.
	Err error `json:"-"`
}

// hardError reports errors that mean the event itself was wrong, as opposed
// to a rejection the player should hear about.
func hardError(err error) bool {
	return errors.Is(err, ErrUnknownTarget) ||
		errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, puzzle.ErrUnknownSlot) ||
		errors.Is(err, puzzle.ErrDestroyed)
}

func newlySolved(before, after map[string]bool) []string {
	var ids []string
	for id, solved := range after {
		if solved && !before[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
