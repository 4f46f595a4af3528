package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/escape-engine/pkg/puzzle"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultBodyTag = "Player"

var errUsage = errors.New("usage")

// parseCommand turns one console line into room events. "type" expands to
// one key event per character.
func parseCommand(input string) ([]room.Event, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil, nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	need := func(n int, usage string) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s", errUsage, usage)
		}
		return nil
	}

	switch verb {
	case "key", "k":
		if err := need(2, "key <keypad> <label>"); err != nil {
			return nil, err
		}
		return []room.Event{{Type: room.EventKey, Target: args[0], Key: args[1]}}, nil

	case "type", "t":
		if err := need(2, "type <keypad> <code>"); err != nil {
			return nil, err
		}
		var evs []room.Event
		for _, r := range args[1] {
			evs = append(evs, room.Event{Type: room.EventKey, Target: args[0], Key: string(r)})
		}
		return evs, nil

	case "del", "delete", "d":
		if err := need(1, "del <keypad>"); err != nil {
			return nil, err
		}
		return []room.Event{{Type: room.EventDelete, Target: args[0]}}, nil

	case "enter", "e":
		if err := need(1, "enter <keypad>"); err != nil {
			return nil, err
		}
		return []room.Event{{Type: room.EventEnter, Target: args[0]}}, nil

	case "select", "sel":
		if err := need(3, "select <keypad> <anchor> <focus>"); err != nil {
			return nil, err
		}
		anchor, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid anchor %q", args[1])
		}
		focus, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("invalid focus %q", args[2])
		}
		return []room.Event{{Type: room.EventSelect, Target: args[0], Anchor: anchor, Focus: focus}}, nil

	case "place", "p":
		if err := need(3, "place <panel> <slot> <tag>"); err != nil {
			return nil, err
		}
		return []room.Event{{Type: room.EventPlace, Target: args[0], Slot: args[1], Tag: args[2]}}, nil

	case "grab", "press":
		if err := need(1, verb+" <switch>"); err != nil {
			return nil, err
		}
		typ := room.EventPress
		if verb == "grab" {
			typ = room.EventGrab
		}
		return []room.Event{{Type: typ, Target: args[0]}}, nil

	case "in", "out":
		if err := need(1, verb+" <zone> [tag]"); err != nil {
			return nil, err
		}
		tag := defaultBodyTag
		if len(args) > 1 {
			tag = args[1]
		}
		typ := room.EventZoneEnter
		if verb == "out" {
			typ = room.EventZoneExit
		}
		return []room.Event{{Type: typ, Target: args[0], Tag: tag}}, nil

	case "pause":
		return []room.Event{{Type: room.EventPause}}, nil

	case "damage", "dmg":
		if err := need(1, "damage <amount>"); err != nil {
			return nil, err
		}
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil || amount < 0 {
			return nil, fmt.Errorf("invalid amount %q", args[0])
		}
		return []room.Event{{Type: room.EventDamage, Amount: amount}}, nil

	case "reset":
		ev := room.Event{Type: room.EventReset}
		if len(args) > 0 {
			ev.Target = args[0]
		}
		return []room.Event{ev}, nil
	}
	return nil, fmt.Errorf("unknown command %q, try /help", fields[0])
}

// describeSignal renders a sink call as one log line
func describeSignal(s puzzle.Signal) string {
	switch s.Kind {
	case puzzle.SignalCue:
		return fmt.Sprintf("♪ %s", s.Target)
	case puzzle.SignalDelayedCue:
		return fmt.Sprintf("♪ %s (in %gs)", s.Target, s.Delay)
	case puzzle.SignalVisual:
		return fmt.Sprintf("◆ %s → %s", s.Target, s.Value)
	case puzzle.SignalAnimation:
		return fmt.Sprintf("▶ %s: %s", s.Target, s.Value)
	case puzzle.SignalActive:
		return fmt.Sprintf("%s %s", onOff(s.On, "shown", "hidden"), s.Target)
	case puzzle.SignalControl:
		return fmt.Sprintf("%s %s", onOff(s.On, "enabled", "disabled"), s.Target)
	}
	return fmt.Sprintf("%s %s", s.Kind, s.Target)
}

func onOff(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}

var titler = cases.Title(language.English)

// titleID turns a snake_case id into a display label
func titleID(id string) string {
	return titler.String(strings.ReplaceAll(id, "_", " "))
}
