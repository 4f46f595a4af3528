package room

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/escape-engine/pkg/puzzle"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a room file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
}

// Definition is a room as authored: every puzzle, zone and shared object in
// one scene.
type Definition struct {
	Name        string `json:"name" yaml:"name"`
	FileName    string `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// OnStart effects run when a session starts and again on reset.
	OnStart []puzzle.Effect `json:"on_start,omitempty" yaml:"on_start,omitempty"`

	Keypads  []puzzle.KeypadConfig `json:"keypads,omitempty" yaml:"keypads,omitempty"`
	Panels   []puzzle.PanelConfig  `json:"panels,omitempty" yaml:"panels,omitempty"`
	Switches []puzzle.SwitchConfig `json:"switches,omitempty" yaml:"switches,omitempty"`
	Zones    []ZoneConfig          `json:"zones,omitempty" yaml:"zones,omitempty"`

	Vitals *VitalsConfig `json:"vitals,omitempty" yaml:"vitals,omitempty"`
	Pause  *PauseConfig  `json:"pause,omitempty" yaml:"pause,omitempty"`
}

// VitalsConfig sets up the player's health pool.
type VitalsConfig struct {
	Max float64 `json:"max" yaml:"max"`
	// Bar receives the remaining health fraction as its visual state.
	Bar string `json:"bar,omitempty" yaml:"bar,omitempty"`
}

// PauseConfig names the menu object that is shown while paused.
type PauseConfig struct {
	Menu string `json:"menu" yaml:"menu"`
}

// Load reads and parses a room file, choosing the format by extension
func Load(path string) (*Definition, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to read room file: %w", err)
	}
	def, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("room file %s: %w", filepath.Base(path), err)
	}
	if def.FileName == "" {
		def.FileName = filepath.Base(path)
	}
	return def, nil
}

// Parse decodes a room strictly: unknown fields are an error
func Parse(data []byte, format Format) (*Definition, error) {
	var def Definition
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to unmarshal room: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to unmarshal room: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &def, nil
}

// PuzzleIDs lists every puzzle id in declaration order: keypads, panels, switches
func (d *Definition) PuzzleIDs() []string {
	var ids []string
	for _, k := range d.Keypads {
		ids = append(ids, k.ID)
	}
	for _, p := range d.Panels {
		ids = append(ids, p.ID)
	}
	for _, s := range d.Switches {
		ids = append(ids, s.ID)
	}
	return ids
}

// ValidationError lists every problem found in a definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d problem(s):\n  - %s", len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

var (
	validIDRegex   = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	digitCodeRegex = regexp.MustCompile(`^[0-9]+$`)
)

// Validate checks the definition as a whole. It returns a *ValidationError
// holding every problem, or nil.
func (d *Definition) Validate() error {
	v := &validator{seen: make(map[string]string)}

	if strings.TrimSpace(d.Name) == "" {
		v.add("room name is required")
	}

	for _, k := range d.Keypads {
		v.claim("keypad", k.ID)
	}
	for _, p := range d.Panels {
		v.claim("panel", p.ID)
	}
	for _, s := range d.Switches {
		v.claim("switch", s.ID)
	}
	for _, z := range d.Zones {
		v.claim("zone", z.ID)
	}

	v.effects("on_start", d.OnStart)

	for _, k := range d.Keypads {
		ctx := "keypad " + k.ID
		if k.MinLength <= 0 || k.MaxLength <= 0 || k.MinLength > k.MaxLength {
			v.add("%s: need 0 < min_length <= max_length, got %d and %d", ctx, k.MinLength, k.MaxLength)
		}
		if n := len([]rune(k.TargetCode)); n != k.MaxLength {
			v.add("%s: target_code has %d characters, max_length is %d", ctx, n, k.MaxLength)
		}
		if !digitCodeRegex.MatchString(k.TargetCode) {
			v.add("%s: target_code must be digits only", ctx)
		}
		if k.DeniedDelay < 0 {
			v.add("%s: denied_delay cannot be negative", ctx)
		}
		v.effects(ctx, k.OnSolved)
		v.references(ctx, k.ID, k.Preconditions)
	}

	for _, p := range d.Panels {
		ctx := "panel " + p.ID
		if len(p.Slots) == 0 {
			v.add("%s: needs at least one slot", ctx)
		}
		slots := make(map[string]bool, len(p.Slots))
		for _, s := range p.Slots {
			if s.ID == "" || s.RequiredTag == "" {
				v.add("%s: every slot needs id and required_tag", ctx)
				continue
			}
			if slots[s.ID] {
				v.add("%s: duplicate slot %s", ctx, s.ID)
			}
			slots[s.ID] = true
		}
		v.effects(ctx, p.OnAssembled)
		v.references(ctx, p.ID, p.Preconditions)
	}

	for _, s := range d.Switches {
		ctx := "switch " + s.ID
		v.effects(ctx, s.OnActivate)
		v.references(ctx, s.ID, s.Preconditions)
	}

	for _, z := range d.Zones {
		ctx := "zone " + z.ID
		switch z.Kind {
		case ZoneTrigger:
		case ZoneFade:
			if z.Fade == nil || z.Fade.Target == "" {
				v.add("%s: fade zone needs fade.target", ctx)
			} else if z.Fade.Duration < 0 || z.Fade.Delay < 0 {
				v.add("%s: fade delay and duration cannot be negative", ctx)
			}
		case ZoneTeleport:
			if d.Vitals == nil {
				v.add("%s: teleport zone needs vitals", ctx)
			}
			if z.HealthCost < 0 {
				v.add("%s: health_cost cannot be negative", ctx)
			}
		default:
			v.add("%s: unknown kind %q", ctx, z.Kind)
		}
		v.effects(ctx+" on_enter", z.OnEnter)
		v.effects(ctx+" on_exit", z.OnExit)
		for _, id := range z.Requires {
			if kind, ok := v.seen[id]; !ok || kind == "zone" {
				v.add("%s: requires unknown puzzle %s", ctx, id)
			}
		}
	}

	if d.Vitals != nil && d.Vitals.Max <= 0 {
		v.add("vitals: max must be positive")
	}
	if d.Pause != nil && d.Pause.Menu == "" {
		v.add("pause: menu is required")
	}

	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

type validator struct {
	seen     map[string]string
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) claim(kind, id string) {
	if !validIDRegex.MatchString(id) {
		v.add("%s id '%s' should be lowercase snake_case", kind, id)
	}
	if prev, dup := v.seen[id]; dup {
		v.add("%s id '%s' already used by a %s", kind, id, prev)
		return
	}
	v.seen[id] = kind
}

func (v *validator) effects(ctx string, effects []puzzle.Effect) {
	for i, e := range effects {
		if err := e.Check(); err != nil {
			v.add("%s: effect %d: %v", ctx, i, err)
		}
	}
}

func (v *validator) references(ctx, self string, ids []string) {
	for _, id := range ids {
		if id == self {
			v.add("%s: cannot depend on itself", ctx)
			continue
		}
		if kind, ok := v.seen[id]; !ok || kind == "zone" {
			v.add("%s: precondition %s is not a puzzle in this room", ctx, id)
		}
	}
}
