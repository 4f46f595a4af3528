package puzzle

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

// AssemblyState is the lifecycle of a Tracker.
type AssemblyState int

const (
	Incomplete AssemblyState = iota
	Complete
)

func (s AssemblyState) String() string {
	if s == Complete {
		return "complete"
	}
	return "incomplete"
}

// Slot is a placement spot that accepts one filler with RequiredTag.
type Slot struct {
	ID          string `json:"id" yaml:"id"`
	RequiredTag string `json:"required_tag" yaml:"required_tag"`
}

// Tracker follows a fixed set of slots and reports completion once every
// slot holds its matching piece.
type Tracker struct {
	slots     map[string]string
	order     []string
	filled    mapset.Set[string]
	assembled bool

	// OnComplete runs on the Incomplete -> Complete transition.
	OnComplete func()
}

// NewTracker creates a tracker over slots. Slot ids must be unique and
// every slot needs a tag.
func NewTracker(slots []Slot) (*Tracker, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: assembly needs at least one slot", ErrInvalidConfig)
	}
	t := &Tracker{
		slots:  make(map[string]string, len(slots)),
		order:  make([]string, 0, len(slots)),
		filled: mapset.New[string](),
	}
	for _, s := range slots {
		if s.ID == "" || s.RequiredTag == "" {
			return nil, fmt.Errorf("%w: slot needs id and required tag", ErrInvalidConfig)
		}
		if _, dup := t.slots[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate slot %s", ErrInvalidConfig, s.ID)
		}
		t.slots[s.ID] = s.RequiredTag
		t.order = append(t.order, s.ID)
	}
	return t, nil
}

// State returns Complete once every slot has been filled
func (t *Tracker) State() AssemblyState {
	if t.assembled {
		return Complete
	}
	return Incomplete
}

// Filled reports whether slotID holds a piece
func (t *Tracker) Filled(slotID string) bool {
	return t.filled.Has(slotID)
}

// FilledCount returns how many slots hold a piece
func (t *Tracker) FilledCount() int {
	return t.filled.Size()
}

// Slots returns the slot ids in declaration order
func (t *Tracker) Slots() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// FillSlot places a piece tagged fillerTag into slotID. Unknown slots,
// occupied slots and wrong tags are rejected without a state change.
func (t *Tracker) FillSlot(slotID, fillerTag string) error {
	required, ok := t.slots[slotID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slotID)
	}
	if t.filled.Has(slotID) {
		return fmt.Errorf("%w: %s", ErrRejectedAlreadyFilled, slotID)
	}
	if fillerTag != required {
		return fmt.Errorf("%w: %s wants %s, got %s", ErrRejectedWrongFillerTag, slotID, required, fillerTag)
	}

	t.filled.Put(slotID)
	if !t.assembled && t.filled.Size() == len(t.slots) {
		t.assembled = true
		if t.OnComplete != nil {
			t.OnComplete()
		}
	}
	return nil
}

// ResetAll empties every slot and re-arms completion
func (t *Tracker) ResetAll() {
	t.filled = mapset.New[string]()
	t.assembled = false
}

// ClearSlots empties every slot but keeps the completion state, so later
// placements cannot complete the assembly a second time.
func (t *Tracker) ClearSlots() {
	t.filled = mapset.New[string]()
}

// restore marks the given slots filled and sets the completion state without
// firing OnComplete.
func (t *Tracker) restore(filled []string, assembled bool) {
	t.filled = mapset.New[string]()
	for _, id := range filled {
		if _, ok := t.slots[id]; ok {
			t.filled.Put(id)
		}
	}
	t.assembled = assembled
}

// filledIDs lists filled slots in declaration order
func (t *Tracker) filledIDs() []string {
	var out []string
	for _, id := range t.order {
		if t.filled.Has(id) {
			out = append(out, id)
		}
	}
	return out
}
