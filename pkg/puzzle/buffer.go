package puzzle

import "fmt"

// Buffer holds the code being typed on a keypad. It behaves like a small
// input field: a selection [start, end) that inserts replace, and backward
// delete. The text never grows past maxLength.
type Buffer struct {
	text      []rune
	start     int
	end       int
	minLength int
	maxLength int

	// OnChange runs after every mutating call so the owner can push the
	// entry/confirm enable state to its controls.
	OnChange func(b *Buffer)
}

// NewBuffer creates an empty buffer accepting between minLength and maxLength characters
func NewBuffer(minLength, maxLength int) (*Buffer, error) {
	if minLength <= 0 || maxLength <= 0 || minLength > maxLength {
		return nil, fmt.Errorf("%w: min length %d, max length %d", ErrInvalidConfig, minLength, maxLength)
	}
	return &Buffer{minLength: minLength, maxLength: maxLength}, nil
}

// MinLength returns the shortest code that may be confirmed
func (b *Buffer) MinLength() int { return b.minLength }

// MaxLength returns the length limit
func (b *Buffer) MaxLength() int { return b.maxLength }

// Length returns the number of characters entered
func (b *Buffer) Length() int { return len(b.text) }

// Text returns the entered characters
func (b *Buffer) Text() string { return string(b.text) }

// Cursor returns the current selection. start == end is a collapsed cursor.
func (b *Buffer) Cursor() (start, end int) { return b.start, b.end }

// EntryEnabled reports whether key controls should accept presses
func (b *Buffer) EntryEnabled() bool { return len(b.text) < b.maxLength }

// ConfirmEnabled reports whether the confirm control should be available.
// It stays enabled at max length so a full code can be submitted.
func (b *Buffer) ConfirmEnabled() bool { return len(b.text) >= b.minLength }

// Insert puts s at the cursor, replacing any selection. At max length, or when
// the result would not fit, the buffer is left untouched and
// ErrRejectedOverflow is returned.
func (b *Buffer) Insert(s string) error {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	if len(b.text) >= b.maxLength {
		return ErrRejectedOverflow
	}
	if len(b.text)-(b.end-b.start)+len(runes) > b.maxLength {
		return ErrRejectedOverflow
	}

	next := make([]rune, 0, len(b.text)-(b.end-b.start)+len(runes))
	next = append(next, b.text[:b.start]...)
	next = append(next, runes...)
	next = append(next, b.text[b.end:]...)
	b.text = next

	b.start += len(runes)
	b.end = b.start
	b.changed()
	return nil
}

// DeleteBackward removes the selection, or the character before the cursor.
// It returns false when there was nothing to delete.
func (b *Buffer) DeleteBackward() bool {
	switch {
	case b.end > b.start:
		b.text = append(b.text[:b.start], b.text[b.end:]...)
		b.end = b.start
	case b.start > 0:
		b.text = append(b.text[:b.start-1], b.text[b.start:]...)
		b.start--
		b.end = b.start
	default:
		return false
	}
	b.changed()
	return true
}

// Select sets the selection from an anchor and focus position in either
// order, clamped to the text.
func (b *Buffer) Select(anchor, focus int) {
	if anchor > focus {
		anchor, focus = focus, anchor
	}
	b.start = clamp(anchor, 0, len(b.text))
	b.end = clamp(focus, 0, len(b.text))
}

// MoveCursor collapses the selection at pos
func (b *Buffer) MoveCursor(pos int) {
	b.Select(pos, pos)
}

// Clear empties the buffer
func (b *Buffer) Clear() {
	b.text = b.text[:0]
	b.start, b.end = 0, 0
	b.changed()
}

// Set replaces the whole text, truncated to max length, with the cursor at the end
func (b *Buffer) Set(s string) {
	runes := []rune(s)
	if len(runes) > b.maxLength {
		runes = runes[:b.maxLength]
	}
	b.text = runes
	b.start, b.end = len(runes), len(runes)
	b.changed()
}

func (b *Buffer) changed() {
	if b.OnChange != nil {
		b.OnChange(b)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
