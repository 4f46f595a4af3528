package puzzle

import "fmt"

// Result is the outcome of checking a buffer against the target code.
type Result int

const (
	NotMatched Result = iota
	Matched
)

func (r Result) String() string {
	if r == Matched {
		return "matched"
	}
	return "not_matched"
}

// Validator is the only authority on whether a keypad is solved.
type Validator struct {
	target string
	length int
	flag   *Flag
}

// NewValidator creates a validator for target. The target must be exactly
// maxLength characters. A nil flag gets a private one.
func NewValidator(target string, maxLength int, flag *Flag) (*Validator, error) {
	if n := len([]rune(target)); n != maxLength {
		return nil, fmt.Errorf("%w: target code has %d characters, max length is %d", ErrInvalidConfig, n, maxLength)
	}
	if flag == nil {
		flag = &Flag{}
	}
	return &Validator{target: target, length: maxLength, flag: flag}, nil
}

// Validate compares the full buffer against the target. Partial entries never
// match. A match marks the flag solved; a mismatch never clears it.
func (v *Validator) Validate(b *Buffer) (Result, error) {
	if b.Length() != v.length || b.Text() != v.target {
		return NotMatched, ErrRejectedInvalidCode
	}
	v.flag.MarkSolved()
	return Matched, nil
}

// Solved reports the monotonic solved state
func (v *Validator) Solved() bool {
	return v.flag.Solved()
}
