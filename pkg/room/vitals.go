package room

import (
	"fmt"
	"strconv"
)

// Vitals is the player's health pool. Health never drops below zero.
type Vitals struct {
	max     float64
	current float64
}

// NewVitals creates a full health pool
func NewVitals(max float64) (*Vitals, error) {
	if max <= 0 {
		return nil, fmt.Errorf("vitals max must be positive, got %v", max)
	}
	return &Vitals{max: max, current: max}, nil
}

// Max returns the full health value
func (v *Vitals) Max() float64 { return v.max }

// Current returns the health left
func (v *Vitals) Current() float64 { return v.current }

// Alive reports whether there is any health left
func (v *Vitals) Alive() bool { return v.current > 0 }

// TakeDamage subtracts amount, clamped at zero, and returns the new health.
// Negative amounts are ignored.
func (v *Vitals) TakeDamage(amount float64) float64 {
	if amount > 0 {
		v.current -= amount
		if v.current < 0 {
			v.current = 0
		}
	}
	return v.current
}

// Fraction returns current/max in [0,1]
func (v *Vitals) Fraction() float64 {
	return v.current / v.max
}

// Set restores a saved health value, clamped to [0,max]
func (v *Vitals) Set(current float64) {
	switch {
	case current < 0:
		current = 0
	case current > v.max:
		current = v.max
	}
	v.current = current
}

// Reset refills the pool
func (v *Vitals) Reset() {
	v.current = v.max
}

func formatFraction(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
