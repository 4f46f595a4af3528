package room

import "time"

// FadeConfig describes a screen fade to black.
type FadeConfig struct {
	// Target receives the overlay alpha as its visual state.
	Target   string  `json:"target" yaml:"target"`
	Delay    float64 `json:"delay,omitempty" yaml:"delay,omitempty"`
	Duration float64 `json:"duration" yaml:"duration"`
}

// FadeState is where a fade is in its run.
type FadeState string

const (
	FadeIdle    FadeState = "idle"
	FadeWaiting FadeState = "waiting"
	FadeRunning FadeState = "running"
	FadeDone    FadeState = "done"
)

// Fade tweens alpha from 0 to 1 over Duration, driven by ticks.
type Fade struct {
	cfg     FadeConfig
	state   FadeState
	elapsed time.Duration
}

// NewFade creates an idle fade
func NewFade(cfg FadeConfig) *Fade {
	return &Fade{cfg: cfg, state: FadeIdle}
}

// State returns where the fade is in its run
func (f *Fade) State() FadeState { return f.state }

// Busy reports whether the fade has been triggered and not reset
func (f *Fade) Busy() bool { return f.state != FadeIdle }

// Alpha is elapsed/duration clamped to [0,1]. A zero duration is fully opaque once started.
func (f *Fade) Alpha() float64 {
	switch f.state {
	case FadeIdle, FadeWaiting:
		return 0
	case FadeDone:
		return 1
	}
	d := time.Duration(f.cfg.Duration * float64(time.Second))
	if d <= 0 {
		return 1
	}
	a := float64(f.elapsed) / float64(d)
	if a > 1 {
		a = 1
	}
	return a
}

func (f *Fade) wait() {
	f.state = FadeWaiting
}

func (f *Fade) begin() {
	f.state = FadeRunning
	f.elapsed = 0
	if f.cfg.Duration <= 0 {
		f.state = FadeDone
	}
}

// advance moves a running fade forward and reports whether alpha changed
func (f *Fade) advance(dt time.Duration) bool {
	if f.state != FadeRunning || dt <= 0 {
		return false
	}
	f.elapsed += dt
	if f.Alpha() >= 1 {
		f.state = FadeDone
	}
	return true
}

func (f *Fade) restore(state FadeState, elapsed time.Duration) {
	switch state {
	case FadeWaiting, FadeRunning:
		// pending start timers are not persisted, so a waiting fade resumes running
		f.state = FadeRunning
		f.elapsed = elapsed
	case FadeDone:
		f.state = FadeDone
	default:
		f.state = FadeIdle
		f.elapsed = 0
	}
}

func (f *Fade) reset() {
	f.state = FadeIdle
	f.elapsed = 0
}
