package puzzle

import "sync"

// FeedbackSink receives declarative presentation calls. Audio playback,
// material swaps and animation all live on the other side of this interface.
type FeedbackSink interface {
	PlayImmediateCue(id string)
	// PlayDelayedCue is called when a cue scheduled delaySeconds earlier comes due.
	PlayDelayedCue(id string, delaySeconds float64)
	SetVisualState(objectRef, stateID string)
	TriggerAnimation(objectRef, trigger string)
	SetActive(objectRef string, active bool)
}

// ControlSink receives enable/disable calls for input widgets.
type ControlSink interface {
	SetEnabled(controlID string, enabled bool)
}

// Sink is a collaborator that handles both feedback and control calls.
type Sink interface {
	FeedbackSink
	ControlSink
}

// SignalKind names the sink call a Signal stands for.
type SignalKind string

const (
	SignalCue        SignalKind = "cue"
	SignalDelayedCue SignalKind = "delayed_cue"
	SignalVisual     SignalKind = "visual"
	SignalAnimation  SignalKind = "animation"
	SignalActive     SignalKind = "active"
	SignalControl    SignalKind = "control"
)

// Signal is the serializable form of a single sink call.
type Signal struct {
	Kind   SignalKind `json:"kind"`
	Target string     `json:"target"`
	Value  string     `json:"value,omitempty"`
	On     bool       `json:"on,omitempty"`
	Delay  float64    `json:"delay,omitempty"`
}

// SignalFunc adapts a function to the Sink interface.
type SignalFunc func(Signal)

var _ Sink = SignalFunc(nil)

func (f SignalFunc) PlayImmediateCue(id string) {
	f(Signal{Kind: SignalCue, Target: id})
}

func (f SignalFunc) PlayDelayedCue(id string, delaySeconds float64) {
	f(Signal{Kind: SignalDelayedCue, Target: id, Delay: delaySeconds})
}

func (f SignalFunc) SetVisualState(objectRef, stateID string) {
	f(Signal{Kind: SignalVisual, Target: objectRef, Value: stateID})
}

func (f SignalFunc) TriggerAnimation(objectRef, trigger string) {
	f(Signal{Kind: SignalAnimation, Target: objectRef, Value: trigger})
}

func (f SignalFunc) SetActive(objectRef string, active bool) {
	f(Signal{Kind: SignalActive, Target: objectRef, On: active})
}

func (f SignalFunc) SetEnabled(controlID string, enabled bool) {
	f(Signal{Kind: SignalControl, Target: controlID, On: enabled})
}

// Recorder is an in-memory Sink that keeps every signal in call order.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

var _ Sink = (*Recorder)(nil)

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(s Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

func (r *Recorder) PlayImmediateCue(id string) { SignalFunc(r.record).PlayImmediateCue(id) }

func (r *Recorder) PlayDelayedCue(id string, delaySeconds float64) {
	SignalFunc(r.record).PlayDelayedCue(id, delaySeconds)
}

func (r *Recorder) SetVisualState(objectRef, stateID string) {
	SignalFunc(r.record).SetVisualState(objectRef, stateID)
}

func (r *Recorder) TriggerAnimation(objectRef, trigger string) {
	SignalFunc(r.record).TriggerAnimation(objectRef, trigger)
}

func (r *Recorder) SetActive(objectRef string, active bool) {
	SignalFunc(r.record).SetActive(objectRef, active)
}

func (r *Recorder) SetEnabled(controlID string, enabled bool) {
	SignalFunc(r.record).SetEnabled(controlID, enabled)
}

// Signals returns a copy of the recorded signals
func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.signals))
	copy(out, r.signals)
	return out
}

// Drain returns the recorded signals and clears the recorder
func (r *Recorder) Drain() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.signals
	r.signals = nil
	return out
}

// Count returns how many recorded signals match kind and target
func (r *Recorder) Count(kind SignalKind, target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.signals {
		if s.Kind == kind && s.Target == target {
			n++
		}
	}
	return n
}

// Fanout forwards every call to each non-nil sink in order.
type Fanout []Sink

var _ Sink = Fanout(nil)

func (f Fanout) PlayImmediateCue(id string) {
	for _, s := range f {
		if s != nil {
			s.PlayImmediateCue(id)
		}
	}
}

func (f Fanout) PlayDelayedCue(id string, delaySeconds float64) {
	for _, s := range f {
		if s != nil {
			s.PlayDelayedCue(id, delaySeconds)
		}
	}
}

func (f Fanout) SetVisualState(objectRef, stateID string) {
	for _, s := range f {
		if s != nil {
			s.SetVisualState(objectRef, stateID)
		}
	}
}

func (f Fanout) TriggerAnimation(objectRef, trigger string) {
	for _, s := range f {
		if s != nil {
			s.TriggerAnimation(objectRef, trigger)
		}
	}
}

func (f Fanout) SetActive(objectRef string, active bool) {
	for _, s := range f {
		if s != nil {
			s.SetActive(objectRef, active)
		}
	}
}

func (f Fanout) SetEnabled(controlID string, enabled bool) {
	for _, s := range f {
		if s != nil {
			s.SetEnabled(controlID, enabled)
		}
	}
}

// NopSink discards every call.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) PlayImmediateCue(string) {}
func (NopSink) PlayDelayedCue(string, float64) {}
func (NopSink) SetVisualState(string, string) {}
func (NopSink) TriggerAnimation(string, string) {}
func (NopSink) SetActive(string, bool) {}
func (NopSink) SetEnabled(string, bool) {}
