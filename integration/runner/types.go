package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/pkg/room"
)

// TestSuite defines a scripted play-through of one room.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `json:"name"`
	Room  string     `json:"room,omitempty"`  // Used for regular tests
	Steps []TestStep `json:"steps,omitempty"` // Used for regular tests
	Cases []string   `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep sends one event, or types a code into a keypad, and checks the reply.
// Code expands into one key event per character followed by enter.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Event        *room.Event  `json:"event,omitempty"`
	Keypad       string       `json:"keypad,omitempty"`
	Code         string       `json:"code,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	Status            *int     `json:"status,omitempty"`             // HTTP status, 200 when unset
	Accepted          *bool    `json:"accepted,omitempty"`           // Outcome accepted
	Result            *string  `json:"result,omitempty"`             // Outcome result (matched, paused, 0.75, ...)
	RejectionContains string   `json:"rejection_contains,omitempty"` // Substring of the rejection text
	NewlySolved       []string `json:"newly_solved,omitempty"`       // Puzzles solved by this step (order independent)
	Solved            *int     `json:"solved,omitempty"`             // Solved puzzle count after the step
	Complete          *bool    `json:"complete,omitempty"`           // Room complete after the step
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Session  uuid.UUID // ID of the session used for this test
}
