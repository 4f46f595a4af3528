package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/internal/handlers"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes play-through suites against a running escape-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
	RoomOverride      string // If set, overrides the room for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	for i, step := range suite.Steps {
		if (step.Event == nil) == (step.Code == "") {
			return TestSuite{}, fmt.Errorf("%s: step %d (%s) needs exactly one of event or code", filename, i, step.Name)
		}
		if step.Code != "" && step.Keypad == "" {
			return TestSuite{}, fmt.Errorf("%s: step %d (%s) has a code but no keypad", filename, i, step.Name)
		}
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite creates a session, plays every step and deletes the session
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	roomFile := suite.Room
	if r.RoomOverride != "" {
		roomFile = r.RoomOverride
	}

	session, err := r.createSession(ctx, roomFile)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Session = session.ID
	defer func() {
		if err := r.deleteSession(context.WithoutCancel(ctx), session.ID); err != nil {
			r.Logger("    Warning: failed to delete session %s: %v", session.ID, err)
		}
	}()

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, session.ID, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep sends the step's events and checks the last reply
func (r *Runner) runStep(ctx context.Context, sessionID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var (
		status   int
		reply    *handlers.EventResponse
		err      error
		solved   []string
		accepted = true
	)
	for _, ev := range expand(step) {
		status, reply, err = r.sendEvent(ctx, sessionID, ev)
		if err != nil {
			result.Error = err
			result.Duration = time.Since(start)
			return result
		}
		if status != http.StatusOK {
			break
		}
		solved = append(solved, reply.Outcome.NewlySolved...)
		accepted = accepted && reply.Outcome.Accepted
	}

	if reply != nil && step.Code != "" {
		// A typed code is accepted only when every key and the enter were.
		reply.Outcome.Accepted = accepted
		reply.Outcome.NewlySolved = solved
	}

	result.Error = check(step.Expectations, status, reply)
	result.Success = result.Error == nil
	result.Duration = time.Since(start)
	return result
}

// expand turns a step into the events it sends
func expand(step TestStep) []room.Event {
	if step.Event != nil {
		return []room.Event{*step.Event}
	}
	events := make([]room.Event, 0, len(step.Code)+1)
	for _, ch := range step.Code {
		events = append(events, room.Event{Type: room.EventKey, Target: step.Keypad, Key: string(ch)})
	}
	return append(events, room.Event{Type: room.EventEnter, Target: step.Keypad})
}

// check compares one reply against the expectations
func check(want Expectations, status int, reply *handlers.EventResponse) error {
	wantStatus := http.StatusOK
	if want.Status != nil {
		wantStatus = *want.Status
	}
	if status != wantStatus {
		return fmt.Errorf("expected status %d, got %d", wantStatus, status)
	}
	if status != http.StatusOK {
		return nil
	}

	var problems []string
	out := reply.Outcome

	if want.Accepted != nil && out.Accepted != *want.Accepted {
		problems = append(problems, fmt.Sprintf("expected accepted=%t, got %t (rejection %q)", *want.Accepted, out.Accepted, out.Rejection))
	}
	if want.Result != nil && out.Result != *want.Result {
		problems = append(problems, fmt.Sprintf("expected result %q, got %q", *want.Result, out.Result))
	}
	if want.RejectionContains != "" && !strings.Contains(out.Rejection, want.RejectionContains) {
		problems = append(problems, fmt.Sprintf("expected rejection containing %q, got %q", want.RejectionContains, out.Rejection))
	}
	if want.NewlySolved != nil && !sameSet(want.NewlySolved, out.NewlySolved) {
		problems = append(problems, fmt.Sprintf("expected newly solved %v, got %v", want.NewlySolved, out.NewlySolved))
	}

	solved, _ := reply.Session.Solved()
	if want.Solved != nil && solved != *want.Solved {
		problems = append(problems, fmt.Sprintf("expected %d solved, got %d", *want.Solved, solved))
	}
	if want.Complete != nil && reply.Session.Complete() != *want.Complete {
		problems = append(problems, fmt.Sprintf("expected complete=%t, got %t", *want.Complete, reply.Session.Complete()))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func (r *Runner) createSession(ctx context.Context, roomFile string) (*state.Session, error) {
	body, err := json.Marshal(handlers.CreateSessionRequest{Room: roomFile})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create session returned %d: %s", resp.StatusCode, string(data))
	}

	var session state.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode created session: %w", err)
	}
	return &session, nil
}

// sendEvent posts one event. Non-200 replies return their status with a nil response.
func (r *Runner) sendEvent(ctx context.Context, sessionID uuid.UUID, ev room.Event) (int, *handlers.EventResponse, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/events", r.BaseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, nil
	}

	var reply handlers.EventResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to decode event response: %w", err)
	}
	if reply.Session == nil {
		return resp.StatusCode, nil, errors.New("event response has no session")
	}
	return resp.StatusCode, &reply, nil
}

func (r *Runner) deleteSession(ctx context.Context, sessionID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.BaseURL+"/v1/sessions/"+sessionID.String(), nil)
	if err != nil {
		return err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete session returned %d", resp.StatusCode)
	}
	return nil
}
