package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/jwebster45206/escape-engine/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func createSession(t *testing.T, h http.Handler) state.Session {
	t.Helper()
	w := do(t, h, http.MethodPost, "/v1/sessions", CreateSessionRequest{Room: "escape_room"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s state.Session
	require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
	return s
}

func sendEvent(t *testing.T, h http.Handler, id uuid.UUID, ev room.Event) EventResponse {
	t.Helper()
	w := do(t, h, http.MethodPost, "/v1/sessions/"+id.String()+"/events", ev)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp EventResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestSessionHandler_Create(t *testing.T) {
	m, store := newTestManager(t)
	h := NewSessionHandler(testLogger(), m, nil)

	s := createSession(t, h)
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, "Escape Room", s.Room)
	assert.Equal(t, testRoomFile, s.RoomFile)
	require.NotNil(t, s.Snapshot)
	assert.Equal(t, 6, s.Snapshot.Total)
	assert.Equal(t, 1, store.SessionCount())
}

func TestSessionHandler_CreateErrors(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewSessionHandler(testLogger(), m, nil)

	tests := []struct {
		name           string
		method         string
		body           any
		expectedStatus int
	}{
		{"bad json", http.MethodPost, "{", http.StatusBadRequest},
		{"missing room", http.MethodPost, CreateSessionRequest{}, http.StatusBadRequest},
		{"unknown room", http.MethodPost, CreateSessionRequest{Room: "attic"}, http.StatusNotFound},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, "/v1/sessions", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSessionHandler_ReadAndDelete(t *testing.T) {
	m, store := newTestManager(t)
	h := NewSessionHandler(testLogger(), m, nil)
	s := createSession(t, h)
	path := "/v1/sessions/" + s.ID.String()

	w := do(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got state.Session
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, s.ID, got.ID)

	w = do(t, h, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, store.SessionCount())

	w = do(t, h, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_BadPaths(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewSessionHandler(testLogger(), m, nil)
	id := uuid.New().String()

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"invalid id", http.MethodGet, "/v1/sessions/not-a-uuid", http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/v1/sessions/" + id, http.StatusNotFound},
		{"patch", http.MethodPatch, "/v1/sessions/" + id, http.StatusMethodNotAllowed},
		{"unknown sub resource", http.MethodGet, "/v1/sessions/" + id + "/doors", http.StatusNotFound},
		{"too deep", http.MethodGet, "/v1/sessions/" + id + "/events/1", http.StatusNotFound},
		{"get events", http.MethodGet, "/v1/sessions/" + id + "/events", http.StatusMethodNotAllowed},
		{"stream disabled", http.MethodGet, "/v1/sessions/" + id + "/stream", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestSessionHandler_Events(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewSessionHandler(testLogger(), m, nil)
	s := createSession(t, h)

	for _, key := range []string{"1", "1", "1", "5"} {
		resp := sendEvent(t, h, s.ID, room.Event{Type: room.EventKey, Target: "keypad_two", Key: key})
		assert.True(t, resp.Outcome.Accepted)
	}
	resp := sendEvent(t, h, s.ID, room.Event{Type: room.EventEnter, Target: "keypad_two"})
	assert.True(t, resp.Outcome.Accepted)
	assert.Equal(t, "matched", resp.Outcome.Result)
	assert.Equal(t, []string{"keypad_two"}, resp.Outcome.NewlySolved)
	require.NotNil(t, resp.Session)
	assert.Equal(t, 1, resp.Session.Snapshot.Solved)

	// a fifth key on a solved keypad is rejected, not an error
	resp = sendEvent(t, h, s.ID, room.Event{Type: room.EventKey, Target: "keypad_two", Key: "1"})
	assert.False(t, resp.Outcome.Accepted)
	assert.NotEmpty(t, resp.Outcome.Rejection)

	w := do(t, h, http.MethodGet, "/v1/sessions/"+s.ID.String()+"/solves", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var solves SolvesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&solves))
	require.Len(t, solves.Solves, 1)
	assert.Equal(t, "keypad_two", solves.Solves[0].PuzzleID)
}

func TestSessionHandler_EventErrors(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewSessionHandler(testLogger(), m, nil)
	s := createSession(t, h)
	path := "/v1/sessions/" + s.ID.String() + "/events"

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"unknown field", `{"type":"key","colour":"red"}`, http.StatusBadRequest},
		{"missing type", room.Event{Target: "keypad_two"}, http.StatusBadRequest},
		{"unknown target", room.Event{Type: room.EventKey, Target: "keypad_nine", Key: "1"}, http.StatusUnprocessableEntity},
		{"unknown event", room.Event{Type: "dance"}, http.StatusUnprocessableEntity},
		{"unknown slot", room.Event{Type: room.EventPlace, Target: "tracing_panel", Slot: "nowhere", Tag: "circle_piece"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}

	w := do(t, h, http.MethodPost, "/v1/sessions/"+uuid.New().String()+"/events", room.Event{Type: room.EventPause})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_SolvedKeypadRejectsInput(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewSessionHandler(testLogger(), m, nil)
	s := createSession(t, h)

	resp := sendEvent(t, h, s.ID, room.Event{Type: room.EventGrab, Target: "note"})
	assert.False(t, resp.Outcome.Accepted, "note is gated on both keypads")
	assert.Empty(t, resp.Outcome.NewlySolved)
}
