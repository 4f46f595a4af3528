package state

import (
	"encoding/json"
	"testing"

	"github.com/jwebster45206/escape-engine/pkg/room"
)

func TestNewSession(t *testing.T) {
	def := &room.Definition{Name: "Escape Room"}
	s := NewSession("escape_room.yaml", def)

	if s.ID.String() == "" {
		t.Fatal("expected an ID")
	}
	if s.Room != "Escape Room" {
		t.Errorf("expected room 'Escape Room', got %q", s.Room)
	}
	if s.RoomFile != "escape_room.yaml" {
		t.Errorf("expected room file 'escape_room.yaml', got %q", s.RoomFile)
	}
	if s.CreatedAt.IsZero() || !s.CreatedAt.Equal(s.UpdatedAt) {
		t.Errorf("expected matching timestamps, got %v and %v", s.CreatedAt, s.UpdatedAt)
	}
	if s.Complete() {
		t.Error("new session should not be complete")
	}
}

func TestSession_Complete(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *room.Snapshot
		want     bool
	}{
		{"no snapshot", nil, false},
		{"no puzzles", &room.Snapshot{Solved: 0, Total: 0}, false},
		{"partial", &room.Snapshot{Solved: 2, Total: 5}, false},
		{"all solved", &room.Snapshot{Solved: 5, Total: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{Snapshot: tt.snapshot}
			if got := s.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_JSON(t *testing.T) {
	s := NewSession("escape_room.yaml", &room.Definition{Name: "Escape Room"})
	s.Snapshot = &room.Snapshot{Room: "Escape Room", Flags: map[string]bool{"keypad_two": true}, Solved: 1, Total: 6}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var loaded Session
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loaded.ID != s.ID {
		t.Errorf("expected ID %v, got %v", s.ID, loaded.ID)
	}
	if loaded.Snapshot == nil || !loaded.Snapshot.Flags["keypad_two"] {
		t.Errorf("expected keypad_two to stay solved, got %+v", loaded.Snapshot)
	}
}
