package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/escape-engine/pkg/puzzle"
	"github.com/jwebster45206/escape-engine/pkg/room"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSessionCreated   EventType = "session.created"
	EventTypeSessionRestored  EventType = "session.restored"
	EventTypeSessionDeleted   EventType = "session.deleted"
	EventTypeSessionCompleted EventType = "session.completed"
	EventTypeOutcome          EventType = "session.outcome"
	EventTypeFeedback         EventType = "feedback"
	EventTypePuzzleSolved     EventType = "puzzle.solved"
)

// Event is what subscribers of a session channel receive. Signals carry the
// feedback and control calls in the order the room made them.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	Outcome   *room.Outcome   `json:"outcome,omitempty"`
	Signals   []puzzle.Signal `json:"signals,omitempty"`
	Data      map[string]any  `json:"data,omitempty"`
}

// Channel returns the pub/sub channel for a session
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-events:%s", sessionID.String())
}

// Broadcaster publishes session events to Redis Pub/Sub for stream distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishCreated publishes a session.created event with the opening signals
func (b *Broadcaster) PublishCreated(ctx context.Context, sessionID uuid.UUID, roomName string, signals []puzzle.Signal) error {
	return b.publishToSession(ctx, sessionID, Event{
		Type:    EventTypeSessionCreated,
		Signals: signals,
		Data:    map[string]any{"room": roomName},
	})
}

// PublishRestored publishes a session.restored event when a stored session goes live again
func (b *Broadcaster) PublishRestored(ctx context.Context, sessionID uuid.UUID, roomName string, signals []puzzle.Signal) error {
	return b.publishToSession(ctx, sessionID, Event{
		Type:    EventTypeSessionRestored,
		Signals: signals,
		Data:    map[string]any{"room": roomName},
	})
}

// PublishOutcome publishes how the room reacted to one host event
func (b *Broadcaster) PublishOutcome(ctx context.Context, sessionID uuid.UUID, out room.Outcome, signals []puzzle.Signal) error {
	return b.publishToSession(ctx, sessionID, Event{
		Type:    EventTypeOutcome,
		Outcome: &out,
		Signals: signals,
	})
}

// PublishFeedback publishes signals raised by time passing, such as delayed cues
func (b *Broadcaster) PublishFeedback(ctx context.Context, sessionID uuid.UUID, signals []puzzle.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	return b.publishToSession(ctx, sessionID, Event{
		Type:    EventTypeFeedback,
		Signals: signals,
	})
}

// PublishSolved publishes a puzzle.solved event
func (b *Broadcaster) PublishSolved(ctx context.Context, sessionID uuid.UUID, puzzleID string, solved, total int) error {
	return b.publishToSession(ctx, sessionID, Event{
		Type: EventTypePuzzleSolved,
		Data: map[string]any{
			"puzzle_id": puzzleID,
			"solved":    solved,
			"total":     total,
		},
	})
}

// PublishCompleted publishes a session.completed event once every puzzle is solved
func (b *Broadcaster) PublishCompleted(ctx context.Context, sessionID uuid.UUID, roomName string) error {
	return b.publishToSession(ctx, sessionID, Event{
		Type: EventTypeSessionCompleted,
		Data: map[string]any{"room": roomName},
	})
}

// PublishDeleted publishes a session.deleted event
func (b *Broadcaster) PublishDeleted(ctx context.Context, sessionID uuid.UUID) error {
	return b.publishToSession(ctx, sessionID, Event{Type: EventTypeSessionDeleted})
}

// publishToSession publishes an event to the session-specific channel
func (b *Broadcaster) publishToSession(ctx context.Context, sessionID uuid.UUID, event Event) error {
	channel := Channel(sessionID)
	event.SessionID = sessionID.String()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"signals", len(event.Signals),
	)

	return nil
}
