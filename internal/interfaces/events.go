package interfaces

import (
	"context"
	"time"
)

// EventType identifies the kind of engine event
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventRunModeStarted EventType = "run_mode_started"
	EventRunProgress    EventType = "run_progress"
	EventRunCompleted   EventType = "run_completed"
	EventRunFailed      EventType = "run_failed"
	EventRunCancelled   EventType = "run_cancelled"
)

// Event is a notification published by the engine. Payload carries
// event-specific fields (run_id, slot_id, progress_pct, ...).
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes a published event
type EventHandler func(ctx context.Context, event Event) error

// EventService provides pub/sub event distribution between the engine and
// downstream consumers (WebSocket broadcast, auto-download triggers)
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
}
