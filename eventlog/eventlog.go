package eventlog

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	// ErrNoEvents indicates the task has no matching event.
	ErrNoEvents = errors.New("no events for task")

	// ErrClosed indicates the log has been closed.
	ErrClosed = errors.New("event log closed")

	// ErrInvalidTaskID indicates an empty or malformed task ID.
	ErrInvalidTaskID = errors.New("invalid task ID")

	// ErrInvalidType indicates an empty event type.
	ErrInvalidType = errors.New("invalid event type")
)

// Event is one immutable record in a task's history.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// TaskID is the task this event belongs to.
	TaskID string `json:"task_id"`

	// Type names what happened (e.g., "phase_started", "pr_created").
	Type string `json:"event_type"`

	// Payload is the opaque event body.
	Payload []byte `json:"payload,omitempty"`

	// Timestamp is when the event was appended.
	Timestamp time.Time `json:"timestamp"`

	// Version is the per-task strictly increasing sequence number,
	// starting at 1.
	Version uint64 `json:"version"`

	// UserID is the human principal behind the event, if any.
	UserID string `json:"user_id,omitempty"`

	// AgentName is the agent that produced the event, if any.
	AgentName string `json:"agent_name,omitempty"`

	// Metadata carries additional key-value context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Payload != nil {
		clone.Payload = make([]byte, len(e.Payload))
		copy(clone.Payload, e.Payload)
	}
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// AppendOption sets optional fields on an appended event.
type AppendOption func(*Event)

// WithUserID attributes the event to a human principal.
func WithUserID(userID string) AppendOption {
	return func(e *Event) {
		e.UserID = userID
	}
}

// WithAgentName attributes the event to an agent.
func WithAgentName(name string) AppendOption {
	return func(e *Event) {
		e.AgentName = name
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) AppendOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]string)
		}
		e.Metadata[key] = value
	}
}

// Log is the append-only event store.
type Log interface {
	// Append stores a new event for taskID with the next version and
	// returns the stored record. Append failures propagate to the caller.
	Append(ctx context.Context, taskID, eventType string, payload []byte, opts ...AppendOption) (*Event, error)

	// FindByTask returns all events for a task ordered by ascending version.
	FindByTask(ctx context.Context, taskID string) ([]*Event, error)

	// FindByTaskDesc returns all events for a task ordered by descending version.
	FindByTaskDesc(ctx context.Context, taskID string) ([]*Event, error)

	// LastEvent returns the highest-version event for a task.
	// Returns ErrNoEvents if the task has none.
	LastEvent(ctx context.Context, taskID string) (*Event, error)

	// LastEventOfType returns the highest-version event of the given type.
	// Returns ErrNoEvents if the task has none of that type.
	LastEventOfType(ctx context.Context, taskID, eventType string) (*Event, error)

	// Replay returns all events for a task with Version >= fromVersion,
	// ordered by ascending version. fromVersion 0 replays everything.
	Replay(ctx context.Context, taskID string, fromVersion uint64) ([]*Event, error)

	// Summary returns per-type event counts for a task.
	Summary(ctx context.Context, taskID string) (map[string]int, error)

	// Close shuts down the log and releases resources.
	Close() error
}

// validateAppend checks the required append arguments.
func validateAppend(taskID, eventType string) error {
	if taskID == "" {
		return ErrInvalidTaskID
	}
	if eventType == "" {
		return ErrInvalidType
	}
	return nil
}
