package eventlog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MemoryLog implements Log using in-memory storage.
// Useful for testing and single-process deployments.
type MemoryLog struct {
	mu      sync.RWMutex
	events  map[string][]*Event // taskID -> events ordered by version
	closed  atomic.Bool
	idGen   func() string
	nowFunc func() time.Time
}

// MemoryLogOption configures a MemoryLog.
type MemoryLogOption func(*MemoryLog)

// WithIDGenerator sets a custom event ID generator. For tests.
func WithIDGenerator(gen func() string) MemoryLogOption {
	return func(l *MemoryLog) {
		l.idGen = gen
	}
}

// WithNowFunc overrides the clock. For tests.
func WithNowFunc(now func() time.Time) MemoryLogOption {
	return func(l *MemoryLog) {
		l.nowFunc = now
	}
}

// NewMemoryLog creates a new in-memory event log.
func NewMemoryLog(opts ...MemoryLogOption) *MemoryLog {
	l := &MemoryLog{
		events:  make(map[string][]*Event),
		idGen:   uuid.NewString,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stores a new event with the next per-task version.
// Version assignment happens under the log's mutex, so concurrent appends
// for the same task always receive distinct, strictly increasing versions.
func (l *MemoryLog) Append(ctx context.Context, taskID, eventType string, payload []byte, opts ...AppendOption) (*Event, error) {
	if err := validateAppend(taskID, eventType); err != nil {
		return nil, err
	}
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := &Event{
		ID:        l.idGen(),
		TaskID:    taskID,
		Type:      eventType,
		Timestamp: l.nowFunc().UTC(),
	}
	if payload != nil {
		e.Payload = make([]byte, len(payload))
		copy(e.Payload, payload)
	}
	for _, opt := range opts {
		opt(e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing := l.events[taskID]
	e.Version = uint64(len(existing)) + 1
	l.events[taskID] = append(existing, e)

	return e.Clone(), nil
}

// FindByTask returns all events for a task ordered by ascending version.
func (l *MemoryLog) FindByTask(ctx context.Context, taskID string) ([]*Event, error) {
	return l.Replay(ctx, taskID, 0)
}

// FindByTaskDesc returns all events for a task ordered by descending version.
func (l *MemoryLog) FindByTaskDesc(ctx context.Context, taskID string) ([]*Event, error) {
	asc, err := l.Replay(ctx, taskID, 0)
	if err != nil {
		return nil, err
	}
	desc := make([]*Event, len(asc))
	for i, e := range asc {
		desc[len(asc)-1-i] = e
	}
	return desc, nil
}

// LastEvent returns the highest-version event for a task.
func (l *MemoryLog) LastEvent(ctx context.Context, taskID string) (*Event, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	events := l.events[taskID]
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	return events[len(events)-1].Clone(), nil
}

// LastEventOfType returns the highest-version event of the given type.
func (l *MemoryLog) LastEventOfType(ctx context.Context, taskID, eventType string) (*Event, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	events := l.events[taskID]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i].Clone(), nil
		}
	}
	return nil, ErrNoEvents
}

// Replay returns all events with Version >= fromVersion in ascending order.
func (l *MemoryLog) Replay(ctx context.Context, taskID string, fromVersion uint64) ([]*Event, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	events := l.events[taskID]
	out := make([]*Event, 0, len(events))
	for _, e := range events {
		if e.Version >= fromVersion {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// Summary returns per-type event counts for a task.
func (l *MemoryLog) Summary(ctx context.Context, taskID string) (map[string]int, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range l.events[taskID] {
		counts[e.Type]++
	}
	return counts, nil
}

// Close shuts down the log.
func (l *MemoryLog) Close() error {
	if l.closed.Swap(true) {
		return ErrClosed
	}
	return nil
}

// Ensure MemoryLog implements Log.
var _ Log = (*MemoryLog)(nil)
