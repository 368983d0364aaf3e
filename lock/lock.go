package lock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tasknetics/taskcore/errors"
	"github.com/tasknetics/taskcore/logging"
	"github.com/tasknetics/taskcore/telemetry"
)

// DefaultTimeout bounds both the wait for a lock and, once granted, how
// long it may be held before auto-release.
const DefaultTimeout = 5 * time.Minute

// Waiter describes one queued acquisition request.
type Waiter struct {
	// OwnerID is the requester.
	OwnerID string

	// Operation describes what the owner wants the resource for.
	Operation string

	// Timestamp is when the request joined the queue.
	Timestamp time.Time
}

// Info describes a currently held lock.
type Info struct {
	ResourceKey string
	OwnerID     string
	Operation   string
	AcquiredAt  time.Time
}

// waiter is the internal queue entry. ready is buffered so a release can
// signal without blocking; the waiter re-checks its position on wakeup.
type waiter struct {
	ownerID   string
	operation string
	enqueued  time.Time
	ready     chan struct{}
}

// held is the state of one granted lock. The auto-release timer compares
// pointer identity before firing so a release-and-reacquire cannot be
// clobbered by a stale timer.
type held struct {
	ownerID    string
	operation  string
	acquiredAt time.Time
	timer      *time.Timer
}

// Registry manages exclusive locks keyed by normalized resource key.
// Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	locks   map[string]*held
	queues  map[string][]*waiter
	timeout time.Duration
	logger  *logging.Logger
	nowFunc func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTimeout sets the default acquire/hold timeout.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger used for anomaly and warning messages.
func WithLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l.WithComponent("lock")
	}
}

// WithNowFunc overrides the clock. For tests.
func WithNowFunc(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowFunc = now
	}
}

// NewRegistry creates an empty lock registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		locks:   make(map[string]*held),
		queues:  make(map[string][]*waiter),
		timeout: DefaultTimeout,
		logger:  logging.Nop(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeKey canonicalizes a resource key: case-folded, path separators
// normalized to forward slashes, trailing slashes trimmed.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "\\", "/")
	for len(key) > 1 && strings.HasSuffix(key, "/") {
		key = strings.TrimSuffix(key, "/")
	}
	return key
}

// Acquire blocks until ownerID holds the lock on resourceKey or the
// default timeout passes. Acquiring a lock the owner already holds is a
// no-op. A timed-out waiter is removed from the queue and receives a
// LOCK_TIMEOUT error scoped to itself.
func (r *Registry) Acquire(ctx context.Context, ownerID, resourceKey, operation string) error {
	return r.AcquireTimeout(ctx, ownerID, resourceKey, operation, r.timeout)
}

// AcquireTimeout is Acquire with an explicit timeout.
func (r *Registry) AcquireTimeout(ctx context.Context, ownerID, resourceKey, operation string, timeout time.Duration) (err error) {
	if ownerID == "" {
		return errors.InvalidInput("owner ID is required")
	}
	key := NormalizeKey(resourceKey)
	if key == "" {
		return errors.InvalidInput("resource key is required")
	}
	if timeout <= 0 {
		timeout = r.timeout
	}

	ctx, span := telemetry.StartLockSpan(ctx, key, ownerID)
	defer func() { telemetry.End(span, err) }()

	r.mu.Lock()

	if ls, ok := r.locks[key]; ok && ls.ownerID == ownerID {
		// Reentrant: the holder asking again is a no-op.
		r.mu.Unlock()
		return nil
	}

	// Free resource with nobody queued: immediate grant.
	if _, ok := r.locks[key]; !ok && len(r.queues[key]) == 0 {
		r.grant(key, ownerID, operation, timeout)
		r.mu.Unlock()
		return nil
	}

	w := &waiter{
		ownerID:   ownerID,
		operation: operation,
		enqueued:  r.nowFunc(),
		ready:     make(chan struct{}, 1),
	}
	r.queues[key] = append(r.queues[key], w)
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-w.ready:
			r.mu.Lock()
			q := r.queues[key]
			// Stale wakeups happen when a release and a timeout removal
			// race; only the head of the queue may take a free lock.
			if _, locked := r.locks[key]; !locked && len(q) > 0 && q[0] == w {
				r.queues[key] = q[1:]
				if len(r.queues[key]) == 0 {
					delete(r.queues, key)
				}
				r.grant(key, ownerID, operation, timeout)
				r.mu.Unlock()
				return nil
			}
			r.mu.Unlock()
			// Not our turn yet; re-arm the wait.

		case <-timer.C:
			r.abandon(key, w)
			return errors.LockTimeout(ownerID, key)

		case <-ctx.Done():
			r.abandon(key, w)
			return errors.Wrap(ctx.Err(), "lock acquisition canceled",
				errors.WithOwnerID(ownerID), errors.WithMetadata("resource_key", key))
		}
	}
}

// grant records ownership and arms the auto-release timer.
// Caller must hold r.mu.
func (r *Registry) grant(key, ownerID, operation string, timeout time.Duration) {
	ls := &held{
		ownerID:    ownerID,
		operation:  operation,
		acquiredAt: r.nowFunc(),
	}
	ls.timer = time.AfterFunc(timeout, func() {
		r.autoRelease(key, ls)
	})
	r.locks[key] = ls
}

// abandon removes a waiter that gave up. If the waiter had already been
// signaled and the lock sits free, the wakeup is forwarded to the new head
// so the release is not lost.
func (r *Registry) abandon(key string, w *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.queues[key]
	for i, qw := range q {
		if qw == w {
			r.queues[key] = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(r.queues[key]) == 0 {
		delete(r.queues, key)
		return
	}
	if _, locked := r.locks[key]; !locked {
		r.signalHead(key)
	}
}

// signalHead wakes the first queued waiter. Caller must hold r.mu.
func (r *Registry) signalHead(key string) {
	q := r.queues[key]
	if len(q) == 0 {
		return
	}
	select {
	case q[0].ready <- struct{}{}:
	default: // already signaled
	}
}

// autoRelease fires when a lock is held past its timeout.
func (r *Registry) autoRelease(key string, ls *held) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A normal release may have raced the timer; only act on the same grant.
	if current, ok := r.locks[key]; !ok || current != ls {
		return
	}
	delete(r.locks, key)
	r.logger.Warn("lock auto-released after timeout", map[string]interface{}{
		"resource_key": key,
		"owner_id":     ls.ownerID,
		"operation":    ls.operation,
		"held_for":     r.nowFunc().Sub(ls.acquiredAt).String(),
	})
	r.signalHead(key)
}

// Release releases ownerID's lock on resourceKey and wakes the next
// queued waiter. Release by a non-owner is a no-op with a warning.
func (r *Registry) Release(ownerID, resourceKey string) {
	key := NormalizeKey(resourceKey)

	r.mu.Lock()
	defer r.mu.Unlock()

	ls, ok := r.locks[key]
	if !ok {
		return
	}
	if ls.ownerID != ownerID {
		r.logger.Warn("release by non-owner ignored", map[string]interface{}{
			"resource_key": key,
			"owner_id":     ownerID,
			"held_by":      ls.ownerID,
		})
		return
	}

	ls.timer.Stop()
	delete(r.locks, key)
	r.signalHead(key)
}

// ReleaseAll removes every lock and every queued wait entry belonging to
// ownerID. Used for crash cleanup so a dead owner cannot strand a
// resource or a queue.
func (r *Registry) ReleaseAll(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, ls := range r.locks {
		if ls.ownerID == ownerID {
			ls.timer.Stop()
			delete(r.locks, key)
			r.signalHead(key)
		}
	}

	for key, q := range r.queues {
		filtered := q[:0]
		removedHead := false
		for i, w := range q {
			if w.ownerID == ownerID {
				if i == 0 {
					removedHead = true
				}
				continue
			}
			filtered = append(filtered, w)
		}
		if len(filtered) == 0 {
			delete(r.queues, key)
			continue
		}
		r.queues[key] = filtered
		if removedHead {
			if _, locked := r.locks[key]; !locked {
				r.signalHead(key)
			}
		}
	}
}

// IsLocked reports whether resourceKey is currently held.
func (r *Registry) IsLocked(resourceKey string) bool {
	key := NormalizeKey(resourceKey)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.locks[key]
	return ok
}

// Holder returns details of the current lock on resourceKey, or nil.
func (r *Registry) Holder(resourceKey string) *Info {
	key := NormalizeKey(resourceKey)
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.locks[key]
	if !ok {
		return nil
	}
	return &Info{
		ResourceKey: key,
		OwnerID:     ls.ownerID,
		Operation:   ls.operation,
		AcquiredAt:  ls.acquiredAt,
	}
}

// Queue returns the waiters for resourceKey in FIFO order.
func (r *Registry) Queue(resourceKey string) []Waiter {
	key := NormalizeKey(resourceKey)
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.queues[key]
	out := make([]Waiter, len(q))
	for i, w := range q {
		out[i] = Waiter{OwnerID: w.ownerID, Operation: w.operation, Timestamp: w.enqueued}
	}
	return out
}

// Shutdown releases every lock and clears every queue. Registered with the
// shutdown coordinator so a stopping orchestrator cannot strand resources.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ls := range r.locks {
		ls.timer.Stop()
		delete(r.locks, key)
	}
	for key, q := range r.queues {
		for _, w := range q {
			select {
			case w.ready <- struct{}{}:
			default:
			}
		}
		delete(r.queues, key)
	}
	return nil
}
