package errors

import (
	"encoding/json"
	"fmt"
	"maps"
)

// CoreError is the read side of the taxonomy. Every error produced by
// this package satisfies it; callers that only classify failures can
// depend on the interface instead of the concrete type.
type CoreError interface {
	error
	Code() Code
	Category() Category
	Retryable() bool
	Metadata() map[string]string
}

// Error is a classified failure. The zero value is not useful; build
// one with New, Wrap, or a constructor.
type Error struct {
	code     Code
	category Category
	message  string
	cause    error
	metadata map[string]string
	ownerID  string
	taskID   string

	// retryableSet distinguishes "defaulted from category" from an
	// explicit WithRetryable, so WithRetryable(false) sticks even on
	// a transient code.
	retryable    bool
	retryableSet bool
}

// Option customizes an Error at construction time.
type Option func(*Error)

// WithCategory overrides the category derived from the code.
func WithCategory(category Category) Option {
	return func(e *Error) { e.category = category }
}

// WithRetryable pins the retryable flag regardless of category.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = retryable
		e.retryableSet = true
	}
}

// WithMetadata attaches a key/value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = map[string]string{}
		}
		e.metadata[key] = value
	}
}

// WithOwnerID records which owner hit the failure.
func WithOwnerID(ownerID string) Option {
	return func(e *Error) { e.ownerID = ownerID }
}

// WithTaskID records the task in whose scope the failure happened.
func WithTaskID(taskID string) Option {
	return func(e *Error) { e.taskID = taskID }
}

// WithCause chains an underlying error.
func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// New builds an Error for the given code. The category and retryable
// flag default from the code; options may override both.
func New(code Code, message string, opts ...Option) *Error {
	e := &Error{
		code:     code,
		category: code.DefaultCategory(),
		message:  message,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.retryableSet {
		e.retryable = e.category.IsRetryable()
	}
	return e
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode builds an Error whose message is the code's description.
func FromCode(code Code, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap exposes the cause to the errors.Is and errors.As machinery.
func (e *Error) Unwrap() error { return e.cause }

// Code returns the failure code.
func (e *Error) Code() Code { return e.code }

// Category returns the failure category.
func (e *Error) Category() Category { return e.category }

// Message returns the message without the cause chain.
func (e *Error) Message() string { return e.message }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool { return e.retryable }

// OwnerID returns the owner associated with the failure, if any.
func (e *Error) OwnerID() string { return e.ownerID }

// TaskID returns the task associated with the failure, if any.
func (e *Error) TaskID() string { return e.taskID }

// Metadata returns a copy of the attached metadata. Mutating the copy
// does not affect the error.
func (e *Error) Metadata() map[string]string {
	if e.metadata == nil {
		return map[string]string{}
	}
	return maps.Clone(e.metadata)
}

// wireError is the persisted shape. The cause collapses to a string;
// chains are not reconstructed on the way back in.
type wireError struct {
	Code      Code              `json:"code"`
	Category  Category          `json:"category"`
	Message   string            `json:"message"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Retryable bool              `json:"retryable"`
	OwnerID   string            `json:"owner_id,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	w := wireError{
		Code:      e.code,
		Category:  e.category,
		Message:   e.message,
		Metadata:  e.metadata,
		Retryable: e.retryable,
		OwnerID:   e.ownerID,
		TaskID:    e.taskID,
	}
	if e.cause != nil {
		w.Cause = e.cause.Error()
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var w wireError
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Error{
		code:      w.Code,
		category:  w.Category,
		message:   w.Message,
		metadata:  w.Metadata,
		retryable: w.Retryable,
		ownerID:   w.OwnerID,
		taskID:    w.TaskID,
	}
	if w.Cause != "" {
		e.cause = fmt.Errorf("%s", w.Cause)
	}
	return nil
}

// Timeout reports an operation that exceeded its deadline.
func Timeout(message string, opts ...Option) *Error {
	return New(CodeTimeout, message, opts...)
}

// LockTimeout reports a lock wait that expired before the lock was
// granted.
func LockTimeout(ownerID, resourceKey string, opts ...Option) *Error {
	opts = append(opts,
		WithOwnerID(ownerID),
		WithMetadata("resource_key", resourceKey))
	msg := fmt.Sprintf("lock on %s timed out for %s", resourceKey, ownerID)
	return New(CodeLockTimeout, msg, opts...)
}

// NotFound reports a missing record or resource.
func NotFound(message string, opts ...Option) *Error {
	return New(CodeNotFound, message, opts...)
}

// RateLimited reports a sliding-window admission rejection.
func RateLimited(message string, opts ...Option) *Error {
	return New(CodeRateLimited, message, opts...)
}

// InvalidInput reports malformed or rejected input.
func InvalidInput(message string, opts ...Option) *Error {
	return New(CodeInvalidInput, message, opts...)
}

// Conflict reports a concurrent-modification conflict.
func Conflict(message string, opts ...Option) *Error {
	return New(CodeConflict, message, opts...)
}

// Internal reports an unexpected internal failure.
func Internal(message string, opts ...Option) *Error {
	return New(CodeInternal, message, opts...)
}

// CircuitOpen reports a call rejected by an open breaker.
func CircuitOpen(name string, opts ...Option) *Error {
	opts = append(opts, WithMetadata("circuit", name))
	return New(CodeCircuitOpen, fmt.Sprintf("circuit %s is open", name), opts...)
}

// Corruption reports a checksum mismatch or otherwise bad state.
func Corruption(message string, opts ...Option) *Error {
	return New(CodeCorruption, message, opts...)
}

// HealExhausted reports that every recovery strategy for a resource
// failed.
func HealExhausted(resourceKey string, opts ...Option) *Error {
	opts = append(opts, WithMetadata("resource_key", resourceKey))
	msg := fmt.Sprintf("no recovery strategy could fix %s", resourceKey)
	return New(CodeHealExhausted, msg, opts...)
}

// StepFailed reports a terminally failed executor step.
func StepFailed(stepID, message string, opts ...Option) *Error {
	opts = append(opts, WithMetadata("step_id", stepID))
	msg := fmt.Sprintf("step %s failed: %s", stepID, message)
	return New(CodeStepFailed, msg, opts...)
}
