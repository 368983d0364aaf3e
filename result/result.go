package result

import (
	"encoding/json"
	"fmt"
)

// Result is a tagged union of a successful value and a failure.
// The zero value is a failure with no error attached; construct values
// through Ok and Err.
type Result[T any] struct {
	ok      bool
	data    T
	err     error
	message string
}

// Ok returns a successful Result carrying data.
func Ok[T any](data T) Result[T] {
	return Result[T]{ok: true, data: data}
}

// Err returns a failed Result carrying err and a message for operators.
// If message is empty, the error text is used.
func Err[T any](err error, message string) Result[T] {
	if message == "" && err != nil {
		message = err.Error()
	}
	return Result[T]{err: err, message: message}
}

// Errf returns a failed Result with a formatted message.
func Errf[T any](err error, format string, args ...interface{}) Result[T] {
	return Err[T](err, fmt.Sprintf(format, args...))
}

// From converts a conventional (value, error) pair into a Result.
func From[T any](data T, err error) Result[T] {
	if err != nil {
		return Err[T](err, "")
	}
	return Ok(data)
}

// OK reports whether the Result holds a value.
func (r Result[T]) OK() bool {
	return r.ok
}

// Data returns the value. For a failed Result it returns the zero value.
func (r Result[T]) Data() T {
	return r.data
}

// Err returns the error for a failed Result, nil otherwise.
func (r Result[T]) Err() error {
	return r.err
}

// Message returns the human-readable failure message, empty on success.
func (r Result[T]) Message() string {
	return r.message
}

// Unwrap returns the conventional (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.data, r.err
}

// resultJSON is the wire representation of a Result.
type resultJSON[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON implements json.Marshaler. The discriminator field is
// "success"; failures serialize the error text, not the error value.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	j := resultJSON[T]{Success: r.ok, Message: r.message}
	if r.ok {
		d := r.data
		j.Data = &d
	} else if r.err != nil {
		j.Error = r.err.Error()
	}
	return json.Marshal(j)
}
