package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap adds context to err while keeping its classification. A nil err
// yields nil. When err already carries a code, the wrapper inherits the
// code, category, ids, and metadata. Context cancellation maps to
// CANCELED, a missed deadline to TIMEOUT, and anything else to INTERNAL.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var inner *Error
	if errors.As(err, &inner) {
		w := &Error{
			code:      inner.code,
			category:  inner.category,
			message:   message,
			cause:     err,
			metadata:  inner.Metadata(),
			retryable: inner.retryable,
			ownerID:   inner.ownerID,
			taskID:    inner.taskID,
		}
		return w.withOptions(opts)
	}

	code := CodeInternal
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeTimeout
	case errors.Is(err, context.Canceled):
		code = CodeCanceled
	}
	return New(code, message, append(opts, WithCause(err))...)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps err under an explicit code, ignoring whatever
// classification err already carries.
func WrapWithCode(err error, code Code, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	return New(code, message, append(opts, WithCause(err))...)
}

func (e *Error) withOptions(opts []Option) *Error {
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AsCoreError returns the first classified error in the chain, or nil.
func AsCoreError(err error) CoreError {
	if e := asError(err); e != nil {
		return e
	}
	return nil
}

func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Is reports whether the chain carries the given code.
func Is(err error, code Code) bool {
	e := asError(err)
	return e != nil && e.code == code
}

// IsCategory reports whether the chain carries the given category.
func IsCategory(err error, category Category) bool {
	e := asError(err)
	return e != nil && e.category == category
}

// IsRetryable reports whether another attempt may succeed. Unclassified
// errors are treated as not retryable.
func IsRetryable(err error) bool {
	e := asError(err)
	return e != nil && e.retryable
}

// IsTransient reports whether the failure is transient.
func IsTransient(err error) bool {
	return IsCategory(err, CategoryTransient)
}

// IsPermanent reports whether the failure is permanent.
func IsPermanent(err error) bool {
	return IsCategory(err, CategoryPermanent)
}

// GetCode returns the chain's code, or "" for unclassified errors.
func GetCode(err error) Code {
	if e := asError(err); e != nil {
		return e.code
	}
	return ""
}

// Cause walks the chain to its root.
func Cause(err error) error {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err
		}
		err = inner
	}
}

// Join combines multiple errors into one.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// RecoverPanic converts a recovered panic value into an Error. A nil
// value yields nil.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(CodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
