package errors

// Category classifies errors by their retry semantics.
type Category string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient Category = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent Category = "permanent"

	// CategoryResource indicates capacity or quota exhaustion.
	CategoryResource Category = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or corrupted state.
	CategoryInternal Category = "internal"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c Category) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// Code identifies a specific failure type within a category.
type Code string

// Failure codes used across the substrate.
const (
	// Transient failures
	CodeTimeout     Code = "TIMEOUT"      // Operation deadline exceeded
	CodeLockTimeout Code = "LOCK_TIMEOUT" // Lock acquisition wait exceeded
	CodeUnavailable Code = "UNAVAILABLE"  // Collaborator temporarily unavailable
	CodeNetworkErr  Code = "NETWORK_ERR"  // Network connectivity issue

	// Permanent failures
	CodeNotFound      Code = "NOT_FOUND"      // Record or resource does not exist
	CodeConflict      Code = "CONFLICT"       // Concurrent modification conflict
	CodeInvalidInput  Code = "INVALID_INPUT"  // Malformed or invalid input
	CodeAlreadyExists Code = "ALREADY_EXISTS" // Record already present
	CodePrecondition  Code = "PRECONDITION"   // Precondition not met
	CodeCanceled      Code = "CANCELED"       // Caller canceled the operation
	CodeHealExhausted Code = "HEAL_EXHAUSTED" // Every recovery strategy failed
	CodeStepFailed    Code = "STEP_FAILED"    // One executor step failed terminally

	// Resource failures
	CodeRateLimited   Code = "RATE_LIMITED"   // Sliding-window limit reached
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED" // External quota exhausted
	CodeResourceBusy  Code = "RESOURCE_BUSY"  // Lock held by another owner
	CodeCircuitOpen   Code = "CIRCUIT_OPEN"   // Breaker is open, call rejected

	// Internal failures
	CodeInternal   Code = "INTERNAL"   // Unexpected internal error
	CodeCorruption Code = "CORRUPTION" // Checksum mismatch or bad state
	CodePanic      Code = "PANIC"      // Recovered from panic
)

// String returns the string representation of the code.
func (c Code) String() string {
	return string(c)
}

// DefaultCategory returns the default category for a code.
func (c Code) DefaultCategory() Category {
	switch c {
	case CodeTimeout, CodeLockTimeout, CodeUnavailable, CodeNetworkErr:
		return CategoryTransient

	case CodeNotFound, CodeConflict, CodeInvalidInput, CodeAlreadyExists,
		CodePrecondition, CodeCanceled, CodeHealExhausted, CodeStepFailed:
		return CategoryPermanent

	case CodeRateLimited, CodeQuotaExceeded, CodeResourceBusy, CodeCircuitOpen:
		return CategoryResource

	case CodeInternal, CodeCorruption, CodePanic:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// codeDescriptions provides human-readable descriptions for codes.
var codeDescriptions = map[Code]string{
	CodeTimeout:       "operation timed out",
	CodeLockTimeout:   "lock acquisition timed out",
	CodeUnavailable:   "collaborator temporarily unavailable",
	CodeNetworkErr:    "network connectivity error",
	CodeNotFound:      "not found",
	CodeConflict:      "conflicting concurrent modification",
	CodeInvalidInput:  "invalid input provided",
	CodeAlreadyExists: "already exists",
	CodePrecondition:  "precondition failed",
	CodeCanceled:      "operation canceled",
	CodeHealExhausted: "all recovery strategies failed",
	CodeStepFailed:    "step execution failed",
	CodeRateLimited:   "rate limit exceeded",
	CodeQuotaExceeded: "quota exceeded",
	CodeResourceBusy:  "resource is locked by another owner",
	CodeCircuitOpen:   "circuit breaker is open",
	CodeInternal:      "internal error",
	CodeCorruption:    "data corruption detected",
	CodePanic:         "recovered from panic",
}

// Description returns a human-readable description for the code.
func (c Code) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
