package invoke

import (
	"strings"

	"github.com/tasknetics/taskcore/errors"
)

// classify maps a provider SDK error onto the shared taxonomy so the
// retry predicate and circuit breaker treat it correctly. Rate limits and
// transient server failures are retryable; billing and quota problems are
// permanent.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	if isBillingMessage(msg) {
		return errors.New(errors.CodeInvalidInput, provider+" billing or quota failure",
			errors.WithCategory(errors.CategoryPermanent),
			errors.WithRetryable(false),
			errors.WithCause(err))
	}
	if isRateLimitMessage(msg) {
		return errors.RateLimited(provider+" rate limited", errors.WithCause(err))
	}
	if isServerMessage(msg) {
		return errors.New(errors.CodeInternal, provider+" transient server failure",
			errors.WithCategory(errors.CategoryTransient),
			errors.WithRetryable(true),
			errors.WithCause(err))
	}
	return errors.WrapWithCode(err, errors.CodeInternal, provider+" request failed")
}

func isRateLimitMessage(msg string) bool {
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "capacity")
}

func isServerMessage(msg string) bool {
	return strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "504") ||
		strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "gateway timeout") ||
		strings.Contains(msg, "temporarily unavailable")
}

func isBillingMessage(msg string) bool {
	return strings.Contains(msg, "billing") ||
		strings.Contains(msg, "payment") ||
		strings.Contains(msg, "credits") ||
		strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "insufficient") ||
		strings.Contains(msg, "402") ||
		strings.Contains(msg, "subscription")
}
