package invoke

import (
	"context"

	"github.com/tasknetics/taskcore/breaker"
	"github.com/tasknetics/taskcore/logging"
	"github.com/tasknetics/taskcore/ratelimit"
	"github.com/tasknetics/taskcore/retry"
	"github.com/tasknetics/taskcore/telemetry"
)

// ResilientConfig wires an Invoker into the resilience substrate.
type ResilientConfig struct {
	// Class names the rate-limiter resource class this invoker draws from.
	Class string

	// Breaker names the circuit. Empty defaults to Class.
	Breaker string

	// Policy governs retries around each invocation. Zero value uses
	// retry.DefaultPolicy.
	Policy retry.Policy

	Limiter  ratelimit.Limiter
	Breakers *breaker.Registry
	Logger   *logging.Logger
}

// Resilient wraps an Invoker so each call waits for rate-limit capacity,
// passes through a named circuit breaker, retries per policy, and records
// the usage it actually consumed.
type Resilient struct {
	inner       Invoker
	class       string
	breakerName string
	policy      retry.Policy
	limiter     ratelimit.Limiter
	breakers    *breaker.Registry
	logger      *logging.Logger
}

// NewResilient wraps inner with cfg.
func NewResilient(inner Invoker, cfg ResilientConfig) *Resilient {
	name := cfg.Breaker
	if name == "" {
		name = cfg.Class
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Resilient{
		inner:       inner,
		class:       cfg.Class,
		breakerName: name,
		policy:      policy,
		limiter:     cfg.Limiter,
		breakers:    cfg.Breakers,
		logger:      logger.WithComponent("invoke"),
	}
}

// Invoke implements Invoker. Capacity is reserved once up front; each
// retry attempt still passes through the circuit breaker. An opened
// circuit rejects before the inner invoker runs, so remaining attempts
// burn backoff delay against the breaker, not provider quota.
func (r *Resilient) Invoke(ctx context.Context, req Request) (*Response, error) {
	ctx, span := telemetry.StartInvokeSpan(ctx, r.class)

	if r.limiter != nil {
		if err := r.limiter.WaitForCapacity(ctx, r.class, req.EstimatedInputUnits); err != nil {
			telemetry.EndInvokeSpan(span, 0, 0, 0, err)
			return nil, err
		}
	}

	res := retry.Do(ctx, r.policy, func(ctx context.Context) (*Response, error) {
		if r.breakers == nil {
			return r.inner.Invoke(ctx, req)
		}
		return breaker.Do(r.breakers, r.breakerName, func() (*Response, error) {
			return r.inner.Invoke(ctx, req)
		}).Unwrap()
	})
	if !res.OK() {
		r.logger.Warn("invocation failed", map[string]interface{}{
			"class": r.class,
			"error": res.Message(),
		})
		telemetry.EndInvokeSpan(span, 0, 0, 0, res.Err())
		return nil, res.Err()
	}

	resp := res.Data()
	if r.limiter != nil {
		r.limiter.RecordUsage(r.class, resp.Usage.InputUnits, resp.Usage.OutputUnits)
	}
	telemetry.EndInvokeSpan(span, resp.Usage.InputUnits, resp.Usage.OutputUnits, resp.CostUSD, nil)
	return resp, nil
}

var _ Invoker = (*Resilient)(nil)
