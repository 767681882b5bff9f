package httpclient

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// Policy bounds the retry loop for one adapter. Shared read-only across calls.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	Multiplier        float64
	MaxDelay          time.Duration
	Jitter            float64 // fraction of the computed delay, e.g. 0.2
	RetryableStatuses map[int]bool
	RetryableKinds    map[Kind]bool
}

// DefaultPolicy returns the baseline policy shared by the source adapters.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
		RetryableStatuses: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
		RetryableKinds: map[Kind]bool{
			KindTransient: true,
			KindRateLimit: true,
		},
	}
}

// Backoff computes the delay before the given retry (attempt starts at 1).
// Capped exponential growth; the caller adds jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// Throttle is consulted around every exchange so that rate-limit state can
// be shared across calls (and across replicas when backed by Redis).
type Throttle interface {
	// Before returns a non-zero wait when the bucket is currently throttled.
	Before(ctx context.Context, bucket string) (time.Duration, error)
	// After records the outcome of an exchange for the bucket.
	After(ctx context.Context, bucket string, status int, header http.Header) error
}

// Observer receives attempt-level signals. Implemented by the metrics layer.
type Observer interface {
	ObserveAttempt(source string, status int, d time.Duration)
	ObserveRetry(source string, kind string)
	ObserveThrottleWait(source string, d time.Duration)
}

// Engine wraps a Client with bounded retries, exponential backoff with
// jitter, and rate-limit compliance. One engine per adapter.
type Engine struct {
	Source   string
	Client   *Client
	Throttle Throttle // optional
	Observer Observer // optional
	Logger   *slog.Logger
}

// Execute dispatches the spec until success, a terminal failure, exhausted
// attempts, or context expiry. Suspension only blocks this call; other
// in-flight calls proceed independently.
func (e *Engine) Execute(ctx context.Context, spec RequestSpec, policy Policy) (*RawResult, *ClassifiedError) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var last *ClassifiedError
	attempts := 0
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if wait := e.throttleWait(ctx, policy); wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, e.exhausted(last, attempts, "deadline exceeded while throttled")
			}
		}

		start := time.Now()
		raw, cerr := e.Client.Do(ctx, spec)
		elapsed := time.Since(start)
		attempts = attempt

		status := 0
		if raw != nil {
			status = raw.StatusCode
		} else if cerr != nil {
			status = cerr.StatusCode
		}
		if e.Observer != nil {
			e.Observer.ObserveAttempt(e.Source, status, elapsed)
		}
		if e.Throttle != nil && (raw != nil || cerr.StatusCode > 0) {
			header := http.Header{}
			if raw != nil {
				header = raw.Header
			}
			_ = e.Throttle.After(ctx, e.Source, status, header)
		}

		if cerr == nil {
			return raw, nil
		}
		last = cerr

		if !cerr.Retryable(policy) || attempt == policy.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			break
		}

		delay := policy.Backoff(attempt)
		// A server-provided retry interval overrides computed backoff,
		// capped at the policy maximum.
		if cerr.RetryAfter > 0 {
			delay = cerr.RetryAfter
			if policy.MaxDelay > 0 && delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		} else if policy.Jitter > 0 {
			delay += time.Duration(rand.Float64() * policy.Jitter * float64(delay))
		}

		if e.Observer != nil {
			e.Observer.ObserveRetry(e.Source, cerr.Kind.String())
		}
		logger.Debug("retrying upstream request",
			"source", e.Source, "attempt", attempt, "status", cerr.StatusCode,
			"kind", cerr.Kind.String(), "delay", delay)

		if err := sleepCtx(ctx, delay); err != nil {
			break
		}
	}

	if last == nil {
		last = transientErr(0, "no attempt completed")
	}
	out := *last
	out.Attempts = attempts
	return nil, &out
}

// throttleWait consults the shared rate-limit state before an attempt and
// returns how long this call must hold off, capped at the policy maximum.
func (e *Engine) throttleWait(ctx context.Context, policy Policy) time.Duration {
	if e.Throttle == nil {
		return 0
	}
	wait, err := e.Throttle.Before(ctx, e.Source)
	if err != nil || wait <= 0 {
		return 0
	}
	if policy.MaxDelay > 0 && wait > policy.MaxDelay {
		wait = policy.MaxDelay
	}
	if e.Observer != nil {
		e.Observer.ObserveThrottleWait(e.Source, wait)
	}
	return wait
}

func (e *Engine) exhausted(last *ClassifiedError, attempts int, msg string) *ClassifiedError {
	if last != nil {
		out := *last
		out.Attempts = attempts
		return &out
	}
	return &ClassifiedError{Kind: KindTransient, Message: msg, Attempts: attempts}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
