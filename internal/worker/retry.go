package worker

import (
	"time"

	"github.com/davidolu/vision-worker/internal/entity"
)

// Skip reasons reported by Decide.
const (
	ReasonMaxRetries = "max retry count reached"
	ReasonBackoff    = "backoff not elapsed"
)

// Decision is the outcome of a retry eligibility check.
type Decision struct {
	Eligible bool
	Reason   string
}

// RetryPolicy decides whether a failed job is eligible for another attempt.
// It is pure: no side effects, time comes from the injected clock.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration

	now func() time.Time
}

func NewRetryPolicy(maxRetries int, delay time.Duration, opts ...PolicyOption) *RetryPolicy {
	p := &RetryPolicy{MaxRetries: maxRetries, Delay: delay, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type PolicyOption func(*RetryPolicy)

// WithPolicyClock overrides the clock, for tests.
func WithPolicyClock(now func() time.Time) PolicyOption {
	return func(p *RetryPolicy) { p.now = now }
}

// Decide reports eligibility plus the skip reason when not eligible.
// A job with no recorded updated_at has never been attempted under failure
// tracking; it is treated as retry-eligible (fail open) so an ambiguous
// timestamp can never block forward progress indefinitely.
func (p *RetryPolicy) Decide(job entity.Job) Decision {
	if job.RetryCount >= p.MaxRetries {
		return Decision{Reason: ReasonMaxRetries}
	}
	if job.UpdatedAt == nil || job.UpdatedAt.IsZero() {
		return Decision{Eligible: true}
	}
	if p.now().Sub(*job.UpdatedAt) >= p.Delay {
		return Decision{Eligible: true}
	}
	return Decision{Reason: ReasonBackoff}
}

// ShouldRetry is Decide without the reason.
func (p *RetryPolicy) ShouldRetry(job entity.Job) bool {
	return p.Decide(job).Eligible
}
