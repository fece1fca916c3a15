package domain

import "time"

// RetryPolicy controls the engine's exec retry loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of exec attempts, including the
	// first one. Minimum 1.
	MaxAttempts int

	// Wait is slept between failed attempts. Zero retries immediately.
	Wait time.Duration
}

// Normalize clamps the policy into its valid range.
func (r RetryPolicy) Normalize() RetryPolicy {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if r.Wait < 0 {
		r.Wait = 0
	}
	return r
}
