package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// jitterRatio bounds the random part of a delay: jitter is drawn from [0, jitterRatio*delay).
const jitterRatio = 0.3

// Policy configures Do. Zero fields are replaced by WithDefaults.
type Policy struct {
	MaxAttempts   int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor" mapstructure:"backoff_factor"`
}

// Default is the policy used for persisting and pinning content.
var Default = Policy{
	MaxAttempts:   3,
	InitialDelay:  time.Second,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2,
}

// Once performs a single attempt. Health probes use it so a dead node is
// reported on the first failure.
var Once = Policy{MaxAttempts: 1}

// WithDefaults returns a copy of p with zero values taken from Default.
func (p Policy) WithDefaults() Policy {
	pp := p
	if pp.MaxAttempts <= 0 {
		pp.MaxAttempts = Default.MaxAttempts
	}
	if pp.InitialDelay <= 0 {
		pp.InitialDelay = Default.InitialDelay
	}
	if pp.MaxDelay <= 0 {
		pp.MaxDelay = Default.MaxDelay
	}
	if pp.MaxDelay < pp.InitialDelay {
		pp.MaxDelay = pp.InitialDelay
	}
	if pp.BackoffFactor < 1 {
		pp.BackoffFactor = Default.BackoffFactor
	}
	return pp
}

// NextDelay computes min(delay*factor + jitter, MaxDelay), where jitter is
// r*0.3*delay. r must lie in [0, 1).
func (p Policy) NextDelay(delay time.Duration, r float64) time.Duration {
	jitter := r * jitterRatio * float64(delay)
	next := float64(delay)*p.BackoffFactor + jitter
	if next > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(next)
}

// OperationError is returned by Do once an operation has exhausted its attempts.
type OperationError struct {
	// Op names the operation, e.g. "ipfs add".
	Op string
	// Attempts is the number of invocations made.
	Attempts int
	// Err is the last underlying failure.
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do stops at once and reports it
// inside an OperationError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do invokes fn until it succeeds or the policy's attempts are exhausted.
// Invocations never overlap. The wait between attempts ends early when ctx is
// cancelled, in which case the returned OperationError carries both the last
// failure and the context error.
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	p = p.WithDefaults()
	delay := p.InitialDelay

	for attempt := 1; ; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				zap.L().Debug("operation succeeded after retry", zap.String("op", op), zap.Int("attempt", attempt))
			}
			return res, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, &OperationError{Op: op, Attempts: attempt, Err: perm.err}
		}
		if attempt >= p.MaxAttempts {
			zap.L().Warn("operation exhausted retries", zap.String("op", op), zap.Int("attempts", attempt), zap.Error(err))
			return zero, &OperationError{Op: op, Attempts: attempt, Err: err}
		}

		delay = p.NextDelay(delay, rand.Float64())
		zap.L().Debug("operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, &OperationError{Op: op, Attempts: attempt, Err: multierr.Append(err, ctx.Err())}
		}
	}
}
