package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// GuardOptions configures Guarded.
type GuardOptions struct {
	// Timeout bounds a single call on top of any caller deadline. Zero leaves
	// the caller's deadline as the only limit.
	Timeout time.Duration
	// FailureThreshold consecutive engine failures open the breaker.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// Guarded adds a per-call timeout and a circuit breaker in front of another
// Recognizer. It never retries; retry policy belongs to the caller.
type Guarded struct {
	next    Recognizer
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

func NewGuarded(next Recognizer, opts GuardOptions, log logrus.FieldLogger) *Guarded {
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	threshold := opts.FailureThreshold
	settings := gobreaker.Settings{
		Name:        "ocr",
		MaxRequests: 1,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		// a slow image says nothing about engine health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrTimeout)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"breaker":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Warn("ocr breaker state changed")
		},
	}
	return &Guarded{next: next, timeout: opts.Timeout, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (g *Guarded) Recognize(ctx context.Context, png []byte) (Result, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	v, err := g.cb.Execute(func() (interface{}, error) {
		res, err := g.next.Recognize(ctx, png)
		if cerr := ctx.Err(); cerr != nil && !errors.Is(err, ErrTimeout) {
			return Result{}, fmt.Errorf("%w: %v", ErrTimeout, cerr)
		}
		return res, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Result{}, err
	}
	return v.(Result), nil
}

// State exposes the breaker state for health reporting.
func (g *Guarded) State() string { return g.cb.State().String() }
