package vm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbweber/kiln/internal/metrics"
	"github.com/jbweber/kiln/internal/status"
)

const (
	// DefaultWaitTimeout bounds a wait when the caller gives no budget.
	DefaultWaitTimeout = 60 * time.Second

	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
	defaultFactor          = 2.0
)

// Wait outcome labels.
const (
	waitReached       = "reached"
	waitNonConvergent = "non_convergent"
	waitTimeout       = "timeout"
	waitCancelled     = "cancelled"
	waitError         = "error"
)

// Backoff is an exponential poll schedule. Zero fields take defaults.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultBackoff polls after 100ms, doubling up to 2s between polls.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: defaultInitialInterval,
		Max:     defaultMaxInterval,
		Factor:  defaultFactor,
	}
}

func (b Backoff) normalized() Backoff {
	if b.Initial <= 0 {
		b.Initial = defaultInitialInterval
	}
	if b.Max <= 0 {
		b.Max = defaultMaxInterval
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Factor < 1 {
		b.Factor = defaultFactor
	}
	return b
}

// next returns the interval to use after cur.
func (b Backoff) next(cur time.Duration) time.Duration {
	n := time.Duration(float64(cur) * b.Factor)
	if n > b.Max {
		return b.Max
	}
	return n
}

// stateReader is the part of a domain handle the waiter polls.
type stateReader interface {
	Name() string
	State() (status.State, error)
}

// StateWaiter polls a domain until it converges on a target state, reaches
// a state from which the target is unreachable, or runs out of time.
type StateWaiter struct {
	Backoff Backoff
}

// WaitFor polls d with exponential backoff. It returns the target state
// reached, or fails with *NonConvergentStateError as soon as a state in
// nonConvergent is observed, *TimeoutError once maxDuration has elapsed, or
// *CancelledError if ctx is done first. A failed state read ends the wait.
//
// The attempt count is unbounded; only maxDuration limits the wait.
func (w StateWaiter) WaitFor(ctx context.Context, d stateReader, target, nonConvergent status.Set, maxDuration time.Duration) (status.State, error) {
	if maxDuration <= 0 {
		maxDuration = DefaultWaitTimeout
	}

	b := w.Backoff.normalized()
	logger := zerolog.Ctx(ctx)
	timer := metrics.NewTimer()
	deadline := time.Now().Add(maxDuration)
	interval := b.Initial

	done := func(outcome string) {
		timer.ObserveDuration(metrics.WaitDuration.WithLabelValues(outcome))
	}

	for attempt := 1; ; attempt++ {
		state, err := d.State()
		if err != nil {
			done(waitError)
			return "", err
		}

		logger.Debug().
			Int("attempt", attempt).
			Str("state", state.String()).
			Stringer("target", target).
			Msg("polled domain state")

		if target.Has(state) {
			done(waitReached)
			return state, nil
		}
		if nonConvergent.Has(state) {
			done(waitNonConvergent)
			return state, &NonConvergentStateError{Name: d.Name(), State: state, Target: target}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			done(waitTimeout)
			return state, &TimeoutError{Name: d.Name(), Last: state, Target: target, Timeout: maxDuration}
		}

		sleep := min(interval, remaining)
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			done(waitCancelled)
			return state, &CancelledError{Name: d.Name(), Last: state, Err: ctx.Err()}
		case <-t.C:
		}

		interval = b.next(interval)
	}
}

// String implements fmt.Stringer for log output.
func (b Backoff) String() string {
	return fmt.Sprintf("%s..%s x%g", b.Initial, b.Max, b.Factor)
}
