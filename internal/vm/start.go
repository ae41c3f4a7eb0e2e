package vm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbweber/kiln/internal/status"
)

// PowerResult is the outcome of Start and Stop.
type PowerResult struct {
	Name  string       `json:"name" yaml:"name"`
	State status.State `json:"state" yaml:"state"`
}

var (
	startTarget        = status.NewSet(status.StateRunning)
	startNonConvergent = status.NewSet(status.StatePaused, status.StateCrashed, status.StateDefinedStopped)
)

// Start boots a domain. A domain that is already running is left alone.
//
// With opts.Wait set, Start polls until the domain is running. A wait that
// times out, is cancelled, or sees the domain settle in Paused, Crashed or
// Defined-Stopped fails at step wait even though the boot request itself
// succeeded.
func (c *Client) Start(ctx context.Context, name string, opts WaitOptions) (*PowerResult, error) {
	var result *PowerResult
	err := c.withConnection(ctx, "start", name, func(ctx context.Context, conn connection) error {
		var err error
		result, err = startWithDeps(ctx, name, opts.Wait, c.waitBudget(opts), conn, c.Waiter)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// startWithDeps boots a domain with injected dependencies.
func startWithDeps(ctx context.Context, name string, wait bool, budget time.Duration, lv libvirtClient, waiter StateWaiter) (*PowerResult, error) {
	const op = "start"
	logger := zerolog.Ctx(ctx)

	d, err := lookupDomain(lv, name)
	if err != nil {
		return nil, opError(op, name, StepLookup, err)
	}

	state, err := d.State()
	if err != nil {
		return nil, opError(op, name, StepState, err)
	}
	if state == status.StateRunning {
		logger.Info().Msg("domain already running")
		return &PowerResult{Name: name, State: state}, nil
	}

	logger.Info().Str("state", state.String()).Msg("starting domain")
	if err := d.Create(); err != nil {
		if !errors.Is(err, ErrAlreadyActive) {
			return nil, opError(op, name, StepCreate, err)
		}
		logger.Info().Err(err).Msg("domain already active")
	}

	if wait {
		state, err = waiter.WaitFor(ctx, d, startTarget, startNonConvergent, budget)
		if err != nil {
			return nil, opError(op, name, StepWait, err)
		}
		logger.Info().Msg("domain is running")
	} else {
		state, err = d.State()
		if err != nil {
			return nil, opError(op, name, StepState, err)
		}
	}

	return &PowerResult{Name: name, State: state}, nil
}
