package vm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jbweber/kiln/internal/status"
)

var (
	stopTarget        = status.NewSet(status.StateDefinedStopped)
	stopNonConvergent = status.NewSet(status.StatePaused, status.StateCrashed)
)

// Stop powers a domain off. A stopped domain is left alone.
//
// Without force the guest is asked to shut down; with force the domain is
// destroyed immediately. With opts.Wait set, Stop polls until the domain is
// Defined-Stopped and fails at step wait on timeout, cancellation, or if
// the domain settles in Paused or Crashed.
func (c *Client) Stop(ctx context.Context, name string, force bool, opts WaitOptions) (*PowerResult, error) {
	var result *PowerResult
	err := c.withConnection(ctx, "stop", name, func(ctx context.Context, conn connection) error {
		var err error
		result, err = stopWithDeps(ctx, name, force, opts.Wait, c.waitBudget(opts), conn, c.Waiter)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// stopWithDeps powers a domain off with injected dependencies.
func stopWithDeps(ctx context.Context, name string, force, wait bool, budget time.Duration, lv libvirtClient, waiter StateWaiter) (*PowerResult, error) {
	const op = "stop"
	logger := zerolog.Ctx(ctx)

	d, err := lookupDomain(lv, name)
	if err != nil {
		return nil, opError(op, name, StepLookup, err)
	}

	state, err := d.State()
	if err != nil {
		return nil, opError(op, name, StepState, err)
	}
	if state == status.StateDefinedStopped {
		logger.Info().Msg("domain already stopped")
		return &PowerResult{Name: name, State: state}, nil
	}

	if force {
		logger.Info().Str("state", state.String()).Msg("destroying domain")
		if err := d.Destroy(); err != nil {
			return nil, opError(op, name, StepDestroy, err)
		}
	} else {
		logger.Info().Str("state", state.String()).Msg("requesting graceful shutdown")
		if err := d.Shutdown(); err != nil {
			return nil, opError(op, name, StepShutdown, err)
		}
	}

	if wait {
		state, err = waiter.WaitFor(ctx, d, stopTarget, stopNonConvergent, budget)
		if err != nil {
			return nil, opError(op, name, StepWait, err)
		}
		logger.Info().Msg("domain is stopped")
	} else {
		state, err = d.State()
		if err != nil {
			return nil, opError(op, name, StepState, err)
		}
	}

	return &PowerResult{Name: name, State: state}, nil
}
