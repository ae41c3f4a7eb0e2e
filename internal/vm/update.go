package vm

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jbweber/kiln/internal/descriptor"
	"github.com/jbweber/kiln/internal/status"
)

// UpdateResult is the outcome of Update.
type UpdateResult struct {
	Name         string       `json:"name" yaml:"name"`
	UUID         string       `json:"uuid" yaml:"uuid"`
	WasRestarted bool         `json:"wasRestarted" yaml:"wasRestarted"`
	State        status.State `json:"state" yaml:"state"`
}

// Update redefines an existing domain from xml, preserving its identity.
//
// If the descriptor has no <uuid> the existing domain's identity is inserted
// before it is submitted. With restart set, a domain that was running or
// paused is destroyed and booted again so the new definition takes effect;
// a stopped domain stays stopped.
func (c *Client) Update(ctx context.Context, name, xml string, restart bool) (*UpdateResult, error) {
	const op = "update"

	name, err := resolveName(op, name, xml)
	if err != nil {
		return nil, err
	}

	var result *UpdateResult
	err = c.withConnection(ctx, op, name, func(ctx context.Context, conn connection) error {
		var err error
		result, err = updateWithDeps(ctx, name, xml, restart, conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// updateWithDeps redefines a domain with injected dependencies.
func updateWithDeps(ctx context.Context, name, xml string, restart bool, lv libvirtClient) (*UpdateResult, error) {
	const op = "update"
	logger := zerolog.Ctx(ctx)

	existing, err := lookupDomain(lv, name)
	if err != nil {
		return nil, opError(op, name, StepLookup, err)
	}

	prior, err := existing.State()
	if err != nil {
		return nil, opError(op, name, StepState, err)
	}

	merged, err := descriptor.WithIdentity(xml, existing.UUID())
	if err != nil {
		return nil, opError(op, name, StepDescriptor, err)
	}

	logger.Info().Str("uuid", existing.UUID()).Msg("redefining domain")
	d, err := defineDomain(lv, merged)
	if err != nil {
		return nil, opError(op, name, StepDefine, err)
	}

	restarted := false
	if restart && (prior == status.StateRunning || prior == status.StatePaused) {
		logger.Info().Str("state", prior.String()).Msg("restarting domain to apply new definition")
		if err := d.Destroy(); err != nil {
			return nil, opError(op, name, StepDestroy, err)
		}
		if err := d.Create(); err != nil && !errors.Is(err, ErrAlreadyActive) {
			return nil, opError(op, name, StepCreate, err)
		}
		restarted = true
	}

	state, err := d.State()
	if err != nil {
		return nil, opError(op, name, StepState, err)
	}

	return &UpdateResult{
		Name:         d.Name(),
		UUID:         d.UUID(),
		WasRestarted: restarted,
		State:        state,
	}, nil
}
