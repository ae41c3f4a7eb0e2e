package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jbweber/kiln/internal/descriptor"
	"github.com/jbweber/kiln/internal/naming"
	"github.com/jbweber/kiln/internal/status"
)

// CreateResult is the outcome of Create.
type CreateResult struct {
	Name    string       `json:"name" yaml:"name"`
	UUID    string       `json:"uuid" yaml:"uuid"`
	State   status.State `json:"state" yaml:"state"`
	Defined bool         `json:"defined" yaml:"defined"`
}

// Create ensures a domain exists, defining it from xml when it is absent.
//
// An existing domain is left as defined: its descriptor is not re-applied
// (use Update for that). When startAfterCreate is set and the domain is not
// running it is booted. Calling Create repeatedly is safe.
//
// name may be empty, in which case it is read from the descriptor. When both
// are given they must agree.
func (c *Client) Create(ctx context.Context, name, xml string, startAfterCreate bool) (*CreateResult, error) {
	const op = "create"

	name, err := resolveName(op, name, xml)
	if err != nil {
		return nil, err
	}

	var result *CreateResult
	err = c.withConnection(ctx, op, name, func(ctx context.Context, conn connection) error {
		var err error
		result, err = createWithDeps(ctx, name, xml, startAfterCreate, conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// createWithDeps ensures a domain exists with injected dependencies.
// This allows for testing by accepting interfaces instead of concrete types.
func createWithDeps(ctx context.Context, name, xml string, startAfterCreate bool, lv libvirtClient) (*CreateResult, error) {
	const op = "create"
	logger := zerolog.Ctx(ctx)

	defined := false
	d, err := lookupDomain(lv, name)
	switch {
	case errors.Is(err, ErrDomainNotFound):
		logger.Info().Msg("domain not defined, defining")
		d, err = defineDomain(lv, xml)
		if err != nil {
			return nil, opError(op, name, StepDefine, err)
		}
		defined = true
	case err != nil:
		return nil, opError(op, name, StepLookup, err)
	default:
		logger.Info().Msg("domain already defined, leaving definition unchanged")
	}

	state, err := d.State()
	if err != nil {
		return nil, opError(op, name, StepState, err)
	}

	if startAfterCreate && state != status.StateRunning {
		logger.Info().Str("state", state.String()).Msg("starting domain")
		if err := d.Create(); err != nil {
			if !errors.Is(err, ErrAlreadyActive) {
				return nil, opError(op, name, StepCreate, err)
			}
			logger.Info().Err(err).Msg("domain already active")
		}

		state, err = d.State()
		if err != nil {
			return nil, opError(op, name, StepState, err)
		}
	}

	return &CreateResult{
		Name:    d.Name(),
		UUID:    d.UUID(),
		State:   state,
		Defined: defined,
	}, nil
}

// resolveName reconciles the requested domain name with the one declared in
// the descriptor.
func resolveName(op, name, xml string) (string, error) {
	info, err := descriptor.Inspect(xml)
	if err != nil {
		return "", opError(op, name, StepDescriptor, err)
	}

	switch {
	case info.Name == "":
		return "", opError(op, name, StepValidate, errors.New("descriptor has no <name> element"))
	case name == "":
		name = info.Name
	case info.Name != name:
		return "", opError(op, name, StepValidate,
			fmt.Errorf("descriptor declares domain %q", info.Name))
	}

	if err := naming.ValidateDomainName(name); err != nil {
		return "", opError(op, name, StepValidate, err)
	}

	return name, nil
}
