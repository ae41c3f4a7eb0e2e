package vm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jbweber/kiln/internal/status"
)

// DomainInfo identifies a domain and its current state.
type DomainInfo struct {
	Name  string       `json:"name" yaml:"name"`
	UUID  string       `json:"uuid" yaml:"uuid"`
	State status.State `json:"state" yaml:"state"`
}

// List lists active and inactive domains sorted by name.
//
// A non-empty filter keeps only domains whose state name matches it
// case-insensitively; an unknown state name is rejected. Domains whose state
// cannot be read are logged and skipped.
func (c *Client) List(ctx context.Context, filter string) ([]DomainInfo, error) {
	const op = "list"

	if filter != "" {
		if _, err := status.Parse(filter); err != nil {
			return nil, opError(op, "", StepValidate, err)
		}
	}

	var vms []DomainInfo
	err := c.withConnection(ctx, op, "", func(ctx context.Context, conn connection) error {
		var err error
		vms, err = listWithDeps(ctx, filter, conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	return vms, nil
}

// listWithDeps lists domains with injected dependencies.
func listWithDeps(ctx context.Context, filter string, lv libvirtClient) ([]DomainInfo, error) {
	logger := zerolog.Ctx(ctx)

	// NeedResults: 1 means populate the domains slice
	// Flags: 0 means all domains (active and inactive)
	domains, _, err := lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, opError("list", "", StepList, fmt.Errorf("failed to list domains: %w", err))
	}

	vms := make([]DomainInfo, 0, len(domains))
	for _, dom := range domains {
		d := &domainHandle{lv: lv, dom: dom}

		state, err := d.State()
		if err != nil {
			logger.Warn().Err(err).Str("domain", dom.Name).Msg("failed to get domain state, skipping")
			continue
		}

		if filter != "" && !strings.EqualFold(string(state), filter) {
			continue
		}

		vms = append(vms, DomainInfo{Name: d.Name(), UUID: d.UUID(), State: state})
	}

	sort.Slice(vms, func(i, j int) bool { return vms[i].Name < vms[j].Name })

	return vms, nil
}

// State looks up one domain and reports its identity and current state.
func (c *Client) State(ctx context.Context, name string) (*DomainInfo, error) {
	var info *DomainInfo
	err := c.withConnection(ctx, "state", name, func(ctx context.Context, conn connection) error {
		var err error
		info, err = stateWithDeps(name, conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	return info, nil
}

func stateWithDeps(name string, lv libvirtClient) (*DomainInfo, error) {
	d, err := lookupDomain(lv, name)
	if err != nil {
		return nil, opError("state", name, StepLookup, err)
	}

	state, err := d.State()
	if err != nil {
		return nil, opError("state", name, StepState, err)
	}

	return &DomainInfo{Name: d.Name(), UUID: d.UUID(), State: state}, nil
}
