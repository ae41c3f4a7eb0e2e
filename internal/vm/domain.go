package vm

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/jbweber/kiln/internal/status"
)

// domainHandle is a reference to one domain on an open connection.
type domainHandle struct {
	lv  libvirtClient
	dom libvirt.Domain
}

// lookupDomain resolves a domain by name. A missing domain is reported as
// *DomainNotFoundError.
func lookupDomain(lv libvirtClient, name string) (*domainHandle, error) {
	dom, err := lv.DomainLookupByName(name)
	if err != nil {
		if libvirt.IsNotFound(err) {
			return nil, &DomainNotFoundError{Name: name, Err: err}
		}
		return nil, fmt.Errorf("failed to look up domain: %w", err)
	}

	return &domainHandle{lv: lv, dom: dom}, nil
}

// defineDomain defines a new domain or updates an existing one in place.
// The domain is not started.
func defineDomain(lv libvirtClient, xml string) (*domainHandle, error) {
	dom, err := lv.DomainDefineXML(xml)
	if err != nil {
		return nil, fmt.Errorf("failed to define domain: %w", err)
	}

	return &domainHandle{lv: lv, dom: dom}, nil
}

func (d *domainHandle) Name() string {
	return d.dom.Name
}

// UUID returns the domain identity in canonical form.
func (d *domainHandle) UUID() string {
	return uuid.UUID(d.dom.UUID).String()
}

// State reads the current lifecycle state.
func (d *domainHandle) State() (status.State, error) {
	state, _, err := d.lv.DomainGetState(d.dom, 0)
	if err != nil {
		return "", fmt.Errorf("failed to get domain state: %w", err)
	}

	return status.FromLibvirt(libvirt.DomainState(state)), nil
}

// Descriptor returns the domain's current XML descriptor.
func (d *domainHandle) Descriptor() (string, error) {
	xml, err := d.lv.DomainGetXMLDesc(d.dom, 0)
	if err != nil {
		return "", fmt.Errorf("failed to get domain descriptor: %w", err)
	}

	return xml, nil
}

// Create boots the domain. An active domain is reported as
// *AlreadyActiveError, whether the state machine or the hypervisor refuses.
func (d *domainHandle) Create() error {
	if state, err := d.State(); err == nil {
		if _, terr := status.Next(state, status.ActionCreate); terr != nil && status.IsActive(state) {
			return &AlreadyActiveError{Name: d.Name(), State: state, Err: terr}
		}
	}

	if err := d.lv.DomainCreate(d.dom); err != nil {
		if state, serr := d.State(); serr == nil && status.IsActive(state) {
			return &AlreadyActiveError{Name: d.Name(), State: state, Err: err}
		}
		return fmt.Errorf("failed to start domain: %w", err)
	}

	return nil
}

// Shutdown asks the guest to power off. It does not wait.
func (d *domainHandle) Shutdown() error {
	if err := d.lv.DomainShutdown(d.dom); err != nil {
		return fmt.Errorf("failed to shut down domain: %w", err)
	}

	return nil
}

// Destroy stops the domain immediately. It does not wait.
func (d *domainHandle) Destroy() error {
	if err := d.lv.DomainDestroy(d.dom); err != nil {
		return fmt.Errorf("failed to destroy domain: %w", err)
	}

	return nil
}

// Undefine removes the persistent definition, including any NVRAM file.
// A domain that cannot be undefined from its current state is refused with
// *DomainBusyError.
func (d *domainHandle) Undefine() error {
	state, err := d.State()
	if err != nil {
		return err
	}
	if _, err := status.Next(state, status.ActionUndefine); err != nil {
		return &DomainBusyError{Name: d.Name(), State: state}
	}

	if err := d.lv.DomainUndefineFlags(d.dom, libvirt.DomainUndefineNvram); err != nil {
		return fmt.Errorf("failed to undefine domain: %w", err)
	}

	return nil
}
