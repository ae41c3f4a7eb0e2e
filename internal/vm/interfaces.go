package vm

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/kiln/internal/storage"
)

// libvirtClient defines the libvirt operations needed for domain lifecycle
// management. This wraps operations from *libvirt.Libvirt to allow for testing.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	// DomainLookupByName looks up a domain by name
	DomainLookupByName(name string) (libvirt.Domain, error)

	// DomainDefineXML defines (or redefines) a domain from XML
	DomainDefineXML(xml string) (libvirt.Domain, error)

	// DomainCreate boots a defined domain
	DomainCreate(dom libvirt.Domain) error

	// DomainGetState gets the state of a domain
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)

	// DomainGetXMLDesc returns the current descriptor of a domain
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)

	// DomainShutdown requests a graceful shutdown
	DomainShutdown(dom libvirt.Domain) error

	// DomainDestroy force-stops a domain
	DomainDestroy(dom libvirt.Domain) error

	// DomainUndefineFlags undefines a domain with flags (e.g., NVRAM cleanup)
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error

	// ConnectListAllDomains lists defined domains
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
}

// volumeDeleter removes storage volumes referenced by a domain.
//
// In production, this is satisfied by *storage.Manager.
type volumeDeleter interface {
	DeleteVolumes(ctx context.Context, pool string, volumes []string) ([]storage.VolumeResult, error)
}

// connection is one open hypervisor connection. It is opened per operation
// and closed when the operation returns.
type connection interface {
	libvirtClient
	storage.LibvirtClient
	Close() error
}
