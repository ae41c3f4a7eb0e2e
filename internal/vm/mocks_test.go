package vm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/jbweber/kiln/internal/descriptor"
	kilnlibvirt "github.com/jbweber/kiln/internal/libvirt"
	"github.com/jbweber/kiln/internal/status"
	"github.com/jbweber/kiln/internal/storage"
)

// fakeDomain is one domain held by the mock hypervisor.
type fakeDomain struct {
	dom   libvirt.Domain
	xml   string
	state status.State

	// haltAfterPolls is the number of state reads an In-Shutdown guest takes
	// to power off. Negative means the guest never halts.
	haltAfterPolls int
	pendingPolls   int
}

// mockLibvirtClient is a stateful mock hypervisor implementing connection.
// Domain transitions follow status.Next, so invalid requests fail the way
// libvirt would. Any xxxFunc field overrides the default behavior.
type mockLibvirtClient struct {
	mu sync.Mutex

	domains map[string]*fakeDomain
	volumes map[string]map[string]bool // pool name -> volume name -> present

	// failVolumeDelete makes StorageVolDelete fail for the named volumes
	failVolumeDelete map[string]bool

	// Configurable behavior
	domainLookupByNameFunc func(name string) (libvirt.Domain, error)
	domainDefineXMLFunc    func(xml string) (libvirt.Domain, error)
	domainCreateFunc       func(dom libvirt.Domain) error
	domainGetStateFunc     func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainShutdownFunc     func(dom libvirt.Domain) error
	domainDestroyFunc      func(dom libvirt.Domain) error
	connectListFunc        func() ([]libvirt.Domain, error)

	// Call tracking
	domainLookupByNameCalls  []string
	domainDefineXMLCalls     []string
	domainCreateCalls        []string
	domainGetStateCalls      []string
	domainShutdownCalls      []string
	domainDestroyCalls       []string
	domainUndefineFlagsCalls []string
	volDeleteCalls           []string
	callOrder                []string
	closeCalls               int
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		domains:          make(map[string]*fakeDomain),
		volumes:          make(map[string]map[string]bool),
		failVolumeDelete: make(map[string]bool),
	}
}

// addDomain seeds a defined domain in the given state.
func (m *mockLibvirtClient) addDomain(name, xml string, state status.State) *fakeDomain {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	fd := &fakeDomain{
		dom:            libvirt.Domain{Name: name, UUID: libvirt.UUID(id)},
		xml:            xml,
		state:          state,
		haltAfterPolls: 1,
	}
	m.domains[name] = fd
	return fd
}

func (m *mockLibvirtClient) addVolume(pool, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.volumes[pool] == nil {
		m.volumes[pool] = make(map[string]bool)
	}
	m.volumes[pool][name] = true
}

func (m *mockLibvirtClient) domain(name string) *fakeDomain {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.domains[name]
}

func (m *mockLibvirtClient) stateOf(name string) status.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fd, ok := m.domains[name]; ok {
		return fd.state
	}
	return status.StateDestroyed
}

func (m *mockLibvirtClient) record(list *[]string, name, call string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	*list = append(*list, name)
	m.callOrder = append(m.callOrder, call)
}

func noDomain(name string) error {
	return libvirt.Error{
		Code:    uint32(libvirt.ErrNoDomain),
		Message: fmt.Sprintf("Domain not found: no domain with matching name '%s'", name),
	}
}

func (m *mockLibvirtClient) transition(name string, action status.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fd, ok := m.domains[name]
	if !ok {
		return noDomain(name)
	}

	next, err := status.Next(fd.state, action)
	if err != nil {
		return fmt.Errorf("requested operation is not valid: %w", err)
	}

	if next == status.StateDestroyed {
		delete(m.domains, name)
		return nil
	}

	fd.state = next
	if next == status.StateInShutdown {
		fd.pendingPolls = fd.haltAfterPolls
	}
	return nil
}

func (m *mockLibvirtClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	m.record(&m.domainLookupByNameCalls, name, "lookup")
	if m.domainLookupByNameFunc != nil {
		return m.domainLookupByNameFunc(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fd, ok := m.domains[name]
	if !ok {
		return libvirt.Domain{}, noDomain(name)
	}
	return fd.dom, nil
}

func (m *mockLibvirtClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.record(&m.domainDefineXMLCalls, xml, "define")
	if m.domainDefineXMLFunc != nil {
		return m.domainDefineXMLFunc(xml)
	}

	info, err := descriptor.Inspect(xml)
	if err != nil {
		return libvirt.Domain{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if fd, ok := m.domains[info.Name]; ok {
		if info.UUID != "" && info.UUID != uuid.UUID(fd.dom.UUID).String() {
			return libvirt.Domain{}, fmt.Errorf("domain '%s' already exists with a different uuid", info.Name)
		}
		fd.xml = xml
		return fd.dom, nil
	}

	id := uuid.New()
	if info.UUID != "" {
		id = uuid.MustParse(info.UUID)
	}
	fd := &fakeDomain{
		dom:            libvirt.Domain{Name: info.Name, UUID: libvirt.UUID(id)},
		xml:            xml,
		state:          status.StateDefinedStopped,
		haltAfterPolls: 1,
	}
	m.domains[info.Name] = fd
	return fd.dom, nil
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	m.record(&m.domainCreateCalls, dom.Name, "create")
	if m.domainCreateFunc != nil {
		return m.domainCreateFunc(dom)
	}
	return m.transition(dom.Name, status.ActionCreate)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.record(&m.domainGetStateCalls, dom.Name, "state")
	if m.domainGetStateFunc != nil {
		return m.domainGetStateFunc(dom, flags)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fd, ok := m.domains[dom.Name]
	if !ok {
		return 0, 0, noDomain(dom.Name)
	}

	if fd.state == status.StateInShutdown && fd.haltAfterPolls >= 0 {
		if fd.pendingPolls <= 0 {
			fd.state, _ = status.Next(fd.state, status.ActionGuestHalt)
		} else {
			fd.pendingPolls--
		}
	}

	return int32(toLibvirtState(fd.state)), 0, nil
}

func (m *mockLibvirtClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fd, ok := m.domains[dom.Name]
	if !ok {
		return "", noDomain(dom.Name)
	}
	return fd.xml, nil
}

func (m *mockLibvirtClient) DomainShutdown(dom libvirt.Domain) error {
	m.record(&m.domainShutdownCalls, dom.Name, "shutdown")
	if m.domainShutdownFunc != nil {
		return m.domainShutdownFunc(dom)
	}
	return m.transition(dom.Name, status.ActionShutdown)
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	m.record(&m.domainDestroyCalls, dom.Name, "destroy")
	if m.domainDestroyFunc != nil {
		return m.domainDestroyFunc(dom)
	}
	return m.transition(dom.Name, status.ActionDestroy)
}

func (m *mockLibvirtClient) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.record(&m.domainUndefineFlagsCalls, dom.Name, "undefine")
	return m.transition(dom.Name, status.ActionUndefine)
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	if m.connectListFunc != nil {
		doms, err := m.connectListFunc()
		return doms, uint32(len(doms)), err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.domains))
	for name := range m.domains {
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	doms := make([]libvirt.Domain, 0, len(names))
	for _, name := range names {
		doms = append(doms, m.domains[name].dom)
	}
	return doms, uint32(len(doms)), nil
}

func (m *mockLibvirtClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.volumes[name]; !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: no storage pool with matching name '%s'", name)
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockLibvirtClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.volumes[pool.Name][name] {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: no storage vol with matching name '%s'", name)
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockLibvirtClient) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volDeleteCalls = append(m.volDeleteCalls, storage.VolumeID(vol.Pool, vol.Name))
	m.callOrder = append(m.callOrder, "volume-delete")
	if m.failVolumeDelete[vol.Name] {
		return fmt.Errorf("cannot delete volume %s: device or resource busy", vol.Name)
	}
	delete(m.volumes[vol.Pool], vol.Name)
	return nil
}

func (m *mockLibvirtClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCalls++
	return nil
}

func toLibvirtState(s status.State) libvirt.DomainState {
	switch s {
	case status.StateRunning:
		return libvirt.DomainRunning
	case status.StatePaused:
		return libvirt.DomainPaused
	case status.StateCrashed:
		return libvirt.DomainCrashed
	case status.StateInShutdown:
		return libvirt.DomainShutdown
	default:
		return libvirt.DomainShutoff
	}
}

// mockVolumeDeleter is a mock implementation of volumeDeleter.
type mockVolumeDeleter struct {
	mu sync.Mutex

	deleteVolumesFunc  func(ctx context.Context, pool string, volumes []string) ([]storage.VolumeResult, error)
	deleteVolumesCalls []string // pool names
}

func (m *mockVolumeDeleter) DeleteVolumes(ctx context.Context, pool string, volumes []string) ([]storage.VolumeResult, error) {
	m.mu.Lock()
	m.deleteVolumesCalls = append(m.deleteVolumesCalls, pool)
	m.mu.Unlock()

	return m.deleteVolumesFunc(ctx, pool, volumes)
}

// newTestClient returns a Client whose connections are served by mock and
// whose waits poll quickly.
func newTestClient(mock *mockLibvirtClient) *Client {
	c := NewClient("test:///default", kilnlibvirt.Options{})
	c.Waiter = StateWaiter{Backoff: Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}}
	c.WaitTimeout = time.Second
	c.dial = func(context.Context) (connection, error) {
		return mock, nil
	}
	return c
}

const testDescriptor = `<domain type='kvm'>
  <name>vm1</name>
  <memory unit='MiB'>512</memory>
  <vcpu>1</vcpu>
  <os>
    <type arch='x86_64'>hvm</type>
  </os>
  <devices>
    <disk type='volume' device='disk'>
      <source pool='poolA' volume='v1'/>
      <target dev='vda' bus='virtio'/>
    </disk>
    <disk type='volume' device='disk'>
      <source pool='poolA' volume='v2'/>
      <target dev='vdb' bus='virtio'/>
    </disk>
  </devices>
</domain>`
