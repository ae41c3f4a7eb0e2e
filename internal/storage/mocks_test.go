package storage

import (
	"fmt"
	"sync"

	"github.com/digitalocean/go-libvirt"
)

// mockLibvirtClient is a mock implementation of LibvirtClient for testing.
type mockLibvirtClient struct {
	mu      sync.Mutex
	volumes map[string]map[string]bool // pool name -> volume name -> present

	// failDelete makes StorageVolDelete fail for the named volumes
	failDelete map[string]bool

	poolLookupCalls []string
	volDeleteCalls  []string
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		volumes:    make(map[string]map[string]bool),
		failDelete: make(map[string]bool),
	}
}

func (m *mockLibvirtClient) addVolume(pool, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.volumes[pool] == nil {
		m.volumes[pool] = make(map[string]bool)
	}
	m.volumes[pool][name] = true
}

func (m *mockLibvirtClient) hasVolume(pool, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.volumes[pool][name]
}

func (m *mockLibvirtClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.poolLookupCalls = append(m.poolLookupCalls, name)
	if _, ok := m.volumes[name]; !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", name)
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockLibvirtClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.volumes[pool.Name][name] {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: %s/%s", pool.Name, name)
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: name, Key: pool.Name + "/" + name}, nil
}

func (m *mockLibvirtClient) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volDeleteCalls = append(m.volDeleteCalls, vol.Key)
	if m.failDelete[vol.Name] {
		return fmt.Errorf("volume %s is in use", vol.Name)
	}
	delete(m.volumes[vol.Pool], vol.Name)
	return nil
}
