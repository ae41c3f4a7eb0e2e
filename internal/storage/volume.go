package storage

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

// DeleteVolumes deletes each named volume from a pool, resolving the pool
// once. Every volume is attempted regardless of earlier failures; the
// per-volume outcomes are returned in input order.
//
// An error is returned only when the pool itself cannot be resolved, in which
// case no volume was attempted.
func (m *Manager) DeleteVolumes(ctx context.Context, poolName string, volumeNames []string) ([]VolumeResult, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	results := make([]VolumeResult, 0, len(volumeNames))
	for _, name := range volumeNames {
		results = append(results, VolumeResult{
			Pool:   poolName,
			Volume: name,
			Err:    m.deleteFromPool(ctx, pool, name),
		})
	}

	return results, nil
}

func (m *Manager) deleteFromPool(_ context.Context, pool libvirt.StoragePool, volumeName string) error {
	vol, err := m.client.StorageVolLookupByName(pool, volumeName)
	if err != nil {
		return fmt.Errorf("volume not found: %w", err)
	}

	if err := m.client.StorageVolDelete(vol, 0); err != nil {
		return fmt.Errorf("failed to delete volume: %w", err)
	}

	return nil
}
