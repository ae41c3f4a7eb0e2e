package vm

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jbweber/kiln/internal/descriptor"
	"github.com/jbweber/kiln/internal/metrics"
	"github.com/jbweber/kiln/internal/status"
	"github.com/jbweber/kiln/internal/storage"
)

// DeleteResult is the outcome of Delete.
type DeleteResult struct {
	Name           string   `json:"name" yaml:"name"`
	Success        bool     `json:"success" yaml:"success"`
	DeletedVolumes []string `json:"deletedVolumes" yaml:"deletedVolumes"`
}

// Delete removes a domain definition, optionally with its storage.
//
// With deleteStorage set, every volume the descriptor references through a
// volume-type disk is deleted from its pool first. Volume failures are logged
// and skipped; only the volumes actually removed are reported. The domain is
// then force-stopped if needed and undefined.
//
// A missing domain fails with ErrDomainNotFound when failIfNotFound is set;
// otherwise Delete logs a warning and returns Success false.
func (c *Client) Delete(ctx context.Context, name string, deleteStorage, failIfNotFound bool) (*DeleteResult, error) {
	var result *DeleteResult
	err := c.withConnection(ctx, "delete", name, func(ctx context.Context, conn connection) error {
		var err error
		result, err = deleteWithDeps(ctx, name, deleteStorage, failIfNotFound, conn, storage.NewManager(conn))
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// deleteWithDeps removes a domain with injected dependencies.
func deleteWithDeps(ctx context.Context, name string, deleteStorage, failIfNotFound bool, lv libvirtClient, vd volumeDeleter) (*DeleteResult, error) {
	const op = "delete"
	logger := zerolog.Ctx(ctx)

	d, err := lookupDomain(lv, name)
	if err != nil {
		if errors.Is(err, ErrDomainNotFound) && !failIfNotFound {
			logger.Warn().Msg("domain not found, nothing to delete")
			return &DeleteResult{Name: name, Success: false, DeletedVolumes: []string{}}, nil
		}
		return nil, opError(op, name, StepLookup, err)
	}

	deleted := []string{}
	if deleteStorage {
		xml, err := d.Descriptor()
		if err != nil {
			return nil, opError(op, name, StepDescriptor, err)
		}

		groups, err := descriptor.VolumesByPool(xml)
		if err != nil {
			return nil, opError(op, name, StepDescriptor, err)
		}

		for _, g := range groups {
			deleted = append(deleted, deletePoolVolumes(ctx, vd, g)...)
		}
	}

	state, err := d.State()
	if err != nil {
		return nil, opError(op, name, StepState, err)
	}

	if state != status.StateDefinedStopped {
		logger.Info().Str("state", state.String()).Msg("force-stopping domain before undefine")
		if err := d.Destroy(); err != nil {
			// A crashed domain is already inactive and cannot be destroyed.
			current, serr := d.State()
			if serr != nil || status.IsActive(current) {
				return nil, opError(op, name, StepDestroy, err)
			}
			logger.Warn().Err(err).Str("state", current.String()).Msg("destroy failed on inactive domain, continuing")
		}
	}

	logger.Info().Msg("undefining domain")
	if err := d.Undefine(); err != nil {
		return nil, opError(op, name, StepUndefine, err)
	}

	return &DeleteResult{Name: name, Success: true, DeletedVolumes: deleted}, nil
}

// deletePoolVolumes deletes one pool's volumes and returns the identifiers
// of those removed. Failures are logged, never returned.
func deletePoolVolumes(ctx context.Context, vd volumeDeleter, g descriptor.PoolVolumes) []string {
	logger := zerolog.Ctx(ctx)

	results, err := vd.DeleteVolumes(ctx, g.Pool, g.Volumes)
	if err != nil {
		logger.Error().Err(err).Str("pool", g.Pool).Strs("volumes", g.Volumes).Msg("unable to resolve storage pool, skipping its volumes")
		metrics.VolumeDeleteFailures.Add(float64(len(g.Volumes)))
		return nil
	}

	var deleted []string
	for _, r := range results {
		if !r.Deleted() {
			logger.Warn().Err(r.Err).Str("volume", r.ID()).Msg("failed to delete volume")
			metrics.VolumeDeleteFailures.Inc()
			continue
		}
		logger.Info().Str("volume", r.ID()).Msg("deleted volume")
		metrics.VolumesDeleted.Inc()
		deleted = append(deleted, r.ID())
	}

	return deleted
}
