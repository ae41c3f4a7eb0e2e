// Package storage removes the libvirt storage volumes a domain references.
//
// Volumes are addressed through their pool: the pool is resolved once and
// each volume is looked up and deleted inside it. Deletions are independent,
// so DeleteVolumes reports one result per volume instead of stopping at the
// first failure.
//
// Consumer-Side Interface:
//
// LibvirtClient lists the storage RPCs this package needs; *libvirt.Libvirt
// satisfies it directly and tests substitute an in-memory fake.
//
// Example usage:
//
//	mgr := storage.NewManager(client.Libvirt())
//	results, err := mgr.DeleteVolumes(ctx, "default", []string{"web-01-root.qcow2"})
//	if err != nil {
//	    return err // pool could not be resolved
//	}
//	for _, r := range results {
//	    if !r.Deleted() {
//	        log.Printf("failed to delete %s: %v", r.ID(), r.Err)
//	    }
//	}
package storage
