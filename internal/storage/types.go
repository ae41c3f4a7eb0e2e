package storage

// VolumeID returns the pool/volume identifier used in results and logs.
func VolumeID(pool, volume string) string {
	return pool + "/" + volume
}

// VolumeResult is the outcome of deleting one volume.
type VolumeResult struct {
	Pool   string
	Volume string
	Err    error
}

// ID returns the pool/volume identifier.
func (r VolumeResult) ID() string {
	return VolumeID(r.Pool, r.Volume)
}

// Deleted reports whether the volume was removed.
func (r VolumeResult) Deleted() bool {
	return r.Err == nil
}
