//go:build !linux

package store

// RemainingCapacity reports the theoretical maximum on platforms without
// statfs. The per-sample size limit still bounds every upload.
func (s *DiskStore) RemainingCapacity() (int64, error) {
	return s.maxBytes * int64(s.count), nil
}
