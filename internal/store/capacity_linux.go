//go:build linux

package store

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RemainingCapacity returns the free bytes of the filesystem holding the
// sample directory.
func (s *DiskStore) RemainingCapacity() (int64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(s.dir, &fs); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", s.dir, err)
	}
	return int64(fs.Bavail) * int64(fs.Bsize), nil
}
