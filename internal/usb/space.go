// Package usb enumerates removable storage devices, reports their free
// space, and watches for hotplug events so newly attached drives can be
// offered as copy destinations.
package usb

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Space describes capacity at a mount point.
type Space struct {
	Free  uint64
	Total uint64
}

// FreeSpace reports free and total bytes for the filesystem containing path.
func FreeSpace(path string) (Space, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Space{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(stat.Bsize)
	return Space{
		Free:  stat.Bavail * bsize,
		Total: stat.Blocks * bsize,
	}, nil
}
