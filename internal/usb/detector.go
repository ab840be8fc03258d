package usb

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Device is a mounted removable drive usable as a copy destination.
type Device struct {
	Device     string
	MountPoint string
	FSType     string
	Space      Space
}

// Detector finds removable block devices by combining /proc/mounts with the
// sysfs removable flag. Paths are overridable for tests.
type Detector struct {
	mountsPath string
	sysBlock   string
}

// NewDetector creates a detector reading the standard Linux paths.
func NewDetector() *Detector {
	return &Detector{
		mountsPath: "/proc/mounts",
		sysBlock:   "/sys/block",
	}
}

// ListRemovable returns mounted removable devices with their free space.
func (d *Detector) ListRemovable() ([]Device, error) {
	f, err := os.Open(d.mountsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var devices []Device
	for _, entry := range parseMounts(f) {
		if !d.isRemovable(entry.device) {
			continue
		}
		dev := Device{
			Device:     entry.device,
			MountPoint: entry.mountPoint,
			FSType:     entry.fsType,
		}
		if space, err := FreeSpace(entry.mountPoint); err == nil {
			dev.Space = space
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

type mountEntry struct {
	device     string
	mountPoint string
	fsType     string
}

// parseMounts reads /proc/mounts formatted data, keeping only /dev-backed
// entries. Octal escapes in mount points (e.g. \040 for space) are decoded.
func parseMounts(r io.Reader) []mountEntry {
	var entries []mountEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		entries = append(entries, mountEntry{
			device:     fields[0],
			mountPoint: unescapeMount(fields[1]),
			fsType:     fields[2],
		})
	}
	return entries
}

// isRemovable checks the sysfs removable flag for the device's base disk.
// Partition names (sdb1) are reduced to their disk (sdb) before lookup.
func (d *Detector) isRemovable(device string) bool {
	name := filepath.Base(device)
	disk := strings.TrimRightFunc(name, func(r rune) bool { return r >= '0' && r <= '9' })
	if disk == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(d.sysBlock, disk, "removable"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

func unescapeMount(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, ok := octal3(s[i+1 : i+4]); ok {
				b.WriteByte(v)
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func octal3(s string) (byte, bool) {
	var v int
	for i := 0; i < 3; i++ {
		c := s[i]
		if c < '0' || c > '7' {
			return 0, false
		}
		v = v*8 + int(c-'0')
	}
	return byte(v), true
}
