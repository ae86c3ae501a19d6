package cache

import (
	"os"

	"golang.org/x/sys/unix"

	"klog"
)

// FileDisk_t backs Disk_i with a plain host file -- this kernel's stand-in
// for the AHCI driver the teacher talks to real disk hardware through
// (dropped entirely, see DESIGN.md: device drivers are out of scope).
// Reads/writes go straight through pread/pwrite rather than the
// os.File read/write-at-offset wrappers, since that is the direct
// syscall pair an AHCI command would ultimately issue and is exactly
// what golang.org/x/sys/unix exists to expose.
type FileDisk_t struct {
	f *os.File
}

// OpenFileDisk opens (creating if necessary) a disk image at path.
func OpenFileDisk(path string) (*FileDisk_t, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &FileDisk_t{f: f}, nil
}

func (d *FileDisk_t) ReadSector(sector int, dst []byte) error {
	off := int64(sector) * SectorSize
	n, err := unix.Pread(int(d.f.Fd()), dst, off)
	if err != nil {
		return err
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0 // reading past the image's current end-of-file: zero-fill
	}
	return nil
}

func (d *FileDisk_t) WriteSector(sector int, src []byte) error {
	off := int64(sector) * SectorSize
	_, err := unix.Pwrite(int(d.f.Fd()), src, off)
	if err != nil {
		klog.Errorf("cache: write sector %d: %v", sector, err)
	}
	return err
}

func (d *FileDisk_t) Close() error {
	return d.f.Close()
}
