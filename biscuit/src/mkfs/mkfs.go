// Command mkfs builds a fresh file system image and optionally
// populates it from a host directory tree, the way the teacher's own
// mkfs walked a "skeleton" directory into a freshly created image
// before it was baked into a bootable disk. This version targets
// spec.md §4.3's inode layout (fs.Format) rather than the teacher's
// log-structured one, and has no bootloader/kernel image to splice in
// since cmd/kernel is a host-run binary, not something booted off the
// disk it mounts.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cache"
	"defs"
	"fs"
	"ustr"
	"vm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: mkfs <image> [skeleton-dir]")
		os.Exit(1)
	}
	image := os.Args[1]

	disk, err := cache.OpenFileDisk(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %s: %v\n", image, err)
		os.Exit(1)
	}
	fsys := fs.Format(disk, fs.DefaultDiskSectors)

	if len(os.Args) >= 3 {
		addTree(fsys, os.Args[2])
	}

	if serr := fsys.Sync(); serr != 0 {
		fmt.Fprintf(os.Stderr, "mkfs: sync: %s\n", serr)
		os.Exit(1)
	}
}

// addTree walks skeldir on the host and replicates it into fsys rooted
// at "/", creating directories and copying regular file contents.
func addTree(fsys *fs.Fs_t, skeldir string) {
	err := filepath.WalkDir(skeldir, func(path string, d os.DirEntry, werr error) error {
		if werr != nil {
			fmt.Fprintf(os.Stderr, "mkfs: %s: %v\n", path, werr)
			return werr
		}
		rel := strings.TrimPrefix(path, skeldir)
		rel = strings.TrimPrefix(rel, string(filepath.Separator))
		if rel == "" {
			return nil
		}
		dst := "/" + filepath.ToSlash(rel)

		if d.IsDir() {
			if derr := fsys.Mkdir(ustr.Ustr(dst)); derr != 0 {
				fmt.Fprintf(os.Stderr, "mkfs: mkdir %s: %s\n", dst, derr)
			}
			return nil
		}
		copyFile(fsys, path, dst)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: walking %s: %v\n", skeldir, err)
		os.Exit(1)
	}
}

func copyFile(fsys *fs.Fs_t, src, dst string) {
	sf, err := os.Open(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %s: %v\n", src, err)
		return
	}
	defer sf.Close()

	fh, ferr := fsys.Open(ustr.Ustr(dst), defs.O_CREAT|defs.O_EXCL)
	if ferr != 0 {
		fmt.Fprintf(os.Stderr, "mkfs: create %s: %s\n", dst, ferr)
		return
	}
	defer fh.Close()

	buf := make([]byte, cache.SectorSize)
	for {
		n, rerr := sf.Read(buf)
		if n > 0 {
			ub := vm.NewFakeubuf(buf[:n])
			if _, werr := fh.Write(ub); werr != 0 {
				fmt.Fprintf(os.Stderr, "mkfs: write %s: %s\n", dst, werr)
				return
			}
		}
		if rerr == io.EOF {
			return
		}
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "mkfs: %s: %v\n", src, rerr)
			return
		}
	}
}
