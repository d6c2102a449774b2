//go:build linux

package btf

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps path read-only. The returned cleanup unmaps it.
func mapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	size := int(fi.Size())
	if size <= 0 {
		// Pseudo files like /sys/kernel/btf/vmlinux report a zero
		// size, fall back to reading them.
		raw, err := os.ReadFile(path)
		return raw, nil, err
	}

	raw, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}

	return raw, func() error { return unix.Munmap(raw) }, nil
}
