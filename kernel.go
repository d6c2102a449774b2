//go:build linux

package btf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// LoadKernelBtf returns the running kernel's BTF.
//
// Defaults to /sys/kernel/btf/vmlinux and falls back to scanning the
// file system for vmlinux ELFs. The result is cached process-wide.
// Returns an error wrapping ErrNotSupported if no kernel BTF can be
// found.
func LoadKernelBtf() (*Btf, error) {
	kernelBtf.RLock()
	base := kernelBtf.base
	kernelBtf.RUnlock()

	if base != nil {
		return base, nil
	}

	kernelBtf.Lock()
	defer kernelBtf.Unlock()

	if kernelBtf.base != nil {
		return kernelBtf.base, nil
	}

	base, err := loadKernelBtf()
	if err != nil {
		return nil, err
	}

	kernelBtf.base = base
	return base, nil
}

// LoadKernelModuleBtf returns the split BTF for the named kernel
// module, read from /sys/kernel/btf/<module>; no other location is
// tried. The result is cached process-wide.
func LoadKernelModuleBtf(module string) (*Btf, error) {
	dir, file := filepath.Split(module)
	if dir != "" || filepath.Ext(file) != "" {
		return nil, fmt.Errorf("invalid module name %q: %w", module, ErrNotSupported)
	}

	kernelBtf.RLock()
	split := kernelBtf.split[module]
	kernelBtf.RUnlock()

	if split != nil {
		return split, nil
	}

	base, err := LoadKernelBtf()
	if err != nil {
		return nil, err
	}

	kernelBtf.Lock()
	defer kernelBtf.Unlock()

	if split := kernelBtf.split[module]; split != nil {
		return split, nil
	}

	split, err = FromSplitFile(filepath.Join("/sys/kernel/btf", module), base)
	if err != nil {
		return nil, err
	}

	kernelBtf.split[module] = split
	return split, nil
}

// FlushKernelBtf removes any cached kernel BTF.
func FlushKernelBtf() {
	kernelBtf.Lock()
	defer kernelBtf.Unlock()

	kernelBtf.base = nil
	kernelBtf.split = make(map[string]*Btf)
}

var kernelBtf = struct {
	sync.RWMutex
	base  *Btf
	split map[string]*Btf
}{
	split: make(map[string]*Btf),
}

func loadKernelBtf() (*Btf, error) {
	btf, err := FromFile("/sys/kernel/btf/vmlinux")
	if err == nil {
		return btf, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	raw, err := findVMLinux()
	if err != nil {
		return nil, err
	}

	return FromBytes(raw)
}

// findVMLinux scans well-known paths for vmlinux kernel images and
// extracts their .BTF section.
func findVMLinux() ([]byte, error) {
	release, err := kernelRelease()
	if err != nil {
		return nil, err
	}

	// Same list of locations as libbpf.
	locations := []string{
		"/boot/vmlinux-%s",
		"/lib/modules/%s/vmlinux-%[1]s",
		"/lib/modules/%s/build/vmlinux",
		"/usr/lib/modules/%s/kernel/vmlinux",
		"/usr/lib/debug/boot/vmlinux-%s",
		"/usr/lib/debug/boot/vmlinux-%s.debug",
		"/usr/lib/debug/lib/modules/%s/vmlinux",
	}

	for _, loc := range locations {
		raw, err := ExtractBTFFromFile(fmt.Sprintf(loc, release))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return raw, err
	}

	return nil, fmt.Errorf("no BTF found for kernel version %s: %w", release, ErrNotSupported)
}

func kernelRelease() (string, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "", fmt.Errorf("uname failed: %w", err)
	}

	return unix.ByteSliceToString(uname.Release[:]), nil
}
