//go:build !linux

package btf

import "os"

// mapFile reads path into memory. Platforms without a mmap fast path
// still get the lazy decoding behavior, just from a heap buffer.
func mapFile(path string) ([]byte, func() error, error) {
	raw, err := os.ReadFile(path)
	return raw, nil, err
}
