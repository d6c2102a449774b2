package btf

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/elastic/go-freelru"
)

// stringCacheSize bounds the number of lazily decoded strings kept per
// table. vmlinux carries strings in the hundreds of thousands; the mmap
// backend only ever touches the subset its queries hit.
const stringCacheSize = 8192

// stringTable resolves string offsets against the string section of a
// BTF blob. For split BTF the table chains to the base table: offsets
// below the base section length resolve there, the remainder resolves
// locally after rebasing.
type stringTable struct {
	base *stringTable
	data []byte

	// Lazily decoded strings, keyed by local offset. Safe for
	// concurrent use.
	lru *freelru.SyncedLRU[uint32, string]

	// Fully decoded section, keyed by local offset. Built once by
	// preload, read-only afterwards.
	eager map[uint32]string
}

func newStringTable(data []byte, base *stringTable) (*stringTable, error) {
	if base != nil && base.base != nil {
		return nil, fmt.Errorf("base string table is itself split: %w", ErrNotSupported)
	}
	if len(data) > 0 && data[0] != 0 {
		return nil, fmt.Errorf("first string in table is non-empty: %w", ErrInvalidString)
	}

	lru, err := freelru.NewSynced[uint32, string](stringCacheSize, func(off uint32) uint32 { return off })
	if err != nil {
		return nil, err
	}

	return &stringTable{base: base, data: data, lru: lru}, nil
}

// length returns the size of the local section in bytes.
func (st *stringTable) length() uint32 {
	return uint32(len(st.data))
}

// Lookup returns the string at offset. Offset zero is always the empty
// string and never fails.
func (st *stringTable) Lookup(offset uint32) (string, error) {
	if offset == 0 {
		return "", nil
	}

	if st.base != nil {
		if offset < st.base.length() {
			return st.base.Lookup(offset)
		}
		offset -= st.base.length()
	}

	return st.lookup(offset)
}

func (st *stringTable) lookup(offset uint32) (string, error) {
	if st.eager != nil {
		s, ok := st.eager[offset]
		if !ok {
			return "", fmt.Errorf("string offset %d: %w", offset, ErrInvalidString)
		}
		return s, nil
	}

	if s, ok := st.lru.Get(offset); ok {
		return s, nil
	}

	s, err := st.decode(offset)
	if err != nil {
		return "", err
	}
	st.lru.Add(offset, s)
	return s, nil
}

func (st *stringTable) decode(offset uint32) (string, error) {
	if offset >= st.length() {
		return "", fmt.Errorf("string offset %d exceeds section length %d: %w", offset, st.length(), ErrInvalidString)
	}

	i := bytes.IndexByte(st.data[offset:], 0)
	if i < 0 {
		return "", fmt.Errorf("string offset %d is unterminated: %w", offset, ErrInvalidString)
	}

	raw := st.data[offset : offset+uint32(i)]
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("string offset %d is not valid UTF-8: %w", offset, ErrInvalidString)
	}

	return string(raw), nil
}

// preload decodes the whole section up front. Only offsets at string
// starts remain valid afterwards, which is how the section is laid out:
// each string begins right after the NUL terminating the previous one.
func (st *stringTable) preload() error {
	eager := make(map[uint32]string)
	for off := uint32(0); off < st.length(); {
		s, err := st.decode(off)
		if err != nil {
			return err
		}
		eager[off] = s
		off += uint32(len(s)) + 1
	}
	st.eager = eager
	return nil
}
