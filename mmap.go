package btf

import (
	"encoding/binary"
	"fmt"
)

// mmapBackend keeps the raw blob resident, typically memory-mapped from
// a file, and decodes type records on demand. Construction is a single
// scan of the type section recording record offsets and names; no type
// record is materialized until it is queried.
//
// Only base blobs are supported: split ids interleave with base ids at
// the facade and name queries must union both blobs, which requires the
// cache backend's indices.
type mmapBackend struct {
	bo      binary.ByteOrder
	raw     []byte
	section []byte
	st      *stringTable

	// munmap releases the mapping, nil when raw is heap-allocated.
	munmap func() error

	// offsets[i] holds the record offset of id i+1 within the type
	// section.
	offsets []int

	byName map[string][]TypeID
}

func newMmapBackend(raw []byte, munmap func() error) (*mmapBackend, error) {
	hdr, bo, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	st, err := newStringTable(hdr.stringSection(raw), nil)
	if err != nil {
		return nil, err
	}

	section := hdr.typeSection(raw)
	r := &reader{buf: section, bo: bo}
	offsets := make([]int, 0, hdr.TypeLen/btfTypeLen)
	byName := make(map[string][]TypeID)

	for r.remaining() > 0 {
		start := r.off

		bt, err := readTypePrefix(r)
		if err != nil {
			return nil, fmt.Errorf("type id %d: %w", len(offsets)+1, err)
		}
		size, err := trailerSize(&bt)
		if err != nil {
			return nil, fmt.Errorf("type id %d: %w", len(offsets)+1, err)
		}
		if _, err := r.bytes(size); err != nil {
			return nil, fmt.Errorf("type id %d: %w", len(offsets)+1, err)
		}

		offsets = append(offsets, start)
		id := TypeID(len(offsets))

		if bt.NameOff != 0 {
			// Names that do not decode are left out of the index
			// rather than failing construction; resolving them
			// through TypeName still reports the error.
			if name, err := st.Lookup(bt.NameOff); err == nil && name != "" {
				byName[name] = append(byName[name], id)
			}
		}
	}

	return &mmapBackend{
		bo:      bo,
		raw:     raw,
		section: section,
		st:      st,
		munmap:  munmap,
		offsets: offsets,
		byName:  byName,
	}, nil
}

func (mb *mmapBackend) maxID() TypeID {
	return TypeID(len(mb.offsets))
}

func (mb *mmapBackend) typeByID(id TypeID) (Type, error) {
	if id < 1 || id > mb.maxID() {
		return nil, fmt.Errorf("type id %d: %w", id, ErrNotFound)
	}

	r := &reader{buf: mb.section, off: mb.offsets[id-1], bo: mb.bo}
	typ, err := decodeType(r)
	if err != nil {
		return nil, fmt.Errorf("type id %d: %w", id, err)
	}
	return typ, nil
}

func (mb *mmapBackend) idsByName(name string) []TypeID {
	return mb.byName[name]
}

func (mb *mmapBackend) names(fn func(string, []TypeID) bool) {
	for name, ids := range mb.byName {
		if !fn(name, ids) {
			return
		}
	}
}

func (mb *mmapBackend) strings() *stringTable {
	return mb.st
}

func (mb *mmapBackend) close() error {
	if mb.munmap != nil {
		return mb.munmap()
	}
	return nil
}
