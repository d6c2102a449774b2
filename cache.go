package btf

import "fmt"

// cacheBackend eagerly decodes the whole type section at construction.
// Queries are then plain slice and map lookups, at the cost of a slower
// construction and a larger memory footprint.
type cacheBackend struct {
	first TypeID
	st    *stringTable

	// types[i] holds the type with id first+i.
	types []Type

	byName map[string][]TypeID
}

// newCacheBackend decodes buf. For split BTF, baseStrings and baseMax
// describe the base blob; both are zero values for a base blob.
func newCacheBackend(buf []byte, baseStrings *stringTable, baseMax TypeID) (*cacheBackend, error) {
	hdr, bo, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}

	st, err := newStringTable(hdr.stringSection(buf), baseStrings)
	if err != nil {
		return nil, err
	}
	if err := st.preload(); err != nil {
		return nil, err
	}

	first := baseMax + 1

	r := &reader{buf: hdr.typeSection(buf), bo: bo}
	types := make([]Type, 0, hdr.TypeLen/btfTypeLen)
	for r.remaining() > 0 {
		typ, err := decodeType(r)
		if err != nil {
			return nil, fmt.Errorf("type id %d: %w", first+TypeID(len(types)), err)
		}
		types = append(types, typ)
	}

	byName := make(map[string][]TypeID)
	for i, typ := range types {
		n, ok := typ.(named)
		if !ok || n.nameOffset() == 0 {
			continue
		}

		// Split types may carry names stored in the base's string
		// section, Lookup handles both.
		name, err := st.Lookup(n.nameOffset())
		if err != nil {
			return nil, fmt.Errorf("type id %d: %w", first+TypeID(i), err)
		}
		if name == "" {
			continue
		}
		byName[name] = append(byName[name], first+TypeID(i))
	}

	return &cacheBackend{
		first:  first,
		st:     st,
		types:  types,
		byName: byName,
	}, nil
}

func (cb *cacheBackend) maxID() TypeID {
	return cb.first + TypeID(len(cb.types)) - 1
}

func (cb *cacheBackend) typeByID(id TypeID) (Type, error) {
	if id < cb.first || id > cb.maxID() {
		return nil, fmt.Errorf("type id %d: %w", id, ErrNotFound)
	}
	return cb.types[id-cb.first], nil
}

func (cb *cacheBackend) idsByName(name string) []TypeID {
	return cb.byName[name]
}

func (cb *cacheBackend) names(fn func(string, []TypeID) bool) {
	for name, ids := range cb.byName {
		if !fn(name, ids) {
			return
		}
	}
}

func (cb *cacheBackend) strings() *stringTable {
	return cb.st
}

func (cb *cacheBackend) close() error {
	return nil
}
