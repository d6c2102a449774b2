package btf

import (
	"errors"
	"fmt"
	"iter"
	"os"
)

// Backend selects the storage strategy backing a Btf object.
type Backend int

const (
	// Cache decodes the whole blob at construction. Faster queries at
	// the cost of a slower construction and a larger memory footprint.
	Cache Backend = iota

	// Mmap keeps the raw bytes resident and decodes per query. Fast
	// construction and a low memory footprint at the cost of slower
	// queries. Base blobs only.
	Mmap
)

// Btf is a parsed BTF object. It resolves ids, names and types against
// one blob, transparently spanning a base blob when constructed from
// split BTF.
//
// A Btf is immutable once constructed and safe for concurrent use. A
// split Btf keeps a reference to its base, which must not be closed
// while the split is in use.
type Btf struct {
	obj  backend
	base *Btf
}

// FromBytes parses a base BTF blob using the Cache backend.
//
// b must not be modified for the lifetime of the returned Btf.
func FromBytes(b []byte) (*Btf, error) {
	return FromBytesWithBackend(b, Cache)
}

// FromBytesWithBackend parses a base BTF blob using the given backend.
func FromBytesWithBackend(b []byte, backend Backend) (*Btf, error) {
	switch backend {
	case Cache:
		obj, err := newCacheBackend(b, nil, 0)
		if err != nil {
			return nil, err
		}
		return &Btf{obj: obj}, nil

	case Mmap:
		obj, err := newMmapBackend(b, nil)
		if err != nil {
			return nil, err
		}
		return &Btf{obj: obj}, nil

	default:
		return nil, fmt.Errorf("backend %d: %w", backend, ErrNotSupported)
	}
}

// FromSplitBytes parses a split BTF blob whose ids and string offsets
// extend base. base must not itself be split.
//
// Split BTF always uses the Cache backend: split ids interleave with
// base ids and name queries union both blobs.
func FromSplitBytes(b []byte, base *Btf) (*Btf, error) {
	if base.base != nil {
		return nil, fmt.Errorf("base is itself a split BTF: %w", ErrNotSupported)
	}

	obj, err := newCacheBackend(b, base.obj.strings(), base.obj.maxID())
	if err != nil {
		return nil, err
	}
	return &Btf{obj: obj, base: base}, nil
}

// FromFile reads a base BTF file, e.g. /sys/kernel/btf/vmlinux, using
// the Cache backend.
func FromFile(path string) (*Btf, error) {
	return FromFileWithBackend(path, Cache)
}

// FromFileWithBackend reads a base BTF file using the given backend.
// With the Mmap backend the file is memory-mapped where the platform
// supports it and read into memory otherwise.
func FromFileWithBackend(path string, backend Backend) (*Btf, error) {
	if backend == Mmap {
		raw, munmap, err := mapFile(path)
		if err != nil {
			return nil, fmt.Errorf("mmap %s: %w", path, err)
		}

		obj, err := newMmapBackend(raw, munmap)
		if err != nil {
			if munmap != nil {
				_ = munmap()
			}
			return nil, fmt.Errorf("file %s: %w", path, err)
		}
		return &Btf{obj: obj}, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	btf, err := FromBytesWithBackend(b, backend)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", path, err)
	}
	return btf, nil
}

// FromSplitFile reads a split BTF file, e.g. /sys/kernel/btf/<module>,
// extending base.
func FromSplitFile(path string, base *Btf) (*Btf, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	btf, err := FromSplitBytes(b, base)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", path, err)
	}
	return btf, nil
}

// Close releases resources backing the object, i.e. the mapping of an
// Mmap backed Btf. It does not close the base of a split Btf.
func (b *Btf) Close() error {
	return b.obj.close()
}

// TypeByID returns the type with the given id.
//
// Id 0 denotes void and fails with ErrNotFound, as does any id not
// described by the blob or its base.
func (b *Btf) TypeByID(id TypeID) (Type, error) {
	if b.base != nil {
		typ, err := b.base.TypeByID(id)
		if err == nil {
			return typ, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return b.obj.typeByID(id)
}

// IDsByName returns the ids of all types with the given name, base ids
// first, in blob order. Fails with ErrNotFound if no type matches.
// Anonymous types are not indexed: the empty name never matches.
func (b *Btf) IDsByName(name string) ([]TypeID, error) {
	var ids []TypeID
	if b.base != nil {
		ids = append(ids, b.base.obj.idsByName(name)...)
	}
	ids = append(ids, b.obj.idsByName(name)...)

	if len(ids) == 0 {
		return nil, fmt.Errorf("type name %q: %w", name, ErrNotFound)
	}
	return ids, nil
}

// TypesByName returns all types with the given name, base types first,
// in blob order. Fails with ErrNotFound if no type matches.
func (b *Btf) TypesByName(name string) ([]Type, error) {
	ids, err := b.IDsByName(name)
	if err != nil {
		return nil, err
	}

	types := make([]Type, 0, len(ids))
	for _, id := range ids {
		typ, err := b.TypeByID(id)
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
	}
	return types, nil
}

// TypeName resolves the name of a type or of one of its parts: a named
// Type, Member, FuncParam, EnumValue or Enum64Value. A zero name offset
// yields the empty string. Entities without a name, e.g. Ptr or
// FuncProto, fail with ErrNotSupported.
func (b *Btf) TypeName(e any) (string, error) {
	n, ok := e.(named)
	if !ok {
		return "", fmt.Errorf("%T has no name: %w", e, ErrNotSupported)
	}
	return b.obj.strings().Lookup(n.nameOffset())
}

// ChainedType resolves the type referenced by e: the pointee of a Ptr,
// the aliased type of a Typedef, the element type of an Array, the
// return type of a FuncProto, the type of a Member or FuncParam, the Var
// of a VarSecinfo, and so on.
//
// Fails with ErrNotChained if e's kind has no outgoing type edge and
// with ErrNotFound if the edge leads to void.
func (b *Btf) ChainedType(e any) (Type, error) {
	c, ok := e.(chainedID)
	if !ok {
		return nil, fmt.Errorf("%T: %w", e, ErrNotChained)
	}
	return b.TypeByID(c.chainID())
}

// Chain returns an iterator following chained type edges starting at e,
// which may be a Type or one of its parts. The walk stops at void, at
// the first kind without an outgoing edge, or after maxChainDepth
// steps.
func (b *Btf) Chain(e any) iter.Seq[Type] {
	return func(yield func(Type) bool) {
		cur := e
		for depth := 0; depth < maxChainDepth; depth++ {
			c, ok := cur.(chainedID)
			if !ok {
				return
			}

			typ, err := b.TypeByID(c.chainID())
			if err != nil {
				return
			}
			if !yield(typ) {
				return
			}
			cur = typ
		}
	}
}
