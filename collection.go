package btf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Collection combines one base BTF with zero or more named split BTFs,
// e.g. a kernel and its modules.
//
// Ids are reused across split blobs, so lookups return the NamedBtf a
// match was found in alongside the id or type; further resolution must
// go through that NamedBtf. Base matches come first.
type Collection struct {
	base  NamedBtf
	split []NamedBtf
}

// NamedBtf pairs a Btf with a name uniquely identifying it within a
// Collection, e.g. a module name.
type NamedBtf struct {
	Name string
	*Btf
}

// IDMatch is a name lookup result: an id and the blob defining it.
type IDMatch struct {
	Btf *NamedBtf
	ID  TypeID
}

// TypeMatch is a name lookup result: a type and the blob defining it.
type TypeMatch struct {
	Btf  *NamedBtf
	Type Type
}

// CollectionFromFile constructs a Collection from a base BTF file using
// the Cache backend.
func CollectionFromFile(path string) (*Collection, error) {
	return CollectionFromFileWithBackend(path, Cache)
}

// CollectionFromFileWithBackend constructs a Collection from a base BTF
// file using the given backend.
func CollectionFromFileWithBackend(path string, backend Backend) (*Collection, error) {
	base, err := FromFileWithBackend(path, backend)
	if err != nil {
		return nil, err
	}

	return &Collection{
		base: NamedBtf{Name: filepath.Base(path), Btf: base},
	}, nil
}

// CollectionFromBytes constructs a Collection from a base BTF blob.
func CollectionFromBytes(name string, b []byte) (*Collection, error) {
	base, err := FromBytes(b)
	if err != nil {
		return nil, err
	}

	return &Collection{
		base: NamedBtf{Name: name, Btf: base},
	}, nil
}

// CollectionFromDir parses all BTF files of a directory laid out like
// /sys/kernel/btf: base names the base BTF file, every other regular
// file is a split BTF extending it.
func CollectionFromDir(dir, base string) (*Collection, error) {
	return CollectionFromDirWithBackend(dir, base, Cache)
}

// CollectionFromDirWithBackend is CollectionFromDir with an explicit
// backend for the base BTF. Split BTF always uses Cache.
func CollectionFromDirWithBackend(dir, base string, backend Backend) (*Collection, error) {
	c, err := CollectionFromFileWithBackend(filepath.Join(dir, base), backend)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.Name() == base || entry.IsDir() {
			continue
		}
		if _, err := c.AddSplitFromFile(filepath.Join(dir, entry.Name())); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// CollectionFromKernelDir walks a directory containing a vmlinux ELF in
// its root and modules (*.ko, optionally compressed) in any
// subdirectory, e.g. a kernel build tree or /usr/lib/modules/<release>,
// extracting the .BTF section of each file into a Collection.
func CollectionFromKernelDir(dir string) (*Collection, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", dir, ErrNotSupported)
	}

	raw, err := ExtractBTFFromFile(filepath.Join(dir, "vmlinux"))
	if err != nil {
		return nil, err
	}

	c, err := CollectionFromBytes("vmlinux", raw)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		name, ok := moduleName(d.Name())
		if !ok {
			return nil
		}

		raw, err := ExtractBTFFromFile(path)
		if err != nil {
			return err
		}
		_, err = c.AddSplitFromBytes(name, raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// moduleName returns the module name of a kernel module file name, and
// false if the file is not a module.
func moduleName(file string) (string, bool) {
	for _, ext := range []string{".ko", ".ko.gz", ".ko.xz", ".ko.zst"} {
		if strings.HasSuffix(file, ext) {
			return file[:len(file)-len(ext)], true
		}
	}
	return "", false
}

// AddSplitFromFile parses a split BTF file and adds it to the
// collection under its file name. Names must be unique.
func (c *Collection) AddSplitFromFile(path string) (*Collection, error) {
	name := filepath.Base(path)
	if c.NamedBtf(name) != nil {
		return nil, fmt.Errorf("split BTF %q already present: %w", name, ErrNotSupported)
	}

	split, err := FromSplitFile(path, c.base.Btf)
	if err != nil {
		return nil, err
	}

	c.split = append(c.split, NamedBtf{Name: name, Btf: split})
	return c, nil
}

// AddSplitFromBytes parses a split BTF blob and adds it to the
// collection under the given name. Names must be unique.
func (c *Collection) AddSplitFromBytes(name string, b []byte) (*Collection, error) {
	if c.NamedBtf(name) != nil {
		return nil, fmt.Errorf("split BTF %q already present: %w", name, ErrNotSupported)
	}

	split, err := FromSplitBytes(b, c.base.Btf)
	if err != nil {
		return nil, err
	}

	c.split = append(c.split, NamedBtf{Name: name, Btf: split})
	return c, nil
}

// Base returns the collection's base BTF.
func (c *Collection) Base() *NamedBtf {
	return &c.base
}

// NamedBtf returns the named blob, the base included, or nil.
func (c *Collection) NamedBtf(name string) *NamedBtf {
	if name == c.base.Name {
		return &c.base
	}
	for i := range c.split {
		if c.split[i].Name == name {
			return &c.split[i]
		}
	}
	return nil
}

// IDsByName returns all ids with the given name across the collection,
// base matches first. An empty result is not an error: a name missing
// everywhere simply yields no matches.
func (c *Collection) IDsByName(name string) ([]IDMatch, error) {
	var matches []IDMatch

	ids := c.base.obj.idsByName(name)
	for _, id := range ids {
		matches = append(matches, IDMatch{Btf: &c.base, ID: id})
	}

	for i := range c.split {
		split := &c.split[i]
		for _, id := range split.obj.idsByName(name) {
			matches = append(matches, IDMatch{Btf: split, ID: id})
		}
	}

	return matches, nil
}

// TypesByName returns all types with the given name across the
// collection, base matches first.
func (c *Collection) TypesByName(name string) ([]TypeMatch, error) {
	ids, err := c.IDsByName(name)
	if err != nil {
		return nil, err
	}

	matches := make([]TypeMatch, 0, len(ids))
	for _, m := range ids {
		typ, err := m.Btf.TypeByID(m.ID)
		if err != nil {
			return nil, err
		}
		matches = append(matches, TypeMatch{Btf: m.Btf, Type: typ})
	}
	return matches, nil
}
