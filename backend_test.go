package btf

import (
	"encoding/binary"
	"os"
	"regexp"
	"testing"

	"github.com/go-quicktest/qt"
)

// The cache and mmap backends must answer every query identically.
func TestBackendEquivalence(t *testing.T) {
	raw := testBlob(binary.LittleEndian).build()

	cache, err := FromBytesWithBackend(raw, Cache)
	qt.Assert(t, qt.IsNil(err))
	mmap, err := FromBytesWithBackend(raw, Mmap)
	qt.Assert(t, qt.IsNil(err))
	defer mmap.Close()

	t.Run("types", func(t *testing.T) {
		for id := TypeID(1); id <= testBlobMaxID; id++ {
			fromCache, err := cache.TypeByID(id)
			qt.Assert(t, qt.IsNil(err))
			fromMmap, err := mmap.TypeByID(id)
			qt.Assert(t, qt.IsNil(err))
			qt.Assert(t, qt.CmpEquals(fromMmap, fromCache, allowTypes), qt.Commentf("id %d", id))
		}

		_, cacheErr := cache.TypeByID(testBlobMaxID + 1)
		_, mmapErr := mmap.TypeByID(testBlobMaxID + 1)
		qt.Assert(t, qt.ErrorIs(cacheErr, ErrNotFound))
		qt.Assert(t, qt.ErrorIs(mmapErr, ErrNotFound))
	})

	t.Run("names", func(t *testing.T) {
		for _, name := range []string{"int", "foo", "foo_t", "do_foo", "color", "big", ".data", "list"} {
			fromCache, err := cache.IDsByName(name)
			qt.Assert(t, qt.IsNil(err))
			fromMmap, err := mmap.IDsByName(name)
			qt.Assert(t, qt.IsNil(err))
			qt.Assert(t, qt.DeepEquals(fromMmap, fromCache), qt.Commentf("name %q", name))
		}

		_, err := mmap.IDsByName("does_not_exist")
		qt.Assert(t, qt.ErrorIs(err, ErrNotFound))
	})

	t.Run("regex", func(t *testing.T) {
		re := regexp.MustCompile("^fo")
		fromCache, err := cache.IDsByRegex(re)
		qt.Assert(t, qt.IsNil(err))
		fromMmap, err := mmap.IDsByRegex(re)
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.DeepEquals(fromMmap, fromCache))
		qt.Assert(t, qt.DeepEquals(fromCache, []TypeID{3, 4}))
	})

	t.Run("string resolution", func(t *testing.T) {
		typ, err := mmap.TypeByID(3)
		qt.Assert(t, qt.IsNil(err))
		name, err := mmap.TypeName(typ)
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.Equals(name, "foo"))
	})
}

// The mmap backend decodes records lazily, so identical queries must
// yield identical results on repeat.
func TestMmapRepeatedQueries(t *testing.T) {
	b, err := FromBytesWithBackend(testBlob(binary.LittleEndian).build(), Mmap)
	qt.Assert(t, qt.IsNil(err))
	defer b.Close()

	first, err := b.TypeByID(3)
	qt.Assert(t, qt.IsNil(err))
	second, err := b.TypeByID(3)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.CmpEquals(second, first, allowTypes))
}

func TestKernelBackendEquivalence(t *testing.T) {
	vmlinuxBtf(t)

	raw, err := os.ReadFile("/sys/kernel/btf/vmlinux")
	qt.Assert(t, qt.IsNil(err))

	cache, err := FromBytesWithBackend(raw, Cache)
	qt.Assert(t, qt.IsNil(err))
	mmap, err := FromBytesWithBackend(raw, Mmap)
	qt.Assert(t, qt.IsNil(err))
	defer mmap.Close()

	max := cache.obj.maxID()
	step := max / 100
	if step == 0 {
		step = 1
	}

	for id := TypeID(1); id <= max; id += step {
		fromCache, err := cache.TypeByID(id)
		qt.Assert(t, qt.IsNil(err))
		fromMmap, err := mmap.TypeByID(id)
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.CmpEquals(fromMmap, fromCache, allowTypes), qt.Commentf("id %d", id))

		cacheName, cacheErr := cache.TypeName(fromCache)
		mmapName, mmapErr := mmap.TypeName(fromMmap)
		qt.Assert(t, qt.Equals(mmapName, cacheName))
		qt.Assert(t, qt.Equals(mmapErr == nil, cacheErr == nil))
	}
}

func TestKernelRegex(t *testing.T) {
	b := vmlinuxBtf(t)

	re := regexp.MustCompile("^[A-Za-z0-9]+_drop_reason$")
	types, err := b.TypesByRegex(re)
	qt.Assert(t, qt.IsNil(err))

	for _, typ := range types {
		name, err := b.TypeName(typ)
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.IsTrue(re.MatchString(name)), qt.Commentf("name %q", name))
	}

	// Modern kernels define skb_drop_reason.
	if _, err := b.IDsByName("skb_drop_reason"); err == nil {
		qt.Assert(t, qt.IsTrue(len(types) > 0))
	}
}
