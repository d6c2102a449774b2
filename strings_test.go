package btf

import (
	"testing"

	"github.com/go-quicktest/qt"
)

func newTestStringTable(t *testing.T, data []byte, base *stringTable) *stringTable {
	t.Helper()

	st, err := newStringTable(data, base)
	qt.Assert(t, qt.IsNil(err))
	return st
}

func TestStringTable(t *testing.T) {
	st := newTestStringTable(t, []byte("\x00foo\x00bar\x00"), nil)

	s, err := st.Lookup(0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, ""))

	s, err = st.Lookup(1)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, "foo"))

	s, err = st.Lookup(5)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, "bar"))

	_, err = st.Lookup(100)
	qt.Assert(t, qt.ErrorIs(err, ErrInvalidString))
}

func TestStringTableNonNULStart(t *testing.T) {
	_, err := newStringTable([]byte("foo\x00"), nil)
	qt.Assert(t, qt.ErrorIs(err, ErrInvalidString))
}

func TestStringTableInvalidUTF8(t *testing.T) {
	st := newTestStringTable(t, []byte{0, 0xff, 0xfe, 0}, nil)

	_, err := st.Lookup(1)
	qt.Assert(t, qt.ErrorIs(err, ErrInvalidString))

	// Preloading hits the same string.
	qt.Assert(t, qt.ErrorIs(st.preload(), ErrInvalidString))
}

func TestStringTableUnterminated(t *testing.T) {
	st := newTestStringTable(t, []byte{0, 'f', 'o', 'o'}, nil)

	_, err := st.Lookup(1)
	qt.Assert(t, qt.ErrorIs(err, ErrInvalidString))
}

func TestStringTablePreload(t *testing.T) {
	st := newTestStringTable(t, []byte("\x00foo\x00bar\x00"), nil)
	qt.Assert(t, qt.IsNil(st.preload()))

	s, err := st.Lookup(5)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, "bar"))

	// Only string starts are valid once preloaded.
	_, err = st.Lookup(2)
	qt.Assert(t, qt.ErrorIs(err, ErrInvalidString))

	// Offset zero never fails.
	s, err = st.Lookup(0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, ""))
}

func TestStringTableSplit(t *testing.T) {
	base := newTestStringTable(t, []byte("\x00base\x00"), nil)
	split := newTestStringTable(t, []byte("\x00extra\x00"), base)

	// Offsets below the base length resolve in the base.
	s, err := split.Lookup(1)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, "base"))

	// Offsets past the base length are rebased into the local section.
	s, err = split.Lookup(base.length() + 1)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, "extra"))

	_, err = split.Lookup(base.length() + split.length())
	qt.Assert(t, qt.ErrorIs(err, ErrInvalidString))

	// A split table cannot serve as a base.
	_, err = newStringTable([]byte{0}, split)
	qt.Assert(t, qt.ErrorIs(err, ErrNotSupported))
}

func TestStringTableEmptySection(t *testing.T) {
	st := newTestStringTable(t, nil, nil)

	s, err := st.Lookup(0)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(s, ""))

	_, err = st.Lookup(1)
	qt.Assert(t, qt.ErrorIs(err, ErrInvalidString))
}
