package btf

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// buildELF assembles a minimal ELF64 relocatable with a single .BTF
// section holding btf.
func buildELF(t *testing.T, btf []byte) []byte {
	t.Helper()

	const (
		ehsize    = 64
		shentsize = 64
	)

	shstrtab := []byte("\x00.BTF\x00.shstrtab\x00")
	btfOff := uint64(ehsize)
	strOff := btfOff + uint64(len(btf))
	shoff := strOff + uint64(len(shstrtab))

	buf := new(bytes.Buffer)

	// ELF header.
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	le := binary.LittleEndian
	_ = binary.Write(buf, le, uint16(1))  // e_type: ET_REL
	_ = binary.Write(buf, le, uint16(62)) // e_machine: EM_X86_64
	_ = binary.Write(buf, le, uint32(1))  // e_version
	_ = binary.Write(buf, le, uint64(0))  // e_entry
	_ = binary.Write(buf, le, uint64(0))  // e_phoff
	_ = binary.Write(buf, le, shoff)      // e_shoff
	_ = binary.Write(buf, le, uint32(0))  // e_flags
	_ = binary.Write(buf, le, uint16(ehsize))
	_ = binary.Write(buf, le, uint16(0)) // e_phentsize
	_ = binary.Write(buf, le, uint16(0)) // e_phnum
	_ = binary.Write(buf, le, uint16(shentsize))
	_ = binary.Write(buf, le, uint16(3)) // e_shnum
	_ = binary.Write(buf, le, uint16(2)) // e_shstrndx

	buf.Write(btf)
	buf.Write(shstrtab)

	type shdr struct {
		Name, Type             uint32
		Flags, Addr, Off, Size uint64
		Link, Info             uint32
		Addralign, Entsize     uint64
	}

	for _, sh := range []shdr{
		{},
		{Name: 1, Type: 1 /* SHT_PROGBITS */, Off: btfOff, Size: uint64(len(btf)), Addralign: 1},
		{Name: 6, Type: 3 /* SHT_STRTAB */, Off: strOff, Size: uint64(len(shstrtab)), Addralign: 1},
	} {
		_ = binary.Write(buf, le, &sh)
	}

	return buf.Bytes()
}

func TestExtractBTFFromFile(t *testing.T) {
	blob := testBlob(binary.LittleEndian).build()
	elfBytes := buildELF(t, blob)

	path := filepath.Join(t.TempDir(), "module.ko")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, elfBytes, 0o644)))

	raw, err := ExtractBTFFromFile(path)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(raw, blob))

	// The extracted bytes parse.
	b, err := FromBytes(raw)
	qt.Assert(t, qt.IsNil(err))
	_, err = b.TypesByName("foo")
	qt.Assert(t, qt.IsNil(err))
}

func TestExtractBTFFromGzippedFile(t *testing.T) {
	blob := testBlob(binary.LittleEndian).build()
	elfBytes := buildELF(t, blob)

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err := zw.Write(elfBytes)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(zw.Close()))

	path := filepath.Join(t.TempDir(), "module.ko.gz")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, compressed.Bytes(), 0o644)))

	raw, err := ExtractBTFFromFile(path)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(raw, blob))
}

func TestExtractBTFFromZstdFile(t *testing.T) {
	blob := testBlob(binary.LittleEndian).build()
	elfBytes := buildELF(t, blob)

	var compressed bytes.Buffer
	zw, err := zstd.NewWriter(&compressed)
	qt.Assert(t, qt.IsNil(err))
	_, err = zw.Write(elfBytes)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(zw.Close()))

	path := filepath.Join(t.TempDir(), "module.ko.zst")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, compressed.Bytes(), 0o644)))

	raw, err := ExtractBTFFromFile(path)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(raw, blob))
}

func TestExtractBTFMissingSection(t *testing.T) {
	// An ELF without .BTF: reuse the builder but rename the section.
	elfBytes := buildELF(t, testBlob(binary.LittleEndian).build())
	copy(elfBytes[bytes.Index(elfBytes, []byte(".BTF\x00")):], ".BXF\x00")

	path := filepath.Join(t.TempDir(), "module.ko")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, elfBytes, 0o644)))

	_, err := ExtractBTFFromFile(path)
	qt.Assert(t, qt.ErrorIs(err, ErrNotFound))
}

func TestExtractBTFGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte("not an elf at all"), 0o644)))

	_, err := ExtractBTFFromFile(path)
	qt.Assert(t, qt.ErrorIs(err, ErrNotSupported))
}
