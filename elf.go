package btf

import (
	"bytes"
	"compress/bzip2"
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// ExtractBTFFromFile returns the contents of the .BTF section of an ELF
// file, e.g. a kernel module. Files which do not look like an ELF are
// scanned for an embedded compressed stream (bzip2, gzip, xz or zstd)
// and decompressed first, which handles compressed modules as well as
// kernel images. The result feeds FromBytes or FromSplitBytes.
func ExtractBTFFromFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !bytes.HasPrefix(raw, elfMagic) {
		if raw, err = decompressELF(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return extractBTF(raw, path)
}

func extractBTF(raw []byte, path string) ([]byte, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse ELF %s: %w", path, err)
	}
	defer f.Close()

	sec := f.Section(".BTF")
	if sec == nil {
		return nil, fmt.Errorf("no .BTF section in %s: %w", path, ErrNotFound)
	}
	if sec.Type == elf.SHT_NOBITS {
		return nil, fmt.Errorf(".BTF section in %s has no data: %w", path, ErrNotFound)
	}

	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("read .BTF section of %s: %w", path, err)
	}
	return data, nil
}

// Compression stream magics.
var (
	bzip2Magic = []byte{0x42, 0x5a, 0x68}
	gzipMagic  = []byte{0x1f, 0x8b, 0x08}
	xzMagic    = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompressELF finds a compressed stream inside raw which decompresses
// to an ELF. Kernel images embed the stream at an arbitrary offset, so
// every magic occurrence is a candidate; plain compressed files match
// at offset zero. See scripts/extract-vmlinux in the kernel tree.
// lz4, lzma and lzop streams are not supported.
func decompressELF(raw []byte) ([]byte, error) {
	for i := 0; i < len(raw); i++ {
		input := raw[i:]

		var out []byte
		switch {
		case bytes.HasPrefix(input, bzip2Magic):
			out = tryReader(bzip2.NewReader(bytes.NewReader(input)))

		case bytes.HasPrefix(input, gzipMagic):
			zr, err := gzip.NewReader(bytes.NewReader(input))
			if err != nil {
				continue
			}
			zr.Multistream(false)
			out = tryReader(zr)

		case bytes.HasPrefix(input, xzMagic):
			xr, err := xz.NewReader(bytes.NewReader(input))
			if err != nil {
				continue
			}
			out = tryReader(xr)

		case bytes.HasPrefix(input, zstdMagic):
			zr, err := zstd.NewReader(bytes.NewReader(input), zstd.WithDecoderConcurrency(1))
			if err != nil {
				continue
			}
			out = tryReader(zr.IOReadCloser())

		default:
			continue
		}

		if bytes.HasPrefix(out, elfMagic) {
			return out, nil
		}
	}

	return nil, fmt.Errorf("no decompressable ELF data found: %w", ErrNotSupported)
}

// tryReader drains r, keeping whatever came out before a stream error.
// Embedded streams are routinely followed by garbage, so a partial read
// that already produced an ELF is still usable.
func tryReader(r io.Reader) []byte {
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
	return buf.Bytes()
}
