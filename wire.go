package btf

import (
	"encoding/binary"
	"fmt"
)

const btfMagic = 0xeB9F

// btfHeaderLen is the size of the fixed header. hdrLen may be larger on
// blobs produced by newer toolchains; the extra bytes are skipped.
const btfHeaderLen = 24

// btfTypeLen is the size of the common type prefix.
const btfTypeLen = 12

// reader reads fixed-size values out of a byte slice in the byte order
// declared by the blob's header, keeping track of a cursor.
type reader struct {
	buf []byte
	off int
	bo  binary.ByteOrder
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("need %d bytes, have %d: %w", n, r.remaining(), ErrTruncated)
	}
	buf := r.buf[r.off : r.off+n]
	r.off += n
	return buf, nil
}

func (r *reader) u8() (uint8, error) {
	buf, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (r *reader) u16() (uint16, error) {
	buf, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return r.bo.Uint16(buf), nil
}

func (r *reader) u32() (uint32, error) {
	buf, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return r.bo.Uint32(buf), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

// btfHeader mirrors struct btf_header. Offsets are relative to the end
// of the header, i.e. to hdrLen.
type btfHeader struct {
	Magic   uint16
	Version uint8
	Flags   uint8
	HdrLen  uint32

	TypeOff   uint32
	TypeLen   uint32
	StringOff uint32
	StringLen uint32
}

// parseHeader decodes and validates the fixed BTF header. The byte order
// is determined from the magic and governs every subsequent read.
func parseHeader(buf []byte) (*btfHeader, binary.ByteOrder, error) {
	if len(buf) < btfHeaderLen {
		return nil, nil, fmt.Errorf("header: %w", ErrTruncated)
	}

	var bo binary.ByteOrder
	switch m := binary.LittleEndian.Uint16(buf); m {
	case btfMagic:
		bo = binary.LittleEndian
	case 0x9FeB:
		bo = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("magic %#06x: %w", m, ErrInvalidHeader)
	}

	r := &reader{buf: buf, bo: bo}
	var h btfHeader
	h.Magic, _ = r.u16()
	h.Version, _ = r.u8()
	h.Flags, _ = r.u8()
	h.HdrLen, _ = r.u32()
	h.TypeOff, _ = r.u32()
	h.TypeLen, _ = r.u32()
	h.StringOff, _ = r.u32()
	h.StringLen, _ = r.u32()

	if h.Version != 1 {
		return nil, nil, fmt.Errorf("version %d: %w", h.Version, ErrInvalidHeader)
	}
	if h.HdrLen < btfHeaderLen {
		return nil, nil, fmt.Errorf("header length %d: %w", h.HdrLen, ErrInvalidHeader)
	}

	blob := uint64(len(buf))
	if uint64(h.HdrLen) > blob {
		return nil, nil, fmt.Errorf("header length %d exceeds blob: %w", h.HdrLen, ErrInvalidHeader)
	}
	if uint64(h.HdrLen)+uint64(h.TypeOff)+uint64(h.TypeLen) > blob {
		return nil, nil, fmt.Errorf("type section out of bounds: %w", ErrInvalidHeader)
	}
	if uint64(h.HdrLen)+uint64(h.StringOff)+uint64(h.StringLen) > blob {
		return nil, nil, fmt.Errorf("string section out of bounds: %w", ErrInvalidHeader)
	}

	return &h, bo, nil
}

func (h *btfHeader) typeSection(buf []byte) []byte {
	start := uint64(h.HdrLen) + uint64(h.TypeOff)
	return buf[start : start+uint64(h.TypeLen)]
}

func (h *btfHeader) stringSection(buf []byte) []byte {
	start := uint64(h.HdrLen) + uint64(h.StringOff)
	return buf[start : start+uint64(h.StringLen)]
}

const (
	btfTypeKindShift     = 24
	btfTypeKindLen       = 5
	btfTypeVlenShift     = 0
	btfTypeVlenLen       = 16
	btfTypeKindFlagShift = 31
	btfTypeKindFlagLen   = 1
)

// btfType is the common prefix of every type record, based on struct
// btf_type in Documentation/bpf/btf.rst.
type btfType struct {
	NameOff uint32
	/* "info" bits arrangement
	 * bits  0-15: vlen (e.g. # of struct's members)
	 * bits 16-23: unused
	 * bits 24-28: kind (e.g. int, ptr, array...etc)
	 * bits 29-30: unused
	 * bit     31: kind_flag, currently used by
	 *             struct, union, fwd, enum and enum64
	 */
	Info uint32
	/* "size" is used by INT, ENUM, STRUCT, UNION, ENUM64, DATASEC and
	 * FLOAT.
	 * "type" is used by PTR, TYPEDEF, VOLATILE, CONST, RESTRICT,
	 * FUNC, FUNC_PROTO, VAR, DECL_TAG and TYPE_TAG.
	 */
	SizeType uint32
}

func mask(len uint32) uint32 {
	return (1 << len) - 1
}

func (bt *btfType) info(len, shift uint32) uint32 {
	return (bt.Info >> shift) & mask(len)
}

func (bt *btfType) Kind() Kind {
	return Kind(bt.info(btfTypeKindLen, btfTypeKindShift))
}

func (bt *btfType) Vlen() int {
	return int(bt.info(btfTypeVlenLen, btfTypeVlenShift))
}

func (bt *btfType) KindFlag() bool {
	return bt.info(btfTypeKindFlagLen, btfTypeKindFlagShift) == 1
}

func (bt *btfType) Size() uint32 {
	return bt.SizeType
}

func (bt *btfType) Type() TypeID {
	return TypeID(bt.SizeType)
}

func readTypePrefix(r *reader) (btfType, error) {
	var bt btfType
	var err error
	if bt.NameOff, err = r.u32(); err != nil {
		return bt, err
	}
	if bt.Info, err = r.u32(); err != nil {
		return bt, err
	}
	bt.SizeType, err = r.u32()
	return bt, err
}

// trailerSize returns the size in bytes of the kind-specific data
// following the common prefix.
func trailerSize(bt *btfType) (int, error) {
	switch bt.Kind() {
	case KindInt, KindVar, KindDeclTag:
		return 4, nil
	case KindPtr, KindTypedef, KindVolatile, KindConst, KindRestrict,
		KindFunc, KindTypeTag, KindFwd, KindFloat:
		return 0, nil
	case KindArray:
		return 12, nil
	case KindStruct, KindUnion, KindDatasec, KindEnum64:
		return 12 * bt.Vlen(), nil
	case KindEnum, KindFuncProto:
		return 8 * bt.Vlen(), nil
	default:
		return 0, fmt.Errorf("kind %d: %w", bt.Kind(), ErrUnknownKind)
	}
}

// decodeType decodes one full type record at the reader's cursor and
// advances it past the record.
func decodeType(r *reader) (Type, error) {
	bt, err := readTypePrefix(r)
	if err != nil {
		return nil, err
	}

	switch bt.Kind() {
	case KindInt:
		data, err := r.u32()
		if err != nil {
			return nil, err
		}
		return &Int{nameOff: bt.NameOff, size: bt.Size(), data: data}, nil

	case KindPtr:
		return &Ptr{typeID: bt.Type()}, nil

	case KindArray:
		var arr Array
		if arr.elemID, err = readTypeID(r); err != nil {
			return nil, err
		}
		if arr.indexID, err = readTypeID(r); err != nil {
			return nil, err
		}
		if arr.Nelems, err = r.u32(); err != nil {
			return nil, err
		}
		return &arr, nil

	case KindStruct:
		members, err := decodeMembers(r, bt.Vlen(), bt.KindFlag())
		if err != nil {
			return nil, err
		}
		return &Struct{nameOff: bt.NameOff, size: bt.Size(), Members: members}, nil

	case KindUnion:
		members, err := decodeMembers(r, bt.Vlen(), bt.KindFlag())
		if err != nil {
			return nil, err
		}
		return &Union{nameOff: bt.NameOff, size: bt.Size(), Members: members}, nil

	case KindEnum:
		values := make([]EnumValue, 0, bt.Vlen())
		for i := 0; i < bt.Vlen(); i++ {
			var v EnumValue
			if v.nameOff, err = r.u32(); err != nil {
				return nil, err
			}
			if v.Val, err = r.i32(); err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return &Enum{nameOff: bt.NameOff, size: bt.Size(), signed: bt.KindFlag(), Values: values}, nil

	case KindFwd:
		kind := FwdStruct
		if bt.KindFlag() {
			kind = FwdUnion
		}
		return &Fwd{nameOff: bt.NameOff, FwdKind: kind}, nil

	case KindTypedef:
		return &Typedef{nameOff: bt.NameOff, typeID: bt.Type()}, nil

	case KindVolatile:
		return &Volatile{typeID: bt.Type()}, nil

	case KindConst:
		return &Const{typeID: bt.Type()}, nil

	case KindRestrict:
		return &Restrict{typeID: bt.Type()}, nil

	case KindFunc:
		// The linkage of a function is stored in vlen.
		return &Func{nameOff: bt.NameOff, typeID: bt.Type(), Linkage: FuncLinkage(bt.Vlen())}, nil

	case KindFuncProto:
		params := make([]FuncParam, 0, bt.Vlen())
		for i := 0; i < bt.Vlen(); i++ {
			var p FuncParam
			if p.nameOff, err = r.u32(); err != nil {
				return nil, err
			}
			if p.typeID, err = readTypeID(r); err != nil {
				return nil, err
			}
			params = append(params, p)
		}
		return &FuncProto{retID: bt.Type(), Params: params}, nil

	case KindVar:
		linkage, err := r.u32()
		if err != nil {
			return nil, err
		}
		return &Var{nameOff: bt.NameOff, typeID: bt.Type(), Linkage: VarLinkage(linkage)}, nil

	case KindDatasec:
		vars := make([]VarSecinfo, 0, bt.Vlen())
		for i := 0; i < bt.Vlen(); i++ {
			var v VarSecinfo
			if v.typeID, err = readTypeID(r); err != nil {
				return nil, err
			}
			if v.Offset, err = r.u32(); err != nil {
				return nil, err
			}
			if v.Size, err = r.u32(); err != nil {
				return nil, err
			}
			vars = append(vars, v)
		}
		return &Datasec{nameOff: bt.NameOff, size: bt.Size(), Vars: vars}, nil

	case KindFloat:
		return &Float{nameOff: bt.NameOff, size: bt.Size()}, nil

	case KindDeclTag:
		idx, err := r.i32()
		if err != nil {
			return nil, err
		}
		return &DeclTag{nameOff: bt.NameOff, typeID: bt.Type(), componentIdx: idx}, nil

	case KindTypeTag:
		return &TypeTag{nameOff: bt.NameOff, typeID: bt.Type()}, nil

	case KindEnum64:
		values := make([]Enum64Value, 0, bt.Vlen())
		for i := 0; i < bt.Vlen(); i++ {
			var v Enum64Value
			if v.nameOff, err = r.u32(); err != nil {
				return nil, err
			}
			lo, err := r.u32()
			if err != nil {
				return nil, err
			}
			hi, err := r.u32()
			if err != nil {
				return nil, err
			}
			v.Val = uint64(hi)<<32 | uint64(lo)
			values = append(values, v)
		}
		return &Enum64{nameOff: bt.NameOff, size: bt.Size(), signed: bt.KindFlag(), Values: values}, nil

	default:
		return nil, fmt.Errorf("kind %d: %w", bt.Kind(), ErrUnknownKind)
	}
}

func readTypeID(r *reader) (TypeID, error) {
	v, err := r.u32()
	return TypeID(v), err
}

func decodeMembers(r *reader, vlen int, kindFlag bool) ([]Member, error) {
	members := make([]Member, 0, vlen)
	for i := 0; i < vlen; i++ {
		m := Member{bitfield: kindFlag}
		var err error
		if m.nameOff, err = r.u32(); err != nil {
			return nil, err
		}
		if m.typeID, err = readTypeID(r); err != nil {
			return nil, err
		}
		if m.offset, err = r.u32(); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}
