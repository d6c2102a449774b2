package btf

import "fmt"

// maxChainDepth bounds chained type walks so that malformed blobs with
// circular typedef or qualifier edges cannot hang a caller.
const maxChainDepth = 32

// TypeID identifies a type in a BTF blob. ID 0 denotes the void type,
// which is implicit and never stored.
type TypeID uint32

// Kind describes the kind of a Type.
type Kind uint8

const (
	// Kind 0 is reserved for void, which is never materialized.
	KindInt Kind = iota + 1
	KindPtr
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindFwd
	KindTypedef
	KindVolatile
	KindConst
	KindRestrict
	KindFunc
	KindFuncProto
	KindVar
	KindDatasec
	KindFloat
	KindDeclTag
	KindTypeTag
	KindEnum64
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindPtr:
		return "ptr"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindFwd:
		return "fwd"
	case KindTypedef:
		return "typedef"
	case KindVolatile:
		return "volatile"
	case KindConst:
		return "const"
	case KindRestrict:
		return "restrict"
	case KindFunc:
		return "func"
	case KindFuncProto:
		return "func-proto"
	case KindVar:
		return "var"
	case KindDatasec:
		return "datasec"
	case KindFloat:
		return "float"
	case KindDeclTag:
		return "decl-tag"
	case KindTypeTag:
		return "type-tag"
	case KindEnum64:
		return "enum64"
	default:
		return fmt.Sprintf("unknown (%d)", uint8(k))
	}
}

// Type is implemented by all decoded BTF types.
//
// Types are immutable once decoded and may be shared between queries;
// callers must not modify them.
type Type interface {
	Kind() Kind
}

// named is implemented by entities carrying a reference into the string
// section. Resolve it with Btf.TypeName.
type named interface {
	nameOffset() uint32
}

// chainedID is implemented by entities referencing another type by id.
// Resolve the edge with Btf.ChainedType or walk it with Btf.Chain.
type chainedID interface {
	chainID() TypeID
}

// Int encoding flags, from the high byte of struct btf_int.
const (
	intSigned = 1 << 0
	intChar   = 1 << 1
	intBool   = 1 << 2
)

// Int is an integer of a given size and encoding.
type Int struct {
	nameOff uint32
	size    uint32
	data    uint32
}

func (i *Int) Kind() Kind         { return KindInt }
func (i *Int) nameOffset() uint32 { return i.nameOff }

// Size returns the size of the integer in bytes.
func (i *Int) Size() uint32 { return i.size }

// Bits returns the number of bits holding the value.
func (i *Int) Bits() uint32 { return i.data & 0x000000ff }

// Offset returns the bit offset of the value within its storage unit.
func (i *Int) Offset() uint32 { return (i.data & 0x00ff0000) >> 16 }

func (i *Int) IsSigned() bool { return i.encoding()&intSigned != 0 }
func (i *Int) IsChar() bool   { return i.encoding()&intChar != 0 }
func (i *Int) IsBool() bool   { return i.encoding()&intBool != 0 }

func (i *Int) encoding() uint32 { return (i.data & 0x0f000000) >> 24 }

// Ptr is a pointer to another type.
type Ptr struct {
	typeID TypeID
}

func (p *Ptr) Kind() Kind      { return KindPtr }
func (p *Ptr) chainID() TypeID { return p.typeID }

// Array is a fixed-size array. Its chained type is the element type.
type Array struct {
	elemID  TypeID
	indexID TypeID
	Nelems  uint32
}

func (a *Array) Kind() Kind      { return KindArray }
func (a *Array) chainID() TypeID { return a.elemID }

// IndexTypeID returns the id of the type used to index the array.
func (a *Array) IndexTypeID() TypeID { return a.indexID }

// Struct is a compound type of consecutive members.
type Struct struct {
	nameOff uint32
	size    uint32
	Members []Member
}

func (s *Struct) Kind() Kind         { return KindStruct }
func (s *Struct) nameOffset() uint32 { return s.nameOff }

// Size returns the size of the struct including padding, in bytes.
func (s *Struct) Size() uint32 { return s.size }

// Union is a compound type where members occupy the same memory.
type Union struct {
	nameOff uint32
	size    uint32
	Members []Member
}

func (u *Union) Kind() Kind         { return KindUnion }
func (u *Union) nameOffset() uint32 { return u.nameOff }

// Size returns the size of the union including padding, in bytes.
func (u *Union) Size() uint32 { return u.size }

// Member is part of a Struct or Union. It is not a Type itself but has
// both a name and a chained type.
type Member struct {
	nameOff  uint32
	typeID   TypeID
	offset   uint32
	bitfield bool
}

func (m Member) nameOffset() uint32 { return m.nameOff }
func (m Member) chainID() TypeID    { return m.typeID }

// BitOffset returns the offset of the member from the start of the
// compound type, in bits.
func (m Member) BitOffset() uint32 {
	if m.bitfield {
		return m.offset & 0xffffff
	}
	return m.offset
}

// BitfieldSize returns the size of the member in bits and true if the
// enclosing compound type uses bitfield encoding.
func (m Member) BitfieldSize() (uint32, bool) {
	if m.bitfield {
		return m.offset >> 24, true
	}
	return 0, false
}

// Enum lists 32-bit constants.
type Enum struct {
	nameOff uint32
	size    uint32
	signed  bool
	Values  []EnumValue
}

func (e *Enum) Kind() Kind         { return KindEnum }
func (e *Enum) nameOffset() uint32 { return e.nameOff }

// Size returns the size of the enum in bytes.
func (e *Enum) Size() uint32 { return e.size }

// IsSigned returns true if the values are signed.
func (e *Enum) IsSigned() bool { return e.signed }

// EnumValue is part of an Enum. Reinterpret Val as uint32 when the
// enclosing enum is unsigned.
type EnumValue struct {
	nameOff uint32
	Val     int32
}

func (v EnumValue) nameOffset() uint32 { return v.nameOff }

// Fwd is a forward declaration of a struct or union.
type Fwd struct {
	nameOff uint32
	FwdKind FwdKind
}

func (f *Fwd) Kind() Kind         { return KindFwd }
func (f *Fwd) nameOffset() uint32 { return f.nameOff }

// FwdKind is the kind of a forward declaration.
type FwdKind int

const (
	FwdStruct FwdKind = iota
	FwdUnion
)

func (fk FwdKind) String() string {
	switch fk {
	case FwdStruct:
		return "struct"
	case FwdUnion:
		return "union"
	default:
		return fmt.Sprintf("%T(%d)", fk, int(fk))
	}
}

// Typedef is an alias for another type.
type Typedef struct {
	nameOff uint32
	typeID  TypeID
}

func (td *Typedef) Kind() Kind         { return KindTypedef }
func (td *Typedef) nameOffset() uint32 { return td.nameOff }
func (td *Typedef) chainID() TypeID    { return td.typeID }

// Volatile is a qualifier.
type Volatile struct {
	typeID TypeID
}

func (v *Volatile) Kind() Kind      { return KindVolatile }
func (v *Volatile) chainID() TypeID { return v.typeID }

// Const is a qualifier.
type Const struct {
	typeID TypeID
}

func (c *Const) Kind() Kind      { return KindConst }
func (c *Const) chainID() TypeID { return c.typeID }

// Restrict is a qualifier.
type Restrict struct {
	typeID TypeID
}

func (r *Restrict) Kind() Kind      { return KindRestrict }
func (r *Restrict) chainID() TypeID { return r.typeID }

// FuncLinkage is the linkage of a function.
type FuncLinkage int

const (
	StaticFunc FuncLinkage = iota // static
	GlobalFunc                    // global
	ExternFunc                    // extern
)

func (l FuncLinkage) String() string {
	switch l {
	case StaticFunc:
		return "static"
	case GlobalFunc:
		return "global"
	case ExternFunc:
		return "extern"
	default:
		return fmt.Sprintf("%T(%d)", l, int(l))
	}
}

// Func is a function definition. Its chained type is a FuncProto.
type Func struct {
	nameOff uint32
	typeID  TypeID
	Linkage FuncLinkage
}

func (f *Func) Kind() Kind         { return KindFunc }
func (f *Func) nameOffset() uint32 { return f.nameOff }
func (f *Func) chainID() TypeID    { return f.typeID }

// FuncProto is a function signature. Its chained type is the return
// type, id 0 meaning void.
type FuncProto struct {
	retID  TypeID
	Params []FuncParam
}

func (fp *FuncProto) Kind() Kind      { return KindFuncProto }
func (fp *FuncProto) chainID() TypeID { return fp.retID }

// ReturnTypeID returns the id of the return type, 0 for void.
func (fp *FuncProto) ReturnTypeID() TypeID { return fp.retID }

// FuncParam is a parameter of a FuncProto.
type FuncParam struct {
	nameOff uint32
	typeID  TypeID
}

func (p FuncParam) nameOffset() uint32 { return p.nameOff }
func (p FuncParam) chainID() TypeID    { return p.typeID }

// IsVariadic returns true if the parameter is the "..." marker closing
// a vararg prototype.
func (p FuncParam) IsVariadic() bool { return p.nameOff == 0 && p.typeID == 0 }

// VarLinkage is the linkage of a variable.
type VarLinkage int

const (
	StaticVar VarLinkage = iota // static
	GlobalVar                   // global
	ExternVar                   // extern
)

func (l VarLinkage) String() string {
	switch l {
	case StaticVar:
		return "static"
	case GlobalVar:
		return "global"
	case ExternVar:
		return "extern"
	default:
		return fmt.Sprintf("%T(%d)", l, int(l))
	}
}

// Var is a global variable.
type Var struct {
	nameOff uint32
	typeID  TypeID
	Linkage VarLinkage
}

func (v *Var) Kind() Kind         { return KindVar }
func (v *Var) nameOffset() uint32 { return v.nameOff }
func (v *Var) chainID() TypeID    { return v.typeID }

// Datasec is a global program section containing data.
type Datasec struct {
	nameOff uint32
	size    uint32
	Vars    []VarSecinfo
}

func (ds *Datasec) Kind() Kind         { return KindDatasec }
func (ds *Datasec) nameOffset() uint32 { return ds.nameOff }

// Size returns the size of the section in bytes.
func (ds *Datasec) Size() uint32 { return ds.size }

// VarSecinfo is a variable backed by a Datasec. Its chained type is the
// Var record describing the variable.
type VarSecinfo struct {
	typeID TypeID
	Offset uint32
	Size   uint32
}

func (v VarSecinfo) chainID() TypeID { return v.typeID }

// Float is a floating point number.
type Float struct {
	nameOff uint32
	size    uint32
}

func (f *Float) Kind() Kind         { return KindFloat }
func (f *Float) nameOffset() uint32 { return f.nameOff }

// Size returns the size of the float in bytes.
func (f *Float) Size() uint32 { return f.size }

// DeclTag associates a tag with a declaration.
type DeclTag struct {
	nameOff      uint32
	typeID       TypeID
	componentIdx int32
}

func (dt *DeclTag) Kind() Kind         { return KindDeclTag }
func (dt *DeclTag) nameOffset() uint32 { return dt.nameOff }
func (dt *DeclTag) chainID() TypeID    { return dt.typeID }

// ComponentIndex returns the index of the tagged member or parameter
// within the chained type, and false if the tag applies to the chained
// type as a whole.
func (dt *DeclTag) ComponentIndex() (int, bool) {
	if dt.componentIdx < 0 {
		return 0, false
	}
	return int(dt.componentIdx), true
}

// TypeTag associates a tag with a type. The tag value is its name.
type TypeTag struct {
	nameOff uint32
	typeID  TypeID
}

func (tt *TypeTag) Kind() Kind         { return KindTypeTag }
func (tt *TypeTag) nameOffset() uint32 { return tt.nameOff }
func (tt *TypeTag) chainID() TypeID    { return tt.typeID }

// Enum64 lists 64-bit constants.
type Enum64 struct {
	nameOff uint32
	size    uint32
	signed  bool
	Values  []Enum64Value
}

func (e *Enum64) Kind() Kind         { return KindEnum64 }
func (e *Enum64) nameOffset() uint32 { return e.nameOff }

// Size returns the size of the enum in bytes.
func (e *Enum64) Size() uint32 { return e.size }

// IsSigned returns true if the values are signed.
func (e *Enum64) IsSigned() bool { return e.signed }

// Enum64Value is part of an Enum64. Reinterpret Val as int64 when the
// enclosing enum is signed.
type Enum64Value struct {
	nameOff uint32
	Val     uint64
}

func (v Enum64Value) nameOffset() uint32 { return v.nameOff }
