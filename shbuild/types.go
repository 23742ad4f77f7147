package shbuild

import (
	"fmt"
	"strconv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"
)

// ScalarKind is the element kind of a scalar, vector or matrix value.
type ScalarKind uint8

const (
	KindFloat ScalarKind = iota
	KindSint
	KindUint
	KindBool
)

func (k ScalarKind) String() string {
	switch k {
	case KindFloat:
		return "f32"
	case KindSint:
		return "i32"
	case KindUint:
		return "u32"
	case KindBool:
		return "bool"
	}
	return "ScalarKind(" + strconv.Itoa(int(k)) + ")"
}

func (k ScalarKind) naga() ir.ScalarType {
	switch k {
	case KindFloat:
		return ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	case KindSint:
		return ir.ScalarType{Kind: ir.ScalarSint, Width: 4}
	case KindUint:
		return ir.ScalarType{Kind: ir.ScalarUint, Width: 4}
	case KindBool:
		return ir.ScalarType{Kind: ir.ScalarBool, Width: 1}
	}
	panic("invalid scalar kind")
}

// IsNumeric reports whether arithmetic is defined on the kind.
func (k ScalarKind) IsNumeric() bool { return k != KindBool }

// IsInteger reports whether the kind is a signed or unsigned integer.
func (k ScalarKind) IsInteger() bool { return k == KindSint || k == KindUint }

type shape uint8

const (
	shapeScalar shape = iota
	shapeVector
	shapeMatrix
)

// ValueType describes a value in the shader graph: a scalar, a vector of 2 to 4
// components or a float matrix of 2 to 4 columns and rows. The zero ValueType is f32.
// Every [Expr] carries exactly one ValueType, set when it is constructed.
type ValueType struct {
	shape  shape
	scalar ScalarKind
	rows   uint8 // Vector size or matrix rows.
	cols   uint8
}

var (
	F32  = ValueType{shape: shapeScalar, scalar: KindFloat}
	I32  = ValueType{shape: shapeScalar, scalar: KindSint}
	U32  = ValueType{shape: shapeScalar, scalar: KindUint}
	Bool = ValueType{shape: shapeScalar, scalar: KindBool}

	Vec2f = VecType(KindFloat, 2)
	Vec3f = VecType(KindFloat, 3)
	Vec4f = VecType(KindFloat, 4)
	Vec2i = VecType(KindSint, 2)
	Vec3i = VecType(KindSint, 3)
	Vec4i = VecType(KindSint, 4)
	Vec2u = VecType(KindUint, 2)
	Vec3u = VecType(KindUint, 3)
	Vec4u = VecType(KindUint, 4)

	Mat2 = MatType(2, 2)
	Mat3 = MatType(3, 3)
	Mat4 = MatType(4, 4)
)

// ScalarType returns the scalar ValueType of kind k.
func ScalarType(k ScalarKind) ValueType {
	return ValueType{shape: shapeScalar, scalar: k}
}

// VecType returns the vector type with n components of kind k. It panics if n is not 2, 3 or 4.
func VecType(k ScalarKind, n int) ValueType {
	if n < 2 || n > 4 {
		panic("vector size must be 2, 3 or 4")
	}
	return ValueType{shape: shapeVector, scalar: k, rows: uint8(n)}
}

// MatType returns the f32 matrix type with cols columns and rows rows.
func MatType(cols, rows int) ValueType {
	if cols < 2 || cols > 4 || rows < 2 || rows > 4 {
		panic("matrix dimensions must be 2, 3 or 4")
	}
	return ValueType{shape: shapeMatrix, scalar: KindFloat, rows: uint8(rows), cols: uint8(cols)}
}

func (t ValueType) IsScalar() bool { return t.shape == shapeScalar }
func (t ValueType) IsVector() bool { return t.shape == shapeVector }
func (t ValueType) IsMatrix() bool { return t.shape == shapeMatrix }

// Scalar returns the element kind of the type.
func (t ValueType) Scalar() ScalarKind { return t.scalar }

// Len returns the number of components of a vector, the number of columns of a matrix or 1 for scalars.
func (t ValueType) Len() int {
	switch t.shape {
	case shapeVector:
		return int(t.rows)
	case shapeMatrix:
		return int(t.cols)
	}
	return 1
}

// Rows returns the number of rows of a matrix type.
func (t ValueType) Rows() int { return int(t.rows) }

// Column returns the column vector type of a matrix type.
func (t ValueType) Column() ValueType {
	if !t.IsMatrix() {
		panic("Column called on non-matrix type " + t.String())
	}
	return VecType(t.scalar, int(t.rows))
}

// Elem returns the scalar type of the type's elements.
func (t ValueType) Elem() ValueType { return ScalarType(t.scalar) }

// WithScalar returns a type of the same shape with kind k.
func (t ValueType) WithScalar(k ScalarKind) ValueType {
	t.scalar = k
	return t
}

// String returns the WGSL name of the type, i.e: "vec4<f32>", "mat4x4<f32>".
func (t ValueType) String() string {
	return string(t.AppendWGSL(nil))
}

// AppendWGSL appends the WGSL type name to b.
func (t ValueType) AppendWGSL(b []byte) []byte {
	switch t.shape {
	case shapeVector:
		b = append(b, "vec"...)
		b = strconv.AppendInt(b, int64(t.rows), 10)
		b = append(b, '<')
		b = append(b, t.scalar.String()...)
		b = append(b, '>')
	case shapeMatrix:
		b = append(b, "mat"...)
		b = strconv.AppendInt(b, int64(t.cols), 10)
		b = append(b, 'x')
		b = strconv.AppendInt(b, int64(t.rows), 10)
		b = append(b, '<')
		b = append(b, t.scalar.String()...)
		b = append(b, '>')
	default:
		b = append(b, t.scalar.String()...)
	}
	return b
}

// ParseValueType parses a WGSL type name such as "f32", "vec3<u32>" or "mat4x4<f32>".
func ParseValueType(s string) (ValueType, error) {
	for _, k := range [...]ScalarKind{KindFloat, KindSint, KindUint, KindBool} {
		if s == k.String() {
			return ScalarType(k), nil
		}
		for n := 2; n <= 4; n++ {
			if t := VecType(k, n); s == t.String() {
				return t, nil
			}
		}
	}
	for cols := 2; cols <= 4; cols++ {
		for rows := 2; rows <= 4; rows++ {
			if t := MatType(cols, rows); s == t.String() {
				return t, nil
			}
		}
	}
	return ValueType{}, fmt.Errorf("invalid value type %q", s)
}

// AppendZero appends the WGSL zero value constructor of the type.
func (t ValueType) AppendZero(b []byte) []byte {
	b = t.AppendWGSL(b)
	return append(b, "()"...)
}

// Size returns the host-shareable size of the type in bytes.
func (t ValueType) Size() int {
	switch t.shape {
	case shapeVector:
		return 4 * int(t.rows)
	case shapeMatrix:
		// Columns are aligned to vec2 or vec4.
		colAlign := 8
		if t.rows > 2 {
			colAlign = 16
		}
		return colAlign * int(t.cols)
	}
	return 4
}

// Align returns the host-shareable alignment of the type in bytes.
func (t ValueType) Align() int {
	switch {
	case t.shape == shapeScalar:
		return 4
	case t.rows == 2:
		return 8
	}
	return 16
}

// Inner returns the naga IR representation of the type used for interning.
func (t ValueType) Inner() ir.TypeInner {
	sc := t.scalar.naga()
	switch t.shape {
	case shapeVector:
		return ir.VectorType{Size: ir.VectorSize(t.rows), Scalar: sc}
	case shapeMatrix:
		return ir.MatrixType{Columns: ir.VectorSize(t.cols), Rows: ir.VectorSize(t.rows), Scalar: sc}
	}
	return sc
}

// TypeHandle is an interned type within one stage context.
type TypeHandle = ir.TypeHandle

// VectorType is the shape of a vertex or instance attribute. It describes the memory
// layout of a buffer field rather than a shader value. See [ValueType].
type VectorType uint8

const (
	VectorF2 VectorType = iota + 1
	VectorF3
	VectorF4
	VectorI2
	VectorI3
	VectorI4
	VectorU2
	VectorU3
	VectorU4
)

// Value returns the shader value type read from an attribute of this shape.
func (v VectorType) Value() ValueType {
	switch v {
	case VectorF2, VectorF3, VectorF4:
		return VecType(KindFloat, int(v-VectorF2)+2)
	case VectorI2, VectorI3, VectorI4:
		return VecType(KindSint, int(v-VectorI2)+2)
	case VectorU2, VectorU3, VectorU4:
		return VecType(KindUint, int(v-VectorU2)+2)
	}
	panic("invalid vector type")
}

// Size returns the attribute size in bytes.
func (v VectorType) Size() int { return v.Value().Size() }

func (v VectorType) String() string { return v.Value().String() }

func (v VectorType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// ParseVectorType parses an attribute shape written as its WGSL type, such as "vec3<f32>".
func ParseVectorType(s string) (VectorType, error) {
	for v := VectorF2; v <= VectorU4; v++ {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("invalid vector type %q", s)
}

// Format returns the vertex format used in a vertex buffer layout.
func (v VectorType) Format() gputypes.VertexFormat {
	switch v {
	case VectorF2:
		return gputypes.VertexFormatFloat32x2
	case VectorF3:
		return gputypes.VertexFormatFloat32x3
	case VectorF4:
		return gputypes.VertexFormatFloat32x4
	case VectorI2:
		return gputypes.VertexFormatSint32x2
	case VectorI3:
		return gputypes.VertexFormatSint32x3
	case VectorI4:
		return gputypes.VertexFormatSint32x4
	case VectorU2:
		return gputypes.VertexFormatUint32x2
	case VectorU3:
		return gputypes.VertexFormatUint32x3
	case VectorU4:
		return gputypes.VertexFormatUint32x4
	}
	panic("invalid vector type")
}

// AddressSpace is the WGSL address space of a module-scope variable.
type AddressSpace uint8

const (
	SpaceUniform AddressSpace = iota
	SpaceStorage
	SpaceHandle
)

type memberKind uint8

const (
	memberValue memberKind = iota
	memberArray
	memberDynamicArray
	memberTexture2D
	memberTexture3D
	memberSampler
)

// MemberType describes a member of a bind group. Value members are bound as uniforms,
// dynamic arrays as read-only storage and textures or samplers as handles.
type MemberType struct {
	kind memberKind
	elem ValueType
	// Name of a struct element type. Overrides elem when set.
	structName string
	size       int
}

var (
	MemberTexture2D = MemberType{kind: memberTexture2D}
	MemberTexture3D = MemberType{kind: memberTexture3D}
	MemberSampler   = MemberType{kind: memberSampler}
)

// MemberValue returns a member holding a single value of type t.
func MemberValue(t ValueType) MemberType { return MemberType{kind: memberValue, elem: t} }

// MemberArray returns a member holding a fixed size array of t.
func MemberArray(t ValueType, size int) MemberType {
	if size <= 0 {
		panic("array size must be positive")
	}
	return MemberType{kind: memberArray, elem: t, size: size}
}

// MemberDynamicArray returns a member holding a runtime sized array of t.
func MemberDynamicArray(t ValueType) MemberType { return MemberType{kind: memberDynamicArray, elem: t} }

// MemberStruct returns a member holding a declared struct.
func MemberStruct(name string) MemberType { return MemberType{kind: memberValue, structName: name} }

// MemberStructArray returns a member holding a fixed size array of a declared struct.
func MemberStructArray(name string, size int) MemberType {
	if size <= 0 {
		panic("array size must be positive")
	}
	return MemberType{kind: memberArray, structName: name, size: size}
}

// Validate reports whether the member can be declared in its address space.
// Bool values are not host-shareable and the elements of uniform arrays must
// be laid out with a stride that is a multiple of 16 bytes.
func (m MemberType) Validate() error {
	if m.structName != "" || m.IsTexture() || m.IsSampler() {
		return nil
	}
	if m.elem.scalar == KindBool {
		return fmt.Errorf("%s is not host-shareable", m.elem)
	}
	if m.kind == memberArray {
		align := m.elem.Align()
		stride := (m.elem.Size() + align - 1) / align * align
		if stride%16 != 0 {
			return fmt.Errorf("uniform array element %s has stride %d, want a multiple of 16", m.elem, stride)
		}
	}
	return nil
}

// Elem returns the value type of the member or its array elements.
func (m MemberType) Elem() ValueType { return m.elem }

// IsArray reports whether the member is indexable.
func (m MemberType) IsArray() bool { return m.kind == memberArray || m.kind == memberDynamicArray }

// IsTexture reports whether the member is a texture.
func (m MemberType) IsTexture() bool { return m.kind == memberTexture2D || m.kind == memberTexture3D }

// IsSampler reports whether the member is a sampler.
func (m MemberType) IsSampler() bool { return m.kind == memberSampler }

// Space returns the address space the member is declared in.
func (m MemberType) Space() AddressSpace {
	switch m.kind {
	case memberDynamicArray:
		return SpaceStorage
	case memberTexture2D, memberTexture3D, memberSampler:
		return SpaceHandle
	}
	return SpaceUniform
}

// Resource returns the kind of binding the member occupies.
func (m MemberType) Resource() ResourceKind {
	switch m.kind {
	case memberDynamicArray:
		return ResourceStorage
	case memberTexture2D:
		return ResourceTexture2D
	case memberTexture3D:
		return ResourceTexture3D
	case memberSampler:
		return ResourceSampler
	}
	return ResourceUniform
}

func (m MemberType) elemName() string {
	if m.structName != "" {
		return m.structName
	}
	return m.elem.String()
}

// String returns the WGSL type of the member.
func (m MemberType) String() string {
	switch m.kind {
	case memberArray:
		return "array<" + m.elemName() + ", " + strconv.Itoa(m.size) + ">"
	case memberDynamicArray:
		return "array<" + m.elemName() + ">"
	case memberTexture2D:
		return "texture_2d<f32>"
	case memberTexture3D:
		return "texture_3d<f32>"
	case memberSampler:
		return "sampler"
	}
	return m.elemName()
}
