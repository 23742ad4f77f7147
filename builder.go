package gshader

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gshader/shbuild"
)

// Expr is a node of a shader expression graph. Expressions are immutable once
// built and may be shared: a sub-expression referenced twice is computed once.
type Expr = shbuild.Expr

// Builder wraps all shader combinator construction and type checking.
// Provides error handling strategies with panics or error accumulation during graph construction.
type Builder struct {
	// NoTypePanic accumulates type errors instead of panicking. A combinator
	// that fails returns the zero value of its best guess of the result type.
	NoTypePanic bool
	accumErrs   []error
}

func (bld *Builder) Err() error {
	if len(bld.accumErrs) == 0 {
		return nil
	}
	return errors.Join(bld.accumErrs...)
}

func (bld *Builder) typeErrorf(msg string, args ...any) {
	if !bld.NoTypePanic {
		panic(fmt.Sprintf(msg, args...))
	}
	bld.accumErrs = append(bld.accumErrs, fmt.Errorf(msg, args...))
}

func (*Builder) nilexpr(msg string) {
	panic("nil expression argument: " + msg)
}

// check returns x or, when err is set, reports it and returns the zero value of fallback.
func (bld *Builder) check(x *Expr, err error, fallback shbuild.ValueType) *Expr {
	if err != nil {
		bld.typeErrorf("%s", err)
		return shbuild.MakeZero(fallback)
	}
	return x
}

func (bld *Builder) nonNil(fn string, args ...*Expr) {
	for _, a := range args {
		if a == nil {
			bld.nilexpr(fn)
		}
	}
}

//
// Literals.
//

// F32 returns a float literal. Non-finite values are type errors.
func (bld *Builder) F32(v float32) *Expr {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		bld.typeErrorf("non-finite f32 literal %v", v)
		v = 0
	}
	return shbuild.Must(shbuild.MakeLiteral(shbuild.F32, float64(v)))
}

func (bld *Builder) I32(v int32) *Expr {
	return shbuild.Must(shbuild.MakeLiteral(shbuild.I32, float64(v)))
}

func (bld *Builder) U32(v uint32) *Expr {
	return shbuild.Must(shbuild.MakeLiteral(shbuild.U32, float64(v)))
}

func (bld *Builder) Bool(v bool) *Expr {
	lit := 0.0
	if v {
		lit = 1
	}
	return shbuild.Must(shbuild.MakeLiteral(shbuild.Bool, lit))
}

func (bld *Builder) floats(t shbuild.ValueType, vals ...float32) *Expr {
	args := make([]*Expr, len(vals))
	for i, v := range vals {
		args[i] = bld.F32(v)
	}
	x, err := shbuild.MakeCompose(t, args...)
	return bld.check(x, err, t)
}

// Vec2Lit returns a vec2<f32> literal.
func (bld *Builder) Vec2Lit(v ms2.Vec) *Expr { return bld.floats(shbuild.Vec2f, v.X, v.Y) }

// Vec3Lit returns a vec3<f32> literal.
func (bld *Builder) Vec3Lit(v ms3.Vec) *Expr { return bld.floats(shbuild.Vec3f, v.X, v.Y, v.Z) }

// Vec4Lit returns a vec4<f32> literal.
func (bld *Builder) Vec4Lit(x, y, z, w float32) *Expr {
	return bld.floats(shbuild.Vec4f, x, y, z, w)
}

// Mat2Lit returns a mat2x2<f32> literal. The matrix is read in row-major
// order and laid out in columns as WGSL expects.
func (bld *Builder) Mat2Lit(m ms2.Mat2) *Expr {
	arr := m.Array()
	return bld.floats(shbuild.Mat2, shbuild.ColumnMajor(nil, arr[:], 2, 2)...)
}

func (bld *Builder) Mat3Lit(m ms3.Mat3) *Expr {
	arr := m.Array()
	return bld.floats(shbuild.Mat3, shbuild.ColumnMajor(nil, arr[:], 3, 3)...)
}

func (bld *Builder) Mat4Lit(m ms3.Mat4) *Expr {
	arr := m.Array()
	return bld.floats(shbuild.Mat4, shbuild.ColumnMajor(nil, arr[:], 4, 4)...)
}

// Zero returns the zero value of t.
func (bld *Builder) Zero(t shbuild.ValueType) *Expr { return shbuild.MakeZero(t) }

//
// Vectors and matrices.
//

func (bld *Builder) vec(n int, args ...*Expr) *Expr {
	bld.nonNil("vec", args...)
	t := shbuild.VecType(args[0].Type.Scalar(), n)
	x, err := shbuild.MakeCompose(t, args...)
	return bld.check(x, err, t)
}

// Vec2 builds a 2 component vector from scalars of one kind.
func (bld *Builder) Vec2(x, y *Expr) *Expr { return bld.vec(2, x, y) }

func (bld *Builder) Vec3(x, y, z *Expr) *Expr { return bld.vec(3, x, y, z) }

func (bld *Builder) Vec4(x, y, z, w *Expr) *Expr { return bld.vec(4, x, y, z, w) }

// Concat builds a vector from scalar and vector pieces of the same kind.
// The number of components of the pieces must be 2, 3 or 4.
func (bld *Builder) Concat(pieces ...*Expr) *Expr {
	if len(pieces) == 0 {
		panic("Concat requires at least one piece")
	}
	bld.nonNil("Concat", pieces...)
	n := 0
	for _, p := range pieces {
		n += p.Type.Len()
	}
	if n < 2 || n > 4 {
		bld.typeErrorf("concatenation of %d components", n)
		return shbuild.MakeZero(shbuild.Vec4f)
	}
	return bld.vec(n, pieces...)
}

// Splat returns a vector of n copies of scalar x.
func (bld *Builder) Splat(x *Expr, n int) *Expr {
	bld.nonNil("Splat", x)
	v, err := shbuild.MakeSplat(x, n)
	return bld.check(v, err, shbuild.Vec4f)
}

// Swizzle selects components of v with a pattern such as "xzy" or "rgb".
func (bld *Builder) Swizzle(v *Expr, pattern string) *Expr {
	bld.nonNil("Swizzle", v)
	x, err := shbuild.MakeSwizzle(v, pattern)
	fallback := v.Type.Elem()
	if len(pattern) > 1 && len(pattern) <= 4 {
		fallback = shbuild.VecType(v.Type.Scalar(), len(pattern))
	}
	return bld.check(x, err, fallback)
}

// Component returns component i of vector v.
func (bld *Builder) Component(v *Expr, i int) *Expr {
	if i < 0 || i > 3 {
		bld.typeErrorf("component index %d out of range", i)
		return shbuild.MakeZero(v.Type.Elem())
	}
	return bld.Swizzle(v, "xyzw"[i:i+1])
}

// Matrix builds a matrix of type t from its column vectors.
func (bld *Builder) Matrix(t shbuild.ValueType, columns ...*Expr) *Expr {
	bld.nonNil("Matrix", columns...)
	x, err := shbuild.MakeCompose(t, columns...)
	return bld.check(x, err, t)
}

// Convert converts x element-wise to kind k.
func (bld *Builder) Convert(x *Expr, k shbuild.ScalarKind) *Expr {
	bld.nonNil("Convert", x)
	v, err := shbuild.MakeConvert(x, k)
	return bld.check(v, err, x.Type.WithScalar(k))
}

//
// Operators.
//

func (bld *Builder) binary(op shbuild.BinaryOp, a, b *Expr) *Expr {
	bld.nonNil(op.String(), a, b)
	x, err := shbuild.MakeBinary(op, a, b)
	fallback := a.Type
	if op.IsComparison() && !a.Type.IsMatrix() {
		fallback = a.Type.WithScalar(shbuild.KindBool)
	}
	return bld.check(x, err, fallback)
}

func (bld *Builder) Add(a, b *Expr) *Expr { return bld.binary(shbuild.BinAdd, a, b) }
func (bld *Builder) Sub(a, b *Expr) *Expr { return bld.binary(shbuild.BinSub, a, b) }

// Mul multiplies a and b. Matrix operands follow linear algebra rules:
// mat*vec transforms a column vector and vec*mat a row vector.
func (bld *Builder) Mul(a, b *Expr) *Expr { return bld.binary(shbuild.BinMul, a, b) }
func (bld *Builder) Div(a, b *Expr) *Expr { return bld.binary(shbuild.BinDiv, a, b) }
func (bld *Builder) Rem(a, b *Expr) *Expr { return bld.binary(shbuild.BinRem, a, b) }

func (bld *Builder) Neg(a *Expr) *Expr {
	bld.nonNil("Neg", a)
	x, err := shbuild.MakeUnary(shbuild.UnaryNeg, a)
	return bld.check(x, err, a.Type)
}

// And is the logical conjunction of scalar booleans and the bitwise
// conjunction of integers and boolean vectors.
func (bld *Builder) And(a, b *Expr) *Expr {
	if a != nil && a.Type == shbuild.Bool {
		return bld.binary(shbuild.BinLogicalAnd, a, b)
	}
	return bld.binary(shbuild.BinAnd, a, b)
}

// Or is the logical disjunction of scalar booleans and the bitwise
// disjunction of integers and boolean vectors.
func (bld *Builder) Or(a, b *Expr) *Expr {
	if a != nil && a.Type == shbuild.Bool {
		return bld.binary(shbuild.BinLogicalOr, a, b)
	}
	return bld.binary(shbuild.BinOr, a, b)
}

func (bld *Builder) Xor(a, b *Expr) *Expr { return bld.binary(shbuild.BinXor, a, b) }

// Shl shifts integer a left by the u32 amount b.
func (bld *Builder) Shl(a, b *Expr) *Expr { return bld.binary(shbuild.BinShl, a, b) }
func (bld *Builder) Shr(a, b *Expr) *Expr { return bld.binary(shbuild.BinShr, a, b) }

// Not negates booleans and complements integers.
func (bld *Builder) Not(a *Expr) *Expr {
	bld.nonNil("Not", a)
	op := shbuild.UnaryComplement
	if a.Type.Scalar() == shbuild.KindBool {
		op = shbuild.UnaryNot
	}
	x, err := shbuild.MakeUnary(op, a)
	return bld.check(x, err, a.Type)
}

func (bld *Builder) Eq(a, b *Expr) *Expr { return bld.binary(shbuild.BinEq, a, b) }
func (bld *Builder) Ne(a, b *Expr) *Expr { return bld.binary(shbuild.BinNe, a, b) }
func (bld *Builder) Lt(a, b *Expr) *Expr { return bld.binary(shbuild.BinLt, a, b) }
func (bld *Builder) Le(a, b *Expr) *Expr { return bld.binary(shbuild.BinLe, a, b) }
func (bld *Builder) Gt(a, b *Expr) *Expr { return bld.binary(shbuild.BinGt, a, b) }
func (bld *Builder) Ge(a, b *Expr) *Expr { return bld.binary(shbuild.BinGe, a, b) }

//
// Builtin functions.
//

func (bld *Builder) math(fn shbuild.MathFn, args ...*Expr) *Expr {
	bld.nonNil(fn.String(), args...)
	x, err := shbuild.MakeMath(fn, args...)
	fallback := args[0].Type
	switch fn {
	case shbuild.MathLength, shbuild.MathDistance, shbuild.MathDot:
		fallback = fallback.Elem()
	}
	return bld.check(x, err, fallback)
}

func (bld *Builder) Sin(x *Expr) *Expr       { return bld.math(shbuild.MathSin, x) }
func (bld *Builder) Cos(x *Expr) *Expr       { return bld.math(shbuild.MathCos, x) }
func (bld *Builder) Tan(x *Expr) *Expr       { return bld.math(shbuild.MathTan, x) }
func (bld *Builder) Sinh(x *Expr) *Expr      { return bld.math(shbuild.MathSinh, x) }
func (bld *Builder) Cosh(x *Expr) *Expr      { return bld.math(shbuild.MathCosh, x) }
func (bld *Builder) Tanh(x *Expr) *Expr      { return bld.math(shbuild.MathTanh, x) }
func (bld *Builder) Abs(x *Expr) *Expr       { return bld.math(shbuild.MathAbs, x) }
func (bld *Builder) Sqrt(x *Expr) *Expr      { return bld.math(shbuild.MathSqrt, x) }
func (bld *Builder) Floor(x *Expr) *Expr     { return bld.math(shbuild.MathFloor, x) }
func (bld *Builder) Fract(x *Expr) *Expr     { return bld.math(shbuild.MathFract, x) }
func (bld *Builder) Exp(x *Expr) *Expr       { return bld.math(shbuild.MathExp, x) }
func (bld *Builder) Length(x *Expr) *Expr    { return bld.math(shbuild.MathLength, x) }
func (bld *Builder) Normalize(x *Expr) *Expr { return bld.math(shbuild.MathNormalize, x) }
func (bld *Builder) Min(a, b *Expr) *Expr    { return bld.math(shbuild.MathMin, a, b) }
func (bld *Builder) Max(a, b *Expr) *Expr    { return bld.math(shbuild.MathMax, a, b) }
func (bld *Builder) Pow(a, b *Expr) *Expr    { return bld.math(shbuild.MathPow, a, b) }
func (bld *Builder) Step(edge, x *Expr) *Expr {
	return bld.math(shbuild.MathStep, edge, x)
}
func (bld *Builder) Dot(a, b *Expr) *Expr      { return bld.math(shbuild.MathDot, a, b) }
func (bld *Builder) Cross(a, b *Expr) *Expr    { return bld.math(shbuild.MathCross, a, b) }
func (bld *Builder) Distance(a, b *Expr) *Expr { return bld.math(shbuild.MathDistance, a, b) }

// Mix linearly interpolates between a and b by t, a vector or a scalar factor.
func (bld *Builder) Mix(a, b, t *Expr) *Expr { return bld.math(shbuild.MathMix, a, b, t) }

func (bld *Builder) Clamp(x, lo, hi *Expr) *Expr { return bld.math(shbuild.MathClamp, x, lo, hi) }

func (bld *Builder) Smoothstep(lo, hi, x *Expr) *Expr {
	return bld.math(shbuild.MathSmoothstep, lo, hi, x)
}

//
// Control flow and stages.
//

// IfThenElse evaluates to a when cond is true and to b otherwise. Only the
// taken arm is computed. Either arm may be a [Builder.Discard]. Texture
// samples with an implicit level read by either arm are computed before the
// branch unless their operands discard.
func (bld *Builder) IfThenElse(cond, a, b *Expr) *Expr {
	bld.nonNil("IfThenElse", cond, a, b)
	x, err := shbuild.MakeSelect(cond, a, b)
	return bld.check(x, err, a.Type)
}

// Discard returns a value of type t whose evaluation discards the fragment.
// Using it in the vertex stage panics at generation time.
func (bld *Builder) Discard(t shbuild.ValueType) *Expr { return shbuild.MakeDiscard(t) }

// Fragment computes x in the vertex stage and reads it in the fragment stage
// as an interpolated value. Integer values are passed without interpolation.
func (bld *Builder) Fragment(x *Expr) *Expr {
	bld.nonNil("Fragment", x)
	v, err := shbuild.MakeFragment(x)
	return bld.check(v, err, x.Type)
}

// VertexIndex returns the index of the current vertex.
func (bld *Builder) VertexIndex() *Expr {
	return shbuild.Must(shbuild.MakeBuiltin(shbuild.BuiltinVertexIndex))
}

// InstanceIndex returns the index of the current instance.
func (bld *Builder) InstanceIndex() *Expr {
	return shbuild.Must(shbuild.MakeBuiltin(shbuild.BuiltinInstanceIndex))
}

// Sample reads texture tex through sampler smp at coord. It is only valid in the fragment stage.
func (bld *Builder) Sample(tex, smp shbuild.Resource, coord *Expr) *Expr {
	bld.nonNil("Sample", coord)
	x, err := shbuild.MakeSample(tex, smp, coord, nil)
	return bld.check(x, err, shbuild.Vec4f)
}

// SampleLevel reads mip level of texture tex through sampler smp at coord.
func (bld *Builder) SampleLevel(tex, smp shbuild.Resource, coord, level *Expr) *Expr {
	bld.nonNil("SampleLevel", coord, level)
	x, err := shbuild.MakeSample(tex, smp, coord, level)
	return bld.check(x, err, shbuild.Vec4f)
}
