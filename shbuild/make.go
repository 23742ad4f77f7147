package shbuild

import (
	"errors"
	"fmt"
	"math"
)

var (
	errNilOperand   = errors.New("nil operand")
	errEmptySwizzle = errors.New("swizzle pattern must have 1 to 4 components")
)

func checkNil(args ...*Expr) error {
	for _, a := range args {
		if a == nil {
			return errNilOperand
		}
	}
	return nil
}

// MakeLiteral returns a scalar literal of type t. Integer literals must be
// integral and within range of their type.
func MakeLiteral(t ValueType, v float64) (*Expr, error) {
	if !t.IsScalar() {
		return nil, fmt.Errorf("literal of non-scalar type %s", t)
	}
	switch t.Scalar() {
	case KindFloat:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite f32 literal %v", v)
		}
	case KindSint:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("%v out of range of i32", v)
		}
	case KindUint:
		if v != math.Trunc(v) || v < 0 || v > math.MaxUint32 {
			return nil, fmt.Errorf("%v out of range of u32", v)
		}
	case KindBool:
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("bool literal must be 0 or 1, got %v", v)
		}
	}
	return &Expr{Op: OpLiteral, Type: t, Lit: v}, nil
}

// MakeZero returns the zero value of t.
func MakeZero(t ValueType) *Expr { return &Expr{Op: OpZero, Type: t} }

// MakeDiscard returns an expression of type t that discards the fragment when evaluated.
func MakeDiscard(t ValueType) *Expr { return &Expr{Op: OpDiscard, Type: t} }

// MakeBinary returns the binary operation a op b.
func MakeBinary(op BinaryOp, a, b *Expr) (*Expr, error) {
	if err := checkNil(a, b); err != nil {
		return nil, err
	}
	t, err := binaryType(op, a.Type, b.Type)
	if err != nil {
		return nil, err
	}
	return &Expr{Op: OpBinary, Type: t, Binary: op, Args: []*Expr{a, b}}, nil
}

func binaryType(op BinaryOp, ta, tb ValueType) (ValueType, error) {
	mismatch := func() (ValueType, error) {
		return ValueType{}, fmt.Errorf("invalid operand types %s %s %s", ta, op, tb)
	}
	switch {
	case op.isLogical():
		if ta != Bool || tb != Bool {
			return mismatch()
		}
		return Bool, nil

	case op == BinShl || op == BinShr:
		if !ta.Scalar().IsInteger() || ta.IsMatrix() || tb != ta.WithScalar(KindUint) {
			return mismatch()
		}
		return ta, nil

	case op.isBitwise():
		integral := ta.Scalar().IsInteger() || (ta.Scalar() == KindBool && op != BinXor)
		if ta != tb || ta.IsMatrix() || !integral {
			return mismatch()
		}
		return ta, nil

	case op.IsComparison():
		if ta != tb || ta.IsMatrix() {
			return mismatch()
		}
		if ta.Scalar() == KindBool && op != BinEq && op != BinNe {
			return mismatch()
		}
		return ta.WithScalar(KindBool), nil
	}

	// Arithmetic.
	if !ta.Scalar().IsNumeric() || !tb.Scalar().IsNumeric() || ta.Scalar() != tb.Scalar() {
		return mismatch()
	}
	switch {
	case ta == tb:
		if ta.IsMatrix() && op != BinAdd && op != BinSub {
			if op == BinMul && ta.Len() == ta.Rows() {
				return ta, nil // Square matrix product.
			}
			return mismatch()
		}
		return ta, nil
	case ta.IsScalar() && tb.IsVector():
		return tb, nil
	case ta.IsVector() && tb.IsScalar():
		return ta, nil
	}
	if op != BinMul {
		return mismatch()
	}
	switch {
	case ta.IsScalar() && tb.IsMatrix():
		return tb, nil
	case ta.IsMatrix() && tb.IsScalar():
		return ta, nil
	case ta.IsMatrix() && tb.IsVector() && ta.Len() == tb.Len():
		return ta.Column(), nil
	case ta.IsVector() && tb.IsMatrix() && ta.Len() == tb.Rows():
		return VecType(KindFloat, tb.Len()), nil
	case ta.IsMatrix() && tb.IsMatrix() && ta.Len() == tb.Rows():
		return MatType(tb.Len(), ta.Rows()), nil
	}
	return mismatch()
}

// MakeUnary returns the unary operation op a.
func MakeUnary(op UnaryOp, a *Expr) (*Expr, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}
	t := a.Type
	var ok bool
	switch op {
	case UnaryNeg:
		ok = t.Scalar() == KindFloat || t.Scalar() == KindSint
	case UnaryNot:
		ok = t.Scalar() == KindBool && !t.IsMatrix()
	case UnaryComplement:
		ok = t.Scalar().IsInteger() && !t.IsMatrix()
	}
	if !ok {
		return nil, fmt.Errorf("invalid operand type %s%s", op, t)
	}
	return &Expr{Op: OpUnary, Type: t, Unary: op, Args: []*Expr{a}}, nil
}

// MakeCompose constructs a vector from scalars and vectors whose components add up
// to the vector size, or a matrix from its column vectors or all of its elements.
func MakeCompose(t ValueType, args ...*Expr) (*Expr, error) {
	if err := checkNil(args...); err != nil {
		return nil, err
	}
	switch {
	case t.IsVector():
		n := 0
		for _, a := range args {
			if a.Type.IsMatrix() || a.Type.Scalar() != t.Scalar() {
				return nil, fmt.Errorf("cannot construct %s from %s", t, a.Type)
			}
			n += a.Type.Len()
		}
		if n != t.Len() {
			return nil, fmt.Errorf("%s requires %d components, got %d", t, t.Len(), n)
		}
	case t.IsMatrix():
		col := t.Column()
		allColumns := len(args) == t.Len()
		allScalars := len(args) == t.Len()*t.Rows()
		for _, a := range args {
			allColumns = allColumns && a.Type == col
			allScalars = allScalars && a.Type == F32
		}
		if !allColumns && !allScalars {
			return nil, fmt.Errorf("%s requires %d %s columns or %d f32 elements", t, t.Len(), col, t.Len()*t.Rows())
		}
	default:
		return nil, fmt.Errorf("cannot compose scalar %s, use a conversion", t)
	}
	return &Expr{Op: OpCompose, Type: t, Args: args}, nil
}

// MakeSplat returns a vector of n copies of the scalar x.
func MakeSplat(x *Expr, n int) (*Expr, error) {
	if err := checkNil(x); err != nil {
		return nil, err
	}
	if !x.Type.IsScalar() {
		return nil, fmt.Errorf("splat of non-scalar %s", x.Type)
	} else if n < 2 || n > 4 {
		return nil, fmt.Errorf("splat size %d must be 2, 3 or 4", n)
	}
	return &Expr{Op: OpSplat, Type: VecType(x.Type.Scalar(), n), Args: []*Expr{x}}, nil
}

// MakeSwizzle selects components of vector v with a pattern of xyzw or rgba letters.
func MakeSwizzle(v *Expr, pattern string) (*Expr, error) {
	if err := checkNil(v); err != nil {
		return nil, err
	}
	if !v.Type.IsVector() {
		return nil, fmt.Errorf("swizzle of non-vector %s", v.Type)
	} else if len(pattern) == 0 || len(pattern) > 4 {
		return nil, errEmptySwizzle
	}
	comps := make([]uint8, len(pattern))
	set := ""
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		idx, s := componentIndex(c)
		if idx < 0 || (set != "" && s != set) {
			return nil, fmt.Errorf("invalid swizzle pattern %q", pattern)
		}
		set = s
		if idx >= v.Type.Len() {
			return nil, fmt.Errorf("swizzle component %q out of range of %s", c, v.Type)
		}
		comps[i] = uint8(idx)
	}
	t := v.Type.Elem()
	if len(comps) > 1 {
		t = VecType(v.Type.Scalar(), len(comps))
	}
	return &Expr{Op: OpSwizzle, Type: t, Components: comps, Args: []*Expr{v}}, nil
}

func componentIndex(c byte) (int, string) {
	const xyzw, rgba = "xyzw", "rgba"
	for i := 0; i < 4; i++ {
		if xyzw[i] == c {
			return i, xyzw
		} else if rgba[i] == c {
			return i, rgba
		}
	}
	return -1, ""
}

// MakeConvert converts x to kind k keeping its shape.
func MakeConvert(x *Expr, k ScalarKind) (*Expr, error) {
	if err := checkNil(x); err != nil {
		return nil, err
	}
	if x.Type.IsMatrix() && k != KindFloat {
		return nil, fmt.Errorf("cannot convert %s to %s elements", x.Type, k)
	}
	return &Expr{Op: OpConvert, Type: x.Type.WithScalar(k), Args: []*Expr{x}}, nil
}

// MakeMath calls the builtin function fn.
func MakeMath(fn MathFn, args ...*Expr) (*Expr, error) {
	if len(args) != fn.Arity() {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", fn, fn.Arity(), len(args))
	}
	if err := checkNil(args...); err != nil {
		return nil, err
	}
	t := args[0].Type
	isFloat := t.Scalar() == KindFloat && !t.IsMatrix()
	isNumeric := t.Scalar().IsNumeric() && !t.IsMatrix()
	sameTypes := true
	for _, a := range args[1:] {
		sameTypes = sameTypes && a.Type == t
	}
	bad := func() (*Expr, error) {
		types := make([]string, len(args))
		for i, a := range args {
			types[i] = a.Type.String()
		}
		return nil, fmt.Errorf("invalid argument types for %s%v", fn, types)
	}
	result := t
	switch fn {
	case MathAbs:
		if !isNumeric {
			return bad()
		}
	case MathSin, MathCos, MathTan, MathSinh, MathCosh, MathTanh, MathSqrt, MathFloor, MathFract, MathExp:
		if !isFloat {
			return bad()
		}
	case MathNormalize:
		if !isFloat || !t.IsVector() {
			return bad()
		}
	case MathLength:
		if !isFloat {
			return bad()
		}
		result = F32
	case MathMin, MathMax, MathClamp:
		if !isNumeric || !sameTypes {
			return bad()
		}
	case MathPow, MathStep, MathSmoothstep:
		if !isFloat || !sameTypes {
			return bad()
		}
	case MathDistance:
		if !isFloat || !sameTypes {
			return bad()
		}
		result = F32
	case MathDot:
		if !isNumeric || !t.IsVector() || !sameTypes {
			return bad()
		}
		result = t.Elem()
	case MathCross:
		if t != Vec3f || !sameTypes {
			return bad()
		}
	case MathMix:
		// The blend factor may be a vector or a scalar.
		if !isFloat || args[1].Type != t || (args[2].Type != t && args[2].Type != F32) {
			return bad()
		}
	default:
		return nil, fmt.Errorf("invalid math function %s", fn)
	}
	return &Expr{Op: OpMath, Type: result, Math: fn, Args: args}, nil
}

// MakeSelect returns a, evaluated only when cond is true, or b otherwise.
func MakeSelect(cond, a, b *Expr) (*Expr, error) {
	if err := checkNil(cond, a, b); err != nil {
		return nil, err
	}
	if cond.Type != Bool {
		return nil, fmt.Errorf("condition must be bool, got %s", cond.Type)
	} else if a.Type != b.Type {
		return nil, fmt.Errorf("branch types %s and %s differ", a.Type, b.Type)
	}
	return &Expr{Op: OpSelect, Type: a.Type, Args: []*Expr{cond, a, b}}, nil
}

// MakeSample reads texture tex through sampler smp at coord. A nil level samples
// with implicit derivatives, which is only valid in the fragment stage.
func MakeSample(tex, smp Resource, coord, level *Expr) (*Expr, error) {
	if err := checkNil(coord); err != nil {
		return nil, err
	}
	var want ValueType
	switch tex.Kind {
	case ResourceTexture2D:
		want = Vec2f
	case ResourceTexture3D:
		want = Vec3f
	default:
		return nil, fmt.Errorf("%q is not a texture", tex.Name)
	}
	if smp.Kind != ResourceSampler {
		return nil, fmt.Errorf("%q is not a sampler", smp.Name)
	} else if coord.Type != want {
		return nil, fmt.Errorf("%s coordinate must be %s, got %s", tex.Kind, want, coord.Type)
	}
	args := []*Expr{coord}
	if level != nil {
		if level.Type != F32 {
			return nil, fmt.Errorf("sample level must be f32, got %s", level.Type)
		}
		args = append(args, level)
	}
	return &Expr{Op: OpSample, Type: Vec4f, Resources: [2]Resource{tex, smp}, Args: args}, nil
}

// MakeGlobal loads the module-scope variable name of type t. A non-nil index
// selects an array element and a non-empty field accesses a struct member.
func MakeGlobal(name string, t ValueType, index *Expr, field string) (*Expr, error) {
	if name == "" {
		return nil, errors.New("empty global name")
	}
	x := &Expr{Op: OpGlobal, Type: t, Name: name, Field: field}
	if index != nil {
		if !index.Type.IsScalar() || !index.Type.Scalar().IsInteger() {
			return nil, fmt.Errorf("index of %s must be i32 or u32, got %s", name, index.Type)
		}
		x.Args = []*Expr{index}
	}
	return x, nil
}

// MakeInput reads field of the vertex stage input passed as param.
func MakeInput(param, field string, t ValueType) *Expr {
	return &Expr{Op: OpInput, Type: t, Name: param, Field: field}
}

// Vertex stage builtins.
const (
	BuiltinVertexIndex   = "vertex_index"
	BuiltinInstanceIndex = "instance_index"
)

// MakeBuiltin reads the u32 vertex stage builtin name.
func MakeBuiltin(name string) (*Expr, error) {
	if name != BuiltinVertexIndex && name != BuiltinInstanceIndex {
		return nil, fmt.Errorf("unknown builtin %q", name)
	}
	return &Expr{Op: OpBuiltin, Type: U32, Name: name}, nil
}

// MakeFragment passes x, computed in the vertex stage, to the fragment stage.
func MakeFragment(x *Expr) (*Expr, error) {
	if err := checkNil(x); err != nil {
		return nil, err
	}
	if x.Type.IsMatrix() || x.Type.Scalar() == KindBool {
		return nil, fmt.Errorf("%s cannot be passed between stages", x.Type)
	}
	return &Expr{Op: OpFragment, Type: x.Type, Args: []*Expr{x}}, nil
}

// MakeCall calls the helper function name declared by a part.
func MakeCall(name string, result ValueType, args ...*Expr) (*Expr, error) {
	if err := checkNil(args...); err != nil {
		return nil, err
	}
	return &Expr{Op: OpCall, Type: result, Name: name, Args: args}, nil
}

// Must panics if err is not nil and returns x otherwise. It is meant for
// expressions built from operands known to be well typed.
func Must(x *Expr, err error) *Expr {
	if err != nil {
		panic(err)
	}
	return x
}
