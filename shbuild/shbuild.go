// Package shbuild implements the shader intermediate representation and the
// machinery to lower it into WGSL: stage contexts, declaration accumulation,
// binding allocation and rendering.
package shbuild

import "strconv"

// Op is the tag of an [Expr] variant.
type Op uint8

const (
	opInvalid Op = iota
	// OpLiteral is a scalar constant stored in Expr.Lit.
	OpLiteral
	// OpZero is the zero value of Expr.Type.
	OpZero
	// OpDiscard terminates the fragment invocation and evaluates to the zero value of Expr.Type.
	OpDiscard
	// OpBinary applies Expr.Binary to Args[0] and Args[1].
	OpBinary
	// OpUnary applies Expr.Unary to Args[0].
	OpUnary
	// OpCompose constructs Expr.Type from Args.
	OpCompose
	// OpSplat broadcasts the scalar Args[0] to the vector Expr.Type.
	OpSplat
	// OpSwizzle selects Expr.Components of the vector Args[0].
	OpSwizzle
	// OpConvert converts Args[0] to Expr.Type element-wise.
	OpConvert
	// OpMath calls the builtin Expr.Math with Args.
	OpMath
	// OpSelect evaluates to Args[1] when Args[0] is true and to Args[2] otherwise.
	// Only the taken arm runs.
	OpSelect
	// OpSample reads texture Expr.Resources[0] with sampler Expr.Resources[1] at Args[0].
	// An optional Args[1] selects the mip level.
	OpSample
	// OpGlobal loads the module-scope variable Expr.Name, optionally indexed by Args[0]
	// and accessed through Expr.Field.
	OpGlobal
	// OpInput reads field Expr.Field of the vertex or instance input Expr.Name.
	OpInput
	// OpBuiltin reads the vertex stage builtin Expr.Name.
	OpBuiltin
	// OpFragment computes Args[0] in the vertex stage and reads it in the fragment
	// stage through an interpolated varying.
	OpFragment
	// OpCall calls the module-scope helper function Expr.Name with Args.
	OpCall
	opCount
)

var opNames = [opCount]string{
	opInvalid:  "invalid",
	OpLiteral:  "literal",
	OpZero:     "zero",
	OpDiscard:  "discard",
	OpBinary:   "binary",
	OpUnary:    "unary",
	OpCompose:  "compose",
	OpSplat:    "splat",
	OpSwizzle:  "swizzle",
	OpConvert:  "convert",
	OpMath:     "math",
	OpSelect:   "select",
	OpSample:   "sample",
	OpGlobal:   "global",
	OpInput:    "input",
	OpBuiltin:  "builtin",
	OpFragment: "fragment",
	OpCall:     "call",
}

func (op Op) String() string {
	if op < opCount {
		return opNames[op]
	}
	return "Op(" + strconv.Itoa(int(op)) + ")"
}

// BinaryOp is a WGSL binary operator.
type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinShl
	BinShr
	BinAnd
	BinOr
	BinXor
	BinLogicalAnd
	BinLogicalOr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

var binarySyms = [...]string{
	BinAdd: "+", BinSub: "-", BinMul: "*", BinDiv: "/", BinRem: "%",
	BinShl: "<<", BinShr: ">>", BinAnd: "&", BinOr: "|", BinXor: "^",
	BinLogicalAnd: "&&", BinLogicalOr: "||",
	BinEq: "==", BinNe: "!=", BinLt: "<", BinLe: "<=", BinGt: ">", BinGe: ">=",
}

func (op BinaryOp) String() string {
	if int(op) < len(binarySyms) {
		return binarySyms[op]
	}
	return "BinaryOp(" + strconv.Itoa(int(op)) + ")"
}

// IsComparison reports whether the operator yields booleans.
func (op BinaryOp) IsComparison() bool { return op >= BinEq }

func (op BinaryOp) isBitwise() bool { return op >= BinShl && op <= BinXor }

func (op BinaryOp) isLogical() bool { return op == BinLogicalAnd || op == BinLogicalOr }

// UnaryOp is a WGSL unary operator.
type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryComplement
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryNeg:
		return "-"
	case UnaryNot:
		return "!"
	case UnaryComplement:
		return "~"
	}
	return "UnaryOp(" + strconv.Itoa(int(op)) + ")"
}

// MathFn is a WGSL builtin function.
type MathFn uint8

const (
	MathSin MathFn = iota
	MathCos
	MathTan
	MathSinh
	MathCosh
	MathTanh
	MathAbs
	MathSqrt
	MathFloor
	MathFract
	MathExp
	MathNormalize
	MathLength
	MathMin
	MathMax
	MathPow
	MathStep
	MathDot
	MathCross
	MathDistance
	MathMix
	MathClamp
	MathSmoothstep
	mathCount
)

var mathNames = [mathCount]string{
	MathSin: "sin", MathCos: "cos", MathTan: "tan",
	MathSinh: "sinh", MathCosh: "cosh", MathTanh: "tanh",
	MathAbs: "abs", MathSqrt: "sqrt", MathFloor: "floor", MathFract: "fract",
	MathExp: "exp", MathNormalize: "normalize", MathLength: "length",
	MathMin: "min", MathMax: "max", MathPow: "pow", MathStep: "step",
	MathDot: "dot", MathCross: "cross", MathDistance: "distance",
	MathMix: "mix", MathClamp: "clamp", MathSmoothstep: "smoothstep",
}

func (fn MathFn) String() string {
	if fn < mathCount {
		return mathNames[fn]
	}
	return "MathFn(" + strconv.Itoa(int(fn)) + ")"
}

// Arity returns the number of arguments the function takes.
func (fn MathFn) Arity() int {
	switch {
	case fn <= MathLength:
		return 1
	case fn <= MathDistance:
		return 2
	}
	return 3
}

// Resource names a texture or sampler binding declared by a part.
type Resource struct {
	// Name of the module-scope variable.
	Name string
	Kind ResourceKind
}

// Expr is a node of the combinator graph. It is a closed tagged variant: Op
// selects which of the remaining fields are meaningful. Exprs are immutable
// after construction and may be shared freely; an Expr reachable through
// several paths is lowered once per scope by [Entry.Eval].
//
// Exprs are created through the Make functions in this package which check
// operand types, or through the gshader Builder.
type Expr struct {
	Op   Op
	Type ValueType
	Args []*Expr

	// Lit holds the bits of a literal: float64 for floats, int64 for integers, 0 or 1 for booleans.
	Lit        float64
	Binary     BinaryOp
	Unary      UnaryOp
	Math       MathFn
	Components []uint8
	Name       string
	Field      string
	Resources  [2]Resource
}

// Handle references a [Node] in the [Store] of one stage context. Handles are
// only meaningful within the compilation that created them.
type Handle uint32

// Node is an entry of the lowered IR. It mirrors the [Expr] that produced it
// with operands replaced by handles.
type Node struct {
	Op     Op
	Type   ValueType
	TypeID TypeHandle
	Args   []Handle

	Lit        float64
	Binary     BinaryOp
	Unary      UnaryOp
	Math       MathFn
	Components []uint8
	Name       string
	Field      string
	Resources  [2]Resource

	// named nodes are bound to an identifier when rendered.
	named bool
	// unreachable values are produced after a discard and never stored.
	unreachable bool
}

// Store is the arena holding the nodes of one stage. Nodes are only ever appended.
type Store struct {
	nodes []Node
}

// Add appends n to the store and returns its handle.
func (s *Store) Add(n Node) Handle {
	s.nodes = append(s.nodes, n)
	return Handle(len(s.nodes) - 1)
}

// Get returns the node referenced by h.
func (s *Store) Get(h Handle) *Node {
	return &s.nodes[h]
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int { return len(s.nodes) }

// ForEachFragment calls fn for every [OpFragment] node reachable from root in
// depth first order. Each distinct Expr is visited once.
func ForEachFragment(root *Expr, fn func(frag *Expr)) {
	seen := make(map[*Expr]struct{})
	var walk func(e *Expr)
	walk = func(e *Expr) {
		if e == nil {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		if e.Op == OpFragment {
			fn(e)
			return // Vertex stage expression, not part of the fragment graph.
		}
		for _, arg := range e.Args {
			walk(arg)
		}
	}
	walk(root)
}
