package shbuild

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/gogpu/naga/ir"
)

// Stage is a set of shader stages.
type Stage uint8

const (
	StageVertex Stage = 1 << iota
	StageFragment
)

// StagesAll is the set of the vertex and fragment stages.
const StagesAll = StageVertex | StageFragment

// Has reports whether all stages of other are in s.
func (s Stage) Has(other Stage) bool { return s&other == other }

func (s Stage) String() string {
	switch s {
	case 0:
		return "none"
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StagesAll:
		return "vertex|fragment"
	}
	return "Stage(" + strconv.Itoa(int(s)) + ")"
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type stmtKind uint8

const (
	stmtLet stmtKind = iota
	stmtVar
	stmtStore
	stmtIf
	stmtKill
)

// statement is a statement of a stage body.
type statement struct {
	kind stmtKind
	// value is the bound node of let and var statements and the destination of stores.
	value Handle
	// src is the stored value of a store and the condition of an if.
	src  Handle
	then []statement
	els  []statement
}

// Entry is the evaluation context of one shader stage. It owns the node store
// and the output of the stage and is discarded after a single compilation.
type Entry struct {
	out   Out
	decl  Declarer
	store Store
	// types interns the naga representation of value types. typeVals maps
	// the handles back to value types.
	types    map[ir.TypeInner]TypeHandle
	typeVals []ValueType
	// block is the statement list being appended to.
	block *[]statement
	// scopes memoizes evaluated expressions. Scopes opened for branch arms are
	// dropped when the arm ends so values never escape the arm that computed them.
	scopes   []map[*Expr]Handle
	varyings map[*Expr]int
}

// NewEntry returns a new evaluation context for the vertex or fragment stage.
func NewEntry(stage Stage) *Entry {
	if stage != StageVertex && stage != StageFragment {
		panic("invalid stage " + stage.String())
	}
	e := &Entry{
		types:  make(map[ir.TypeInner]TypeHandle),
		scopes: []map[*Expr]Handle{make(map[*Expr]Handle)},
	}
	e.out.Stage = stage
	e.out.store = &e.store
	e.decl.out = &e.out
	e.block = &e.out.body
	return e
}

// Stage returns the stage of the context.
func (e *Entry) Stage() Stage { return e.out.Stage }

// Declarer returns the declarer parts write their declarations to.
func (e *Entry) Declarer() *Declarer { return &e.decl }

// Out returns the accumulated output of the stage.
func (e *Entry) Out() *Out { return &e.out }

// Store returns the node store of the stage.
func (e *Entry) Store() *Store { return &e.store }

// NewType interns t and returns its handle. Interning the same type twice
// returns the same handle.
func (e *Entry) NewType(t ValueType) TypeHandle {
	inner := t.Inner()
	if h, ok := e.types[inner]; ok {
		return h
	}
	h := TypeHandle(len(e.typeVals))
	e.types[inner] = h
	e.typeVals = append(e.typeVals, t)
	return h
}

// NumTypes returns the number of distinct types interned.
func (e *Entry) NumTypes() int { return len(e.typeVals) }

// TypeOf returns the value type of an interned type handle.
func (e *Entry) TypeOf(h TypeHandle) ValueType { return e.typeVals[h] }

// ZeroValue appends a node holding the zero value of the interned type th.
func (e *Entry) ZeroValue(th TypeHandle) Handle {
	return e.store.Add(Node{Op: OpZero, Type: e.TypeOf(th), TypeID: th})
}

// Kill emits a discard statement at the current point of evaluation.
// It panics in the vertex stage.
func (e *Entry) Kill() {
	if e.Stage() != StageFragment {
		panic("discard is only available in the fragment stage")
	}
	*e.block = append(*e.block, statement{kind: stmtKill})
}

// Write records the declaration of v and returns its binding slot.
func (e *Entry) Write(v Var) Binding { return e.decl.Write(v) }

// SetVaryings registers the Fragment expressions computed by the vertex stage
// in the order of their varying locations.
func (e *Entry) SetVaryings(frags []*Expr) {
	e.varyings = make(map[*Expr]int, len(frags))
	for i, f := range frags {
		if f.Op != OpFragment {
			panic("varying expression must be a fragment op, got " + f.Op.String())
		}
		e.varyings[f] = i
	}
}

// Output sets the values returned by the stage and writes the stage output
// declaration. The vertex stage returns the clip space position followed by
// the varyings, the fragment stage returns the color.
func (e *Entry) Output(roots ...Handle) {
	if len(roots) == 0 {
		panic("stage has no output")
	} else if e.out.Roots != nil {
		panic("stage output already set")
	}
	if t := e.store.Get(roots[0]).Type; t != Vec4f {
		panic(fmt.Sprintf("%s stage must output %s, got %s", e.Stage(), Vec4f, t))
	}
	if e.Stage() == StageFragment {
		if len(roots) != 1 {
			panic("fragment stage outputs a single color")
		}
		e.out.write(Decl{Kind: DeclOutput, Name: FragmentOutputName, Fields: []Field{
			{Name: "color", Type: Vec4f.String(), Location: 0},
		}})
		e.out.Roots = roots
		return
	}
	fields := []Field{{Name: "pos", Type: Vec4f.String(), Builtin: "position"}}
	for i, h := range roots[1:] {
		t := e.store.Get(h).Type
		if t.IsMatrix() {
			panic("cannot pass matrix " + t.String() + " between stages")
		}
		fields = append(fields, Field{
			Name:     varyingName(i),
			Type:     t.String(),
			Location: uint32(i),
			Flat:     t.Scalar() != KindFloat,
		})
	}
	e.out.write(Decl{Kind: DeclOutput, Name: VertexOutputName, Fields: fields})
	e.out.Roots = roots
}

func varyingName(i int) string { return "f" + strconv.Itoa(i) }

// Eval lowers x into the node store and returns the handle of its value.
// Sub-expressions are evaluated before their users. An expression already
// evaluated in the current scope is not evaluated again.
func (e *Entry) Eval(x *Expr) Handle {
	if x == nil {
		panic("nil expression")
	}
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if h, ok := e.scopes[i][x]; ok {
			return h
		}
	}
	h := e.eval(x)
	e.scopes[len(e.scopes)-1][x] = h
	return h
}

func (e *Entry) eval(x *Expr) Handle {
	n := Node{
		Op:         x.Op,
		Type:       x.Type,
		TypeID:     e.NewType(x.Type),
		Lit:        x.Lit,
		Binary:     x.Binary,
		Unary:      x.Unary,
		Math:       x.Math,
		Components: x.Components,
		Name:       x.Name,
		Field:      x.Field,
		Resources:  x.Resources,
	}
	switch x.Op {
	case OpLiteral:
		return e.store.Add(n)

	case OpZero:
		return e.ZeroValue(n.TypeID)

	case OpDiscard:
		e.Kill()
		h := e.ZeroValue(n.TypeID)
		e.store.Get(h).unreachable = true
		return h

	case OpBinary, OpUnary, OpCompose, OpSplat, OpSwizzle, OpConvert, OpMath:
		return e.emit(n, x.Args)

	case OpSelect:
		return e.branch(n, x)

	case OpSample:
		if len(x.Args) == 1 && e.Stage() != StageFragment {
			panic("implicit level texture sampling is only available in the fragment stage")
		}
		for _, r := range x.Resources {
			if d := e.use(r.Name); d.Resource != r.Kind {
				panic(fmt.Sprintf("%q is a %s binding, not %s", r.Name, d.Resource, r.Kind))
			}
		}
		return e.emit(n, x.Args)

	case OpGlobal:
		e.use(x.Name)
		n.Args = e.evalArgs(x.Args)
		return e.store.Add(n)

	case OpInput:
		if e.Stage() != StageVertex {
			panic(fmt.Sprintf("input %s.%s read in the fragment stage", x.Name, x.Field))
		}
		d := e.input(x.Name)
		if d == nil {
			panic("undefined input " + strconv.Quote(x.Name))
		}
		if _, ok := d.field(x.Field); !ok {
			panic(fmt.Sprintf("undefined field %q of input %s", x.Field, d.Name))
		}
		return e.store.Add(n)

	case OpBuiltin:
		if e.Stage() != StageVertex {
			panic("builtin " + x.Name + " read in the fragment stage")
		}
		if !slices.Contains(e.out.Builtins, x.Name) {
			e.out.Builtins = append(e.out.Builtins, x.Name)
		}
		return e.store.Add(n)

	case OpFragment:
		if e.Stage() != StageFragment {
			panic("fragment value evaluated in the vertex stage")
		}
		idx, ok := e.varyings[x]
		if !ok {
			panic("fragment value was not computed by the vertex stage")
		}
		n.Field = varyingName(idx)
		return e.store.Add(n)

	case OpCall:
		d := e.out.Lookup(DeclFunc, x.Name)
		if d == nil {
			panic("undefined function " + strconv.Quote(x.Name))
		}
		for _, u := range d.Uses {
			e.use(u)
		}
		return e.emit(n, x.Args)
	}
	panic("invalid op " + x.Op.String())
}

// emit evaluates the operands of n and binds n to a let statement.
func (e *Entry) emit(n Node, args []*Expr) Handle {
	n.Args = e.evalArgs(args)
	for _, a := range n.Args {
		if e.store.Get(a).unreachable {
			n.unreachable = true
		}
	}
	n.named = true
	h := e.store.Add(n)
	*e.block = append(*e.block, statement{kind: stmtLet, value: h})
	return h
}

func (e *Entry) evalArgs(args []*Expr) []Handle {
	if len(args) == 0 {
		return nil
	}
	handles := make([]Handle, len(args))
	for i, arg := range args {
		handles[i] = e.Eval(arg)
	}
	return handles
}

// branch lowers a select to a variable assigned in each arm of an if statement.
// Arms that end in a discard store nothing.
// Implicit level samples read by the arms are evaluated before the if statement
// so they stay in uniform control flow.
func (e *Entry) branch(n Node, x *Expr) Handle {
	cond := e.Eval(x.Args[0])
	if e.Stage() == StageFragment {
		for _, smp := range uniformSamples(x.Args[1], x.Args[2]) {
			e.Eval(smp)
		}
	}
	n.Args = []Handle{cond}
	n.named = true
	h := e.store.Add(n)
	*e.block = append(*e.block, statement{kind: stmtVar, value: h})
	then, thenOK := e.arm(h, x.Args[1])
	els, elseOK := e.arm(h, x.Args[2])
	*e.block = append(*e.block, statement{kind: stmtIf, src: cond, then: then, els: els})
	if !thenOK && !elseOK {
		e.store.Get(h).unreachable = true
	}
	return h
}

func (e *Entry) arm(dst Handle, x *Expr) (block []statement, reachable bool) {
	parent := e.block
	e.block = &block
	e.scopes = append(e.scopes, make(map[*Expr]Handle))
	v := e.Eval(x)
	e.scopes = e.scopes[:len(e.scopes)-1]
	e.block = parent
	reachable = !e.store.Get(v).unreachable
	if reachable {
		block = append(block, statement{kind: stmtStore, value: dst, src: v})
	}
	return block, reachable
}

// uniformSamples returns the implicit level samples reachable from roots, in
// evaluation order, whose operands cannot discard. Varyings are not descended.
func uniformSamples(roots ...*Expr) []*Expr {
	discards := make(map[*Expr]bool)
	var hasDiscard func(x *Expr) bool
	hasDiscard = func(x *Expr) bool {
		if d, ok := discards[x]; ok {
			return d
		}
		d := x.Op == OpDiscard
		if x.Op != OpFragment {
			for _, arg := range x.Args {
				d = hasDiscard(arg) || d
			}
		}
		discards[x] = d
		return d
	}
	var samples []*Expr
	seen := make(map[*Expr]bool)
	var walk func(x *Expr)
	walk = func(x *Expr) {
		if seen[x] || x.Op == OpFragment {
			return
		}
		seen[x] = true
		for _, arg := range x.Args {
			walk(arg)
		}
		if x.Op == OpSample && len(x.Args) == 1 && !hasDiscard(x) {
			samples = append(samples, x)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return samples
}

// use marks the variable name as read by the stage.
func (e *Entry) use(name string) *Decl {
	d := e.out.Lookup(DeclVar, name)
	if d == nil {
		panic("undefined global " + strconv.Quote(name))
	}
	d.Stages |= e.Stage()
	return d
}

func (e *Entry) input(param string) *Decl {
	for i := range e.out.Decls {
		d := &e.out.Decls[i]
		if d.Kind == DeclInput && d.Param == param {
			return d
		}
	}
	return nil
}
