package shbuild

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// Binding is a binding slot: the bind group number and the binding number within the group.
type Binding struct {
	Group uint32
	Num   uint32
}

func (b Binding) String() string {
	return "@group(" + strconv.FormatUint(uint64(b.Group), 10) + ") @binding(" + strconv.FormatUint(uint64(b.Num), 10) + ")"
}

// Counter allocates binding slots of one bind group. Slots are handed out in
// increasing order starting at zero and are never reused.
type Counter struct {
	group uint32
	next  uint32
	used  bool
}

// NewCounter returns a counter allocating slots in group.
func NewCounter(group uint32) Counter { return Counter{group: group} }

// Next allocates the next free slot.
func (c *Counter) Next() Binding {
	b := Binding{Group: c.group, Num: c.next}
	c.next++
	c.used = true
	return b
}

// Get returns the slot allocated by the last call to Next. It panics if no slot was allocated.
func (c *Counter) Get() Binding {
	if !c.used {
		panic("binding counter: Get called before Next")
	}
	return Binding{Group: c.group, Num: c.next - 1}
}

// Group returns the bind group number of the counter.
func (c *Counter) Group() uint32 { return c.group }

// DeclKind is the kind of a module-scope declaration.
type DeclKind uint8

const (
	// DeclStruct is a struct type.
	DeclStruct DeclKind = iota
	// DeclVar is a module-scope variable bound to a binding slot.
	DeclVar
	// DeclFunc is a helper function.
	DeclFunc
	// DeclInput is a vertex or instance input struct read by the vertex entry point.
	DeclInput
	// DeclOutput is the output of a stage entry point.
	DeclOutput
)

func (k DeclKind) String() string {
	switch k {
	case DeclStruct:
		return "struct"
	case DeclVar:
		return "var"
	case DeclFunc:
		return "func"
	case DeclInput:
		return "input"
	case DeclOutput:
		return "output"
	}
	return "DeclKind(" + strconv.Itoa(int(k)) + ")"
}

// Field is a member of a struct, input or output declaration.
type Field struct {
	Name string
	// Type is the WGSL type of the field.
	Type string
	// Location is the IO location of input and output fields.
	Location uint32
	// Attr is the attribute shape of input fields.
	Attr VectorType
	// Builtin names the builtin value of an output field such as "position".
	Builtin string
	// Flat marks integer varyings that are not interpolated.
	Flat bool
}

// Decl is a single declaration written to an [Out].
type Decl struct {
	Kind DeclKind
	Name string

	// Var fields.
	Binding  Binding
	Resource ResourceKind
	Space    AddressSpace
	Type     string
	// Stages in which the variable is read. Accumulated during evaluation.
	Stages Stage

	// Struct, input and output fields.
	Fields []Field
	// Param is the entry point parameter name of an input.
	Param string
	Step  StepMode

	// Func fields.
	Source string
	// Uses lists the module-scope variables a function reads.
	Uses   []string
	Result ValueType
}

func (d *Decl) field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// sameShape reports whether two declarations of the same kind and name declare the same thing.
func (d *Decl) sameShape(other *Decl) bool {
	switch d.Kind {
	case DeclVar:
		return d.Binding == other.Binding && d.Type == other.Type && d.Resource == other.Resource
	case DeclFunc:
		return d.Source == other.Source && d.Result == other.Result
	}
	return d.Param == other.Param && d.Step == other.Step && slices.Equal(d.Fields, other.Fields)
}

// Out accumulates the declarations and the body of one stage. Declarations keep the
// order in which they were written.
type Out struct {
	Stage Stage
	Decls []Decl
	// Roots are the values returned by the stage: the position followed by
	// the varyings for the vertex stage and the color for the fragment stage.
	Roots []Handle
	// Builtins lists the vertex builtins read by the stage in order of first use.
	Builtins []string

	body  []statement
	store *Store
	// stages holds the vertex and fragment outputs a merged Out was built from.
	stages [2]*Out
}

// Lookup returns the declaration named name of kind k.
func (o *Out) Lookup(k DeclKind, name string) *Decl {
	for i := range o.Decls {
		if o.Decls[i].Kind == k && o.Decls[i].Name == name {
			return &o.Decls[i]
		}
	}
	return nil
}

// Vars returns the variable declarations in write order.
func (o *Out) Vars() []Decl {
	var vars []Decl
	for _, d := range o.Decls {
		if d.Kind == DeclVar {
			vars = append(vars, d)
		}
	}
	return vars
}

// Layout returns the binding schema of the declarations in o.
func (o *Out) Layout() Layout { return layoutOf(o) }

func (o *Out) write(d Decl) {
	if prev := o.Lookup(d.Kind, d.Name); prev != nil {
		if d.Kind == DeclStruct && prev.sameShape(&d) {
			return // Struct shared by several parts.
		}
		panic(fmt.Sprintf("duplicate %s declaration %q", d.Kind, d.Name))
	}
	if d.Kind == DeclVar {
		for _, v := range o.Decls {
			if v.Kind == DeclVar && v.Binding == d.Binding {
				panic(fmt.Sprintf("%s %q reuses binding of %q", d.Binding, d.Name, v.Name))
			}
		}
	}
	o.Decls = append(o.Decls, d)
}

var errMergeStage = errors.New("merge requires a vertex and a fragment stage output")

// Merge joins the declarations of the vertex and fragment stage outputs.
// Declarations present in both stages appear once, in the position of their
// first write, and variable visibility is the union of the stages that read
// them. A resource must occupy the same binding in both stages: the same name
// at a different binding, or the same binding under a different name, is an error.
// The merged Out carries no body and is the input of [Render].
func Merge(vs, fs *Out) (*Out, error) {
	if vs == nil || fs == nil || vs.Stage != StageVertex || fs.Stage != StageFragment {
		return nil, errMergeStage
	}
	merged := &Out{Stage: StagesAll, stages: [2]*Out{vs, fs}}
	byBinding := make(map[Binding]string)
	for _, src := range [2]*Out{vs, fs} {
		for _, d := range src.Decls {
			if d.Kind == DeclVar {
				if name, ok := byBinding[d.Binding]; ok && name != d.Name {
					return nil, fmt.Errorf("%s bound to both %q and %q", d.Binding, name, d.Name)
				}
				byBinding[d.Binding] = d.Name
			}
			prev := merged.Lookup(d.Kind, d.Name)
			if prev == nil {
				d.Fields = slices.Clone(d.Fields)
				d.Uses = slices.Clone(d.Uses)
				merged.Decls = append(merged.Decls, d)
				continue
			}
			if !prev.sameShape(&d) {
				if d.Kind == DeclVar {
					return nil, fmt.Errorf("%s %q declared at %s in vertex stage and %s in fragment stage", d.Kind, d.Name, prev.Binding, d.Binding)
				}
				return nil, fmt.Errorf("%s %q declared differently in vertex and fragment stage", d.Kind, d.Name)
			}
			prev.Stages |= d.Stages
		}
	}
	return merged, nil
}

// Var describes a module-scope variable claimed by a [Part].
type Var struct {
	Name string
	// Group is the logical bind group the variable belongs to, such as "globals".
	Group  string
	Member MemberType
}

// Attribute is a field of a vertex or instance input.
type Attribute struct {
	Name string
	Attr VectorType
}

// Part declares the bindings, types and helper functions of one logical
// shader resource. Parts are declared in the same order in both stages so
// they receive the same bindings.
type Part interface {
	Declare(d *Declarer)
}

type groupCounter struct {
	key     string
	counter Counter
}

// Declarer threads the binding counters, the IO location counter and the
// stage output through a sequence of [Part] declarations.
//
// A bind group is assigned a number the first time one of its variables is
// written, in write order, so groups without variables take no number.
type Declarer struct {
	out      *Out
	groups   []groupCounter
	location uint32
	parts    []string
}

// Stage returns the stage being declared.
func (d *Declarer) Stage() Stage { return d.out.Stage }

// Claim registers a part by name. It panics if the part was already declared.
func (d *Declarer) Claim(part string) {
	if slices.Contains(d.parts, part) {
		panic("part " + strconv.Quote(part) + " declared more than once")
	}
	d.parts = append(d.parts, part)
}

// Next allocates the next binding slot of the logical group.
func (d *Declarer) Next(group string) Binding {
	for i := range d.groups {
		if d.groups[i].key == group {
			return d.groups[i].counter.Next()
		}
	}
	d.groups = append(d.groups, groupCounter{key: group, counter: NewCounter(uint32(len(d.groups)))})
	return d.groups[len(d.groups)-1].counter.Next()
}

// GroupNumber returns the bind group number assigned to the logical group.
func (d *Declarer) GroupNumber(group string) (uint32, bool) {
	for _, g := range d.groups {
		if g.key == group {
			return g.counter.Group(), true
		}
	}
	return 0, false
}

// Declared reports whether a variable named name was written to the stage.
func (d *Declarer) Declared(name string) bool { return d.out.Lookup(DeclVar, name) != nil }

// Write claims a binding slot for v, records its declaration and returns the slot.
func (d *Declarer) Write(v Var) Binding {
	if v.Name == "" || v.Group == "" {
		panic("variable requires a name and a group")
	}
	b := d.Next(v.Group)
	d.out.write(Decl{
		Kind:     DeclVar,
		Name:     v.Name,
		Binding:  b,
		Resource: v.Member.Resource(),
		Space:    v.Member.Space(),
		Type:     v.Member.String(),
	})
	return b
}

// Struct declares a struct type with the given fields.
func (d *Declarer) Struct(name string, fields ...Field) {
	d.out.write(Decl{Kind: DeclStruct, Name: name, Fields: fields})
}

// Func declares a helper function. source is the complete WGSL function
// definition; uses lists the module-scope variables the function reads.
func (d *Declarer) Func(name string, result ValueType, source string, uses ...string) {
	for _, u := range uses {
		if d.out.Lookup(DeclVar, u) == nil {
			panic("function " + strconv.Quote(name) + " uses undeclared variable " + strconv.Quote(u))
		}
	}
	d.out.write(Decl{Kind: DeclFunc, Name: name, Result: result, Source: source, Uses: uses})
}

// Input declares the vertex stage input struct typeName passed to the entry
// point as param. Fields receive consecutive locations.
func (d *Declarer) Input(typeName, param string, step StepMode, attrs ...Attribute) {
	if len(attrs) == 0 {
		panic("input " + strconv.Quote(typeName) + " has no fields")
	}
	fields := make([]Field, len(attrs))
	for i, a := range attrs {
		fields[i] = Field{Name: a.Name, Type: a.Attr.String(), Location: d.location, Attr: a.Attr}
		d.location++
	}
	d.out.write(Decl{Kind: DeclInput, Name: typeName, Param: param, Step: step, Fields: fields})
}
