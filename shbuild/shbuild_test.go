package shbuild_test

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/soypat/gshader/shbuild"
)

func lit(t shbuild.ValueType, v float64) *shbuild.Expr {
	return shbuild.Must(shbuild.MakeLiteral(t, v))
}

func vec4(x, y, z, w float64) *shbuild.Expr {
	return shbuild.Must(shbuild.MakeCompose(shbuild.Vec4f,
		lit(shbuild.F32, x), lit(shbuild.F32, y), lit(shbuild.F32, z), lit(shbuild.F32, w)))
}

// render compiles a module from the vertex place and fragment color after
// declaring parts in both stages.
func render(t *testing.T, parts []shbuild.Part, place, color *shbuild.Expr) string {
	t.Helper()
	vs := shbuild.NewEntry(shbuild.StageVertex)
	fs := shbuild.NewEntry(shbuild.StageFragment)
	for _, p := range parts {
		p.Declare(vs.Declarer())
		p.Declare(fs.Declarer())
	}
	vs.Output(vs.Eval(place))
	fs.Output(fs.Eval(color))
	merged, err := shbuild.Merge(vs.Out(), fs.Out())
	if err != nil {
		t.Fatal(err)
	}
	src, err := shbuild.Render(merged)
	if err != nil {
		t.Fatal(err)
	}
	return src
}

type declareFunc func(d *shbuild.Declarer)

func (f declareFunc) Declare(d *shbuild.Declarer) { f(d) }

func TestNewTypeInterning(t *testing.T) {
	e := shbuild.NewEntry(shbuild.StageFragment)
	h1 := e.NewType(shbuild.Vec4f)
	h2 := e.NewType(shbuild.Vec4f)
	if h1 != h2 {
		t.Fatalf("same type interned to different handles %d and %d", h1, h2)
	}
	h3 := e.NewType(shbuild.Vec4i)
	if h3 == h1 {
		t.Fatal("different types interned to the same handle")
	}
	if e.NumTypes() != 2 {
		t.Errorf("want 2 interned types, got %d", e.NumTypes())
	}
	if got := e.TypeOf(h3); got != shbuild.Vec4i {
		t.Errorf("want %s for handle, got %s", shbuild.Vec4i, got)
	}
	if e.NewType(shbuild.MatType(4, 4)) != e.NewType(shbuild.Mat4) {
		t.Error("matrix types not deduplicated")
	}
}

func TestCounter(t *testing.T) {
	c := shbuild.NewCounter(2)
	for i := 0; i < 4; i++ {
		b := c.Next()
		if b.Group != 2 || b.Num != uint32(i) {
			t.Fatalf("allocation %d: got %s", i, b)
		}
		if c.Get() != b {
			t.Fatalf("Get returned %s after allocating %s", c.Get(), b)
		}
	}
}

func TestDeclarerGroupNumbering(t *testing.T) {
	e := shbuild.NewEntry(shbuild.StageVertex)
	d := e.Declarer()
	vec := shbuild.MemberValue(shbuild.Vec4f)
	got := []shbuild.Binding{
		d.Write(shbuild.Var{Name: "a", Group: "textures", Member: shbuild.MemberTexture2D}),
		d.Write(shbuild.Var{Name: "b", Group: "globals", Member: vec}),
		d.Write(shbuild.Var{Name: "c", Group: "textures", Member: shbuild.MemberSampler}),
		d.Write(shbuild.Var{Name: "d", Group: "globals", Member: vec}),
	}
	want := []shbuild.Binding{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("var %d: want %s, got %s", i, want[i], got[i])
		}
	}
	if _, ok := d.GroupNumber("lights"); ok {
		t.Error("group without variables must not be numbered")
	}
}

func TestDeclarerDuplicatePart(t *testing.T) {
	d := shbuild.NewEntry(shbuild.StageVertex).Declarer()
	d.Claim("ambient")
	defer func() {
		r := recover()
		if r == nil || !strings.Contains(r.(string), "ambient") {
			t.Errorf("want duplicate part panic naming the part, got %v", r)
		}
	}()
	d.Claim("ambient")
}

func TestMergeConflicts(t *testing.T) {
	vec := shbuild.MemberValue(shbuild.Vec4f)
	for _, test := range []struct {
		desc   string
		vs, fs []shbuild.Var
		ok     bool
	}{
		{
			desc: "identical",
			vs:   []shbuild.Var{{Name: "a", Group: "g", Member: vec}},
			fs:   []shbuild.Var{{Name: "a", Group: "g", Member: vec}},
			ok:   true,
		},
		{
			desc: "same name different binding",
			vs:   []shbuild.Var{{Name: "a", Group: "g", Member: vec}},
			fs: []shbuild.Var{
				{Name: "b", Group: "g", Member: vec},
				{Name: "a", Group: "g", Member: vec},
			},
		},
		{
			desc: "same binding different name",
			vs:   []shbuild.Var{{Name: "a", Group: "g", Member: vec}},
			fs:   []shbuild.Var{{Name: "b", Group: "g", Member: vec}},
		},
		{
			desc: "same name different type",
			vs:   []shbuild.Var{{Name: "a", Group: "g", Member: vec}},
			fs:   []shbuild.Var{{Name: "a", Group: "g", Member: shbuild.MemberValue(shbuild.Mat4)}},
		},
	} {
		vs := shbuild.NewEntry(shbuild.StageVertex)
		fs := shbuild.NewEntry(shbuild.StageFragment)
		for _, v := range test.vs {
			vs.Write(v)
		}
		for _, v := range test.fs {
			fs.Write(v)
		}
		merged, err := shbuild.Merge(vs.Out(), fs.Out())
		if test.ok && err != nil {
			t.Errorf("%s: unexpected error %v", test.desc, err)
		} else if !test.ok && err == nil {
			t.Errorf("%s: expected merge error", test.desc)
		}
		if test.ok && len(merged.Vars()) != 1 {
			t.Errorf("%s: want one merged var, got %d", test.desc, len(merged.Vars()))
		}
	}
	if _, err := shbuild.Merge(shbuild.NewEntry(shbuild.StageFragment).Out(), shbuild.NewEntry(shbuild.StageFragment).Out()); err == nil {
		t.Error("expected error merging two fragment stages")
	}
}

func TestMergeVisibility(t *testing.T) {
	vs := shbuild.NewEntry(shbuild.StageVertex)
	fs := shbuild.NewEntry(shbuild.StageFragment)
	for _, e := range []*shbuild.Entry{vs, fs} {
		e.Write(shbuild.Var{Name: "model", Group: "globals", Member: shbuild.MemberValue(shbuild.Mat4)})
		e.Write(shbuild.Var{Name: "tint", Group: "globals", Member: shbuild.MemberValue(shbuild.Vec4f)})
		e.Write(shbuild.Var{Name: "unused", Group: "globals", Member: shbuild.MemberValue(shbuild.F32)})
	}
	vs.Eval(shbuild.Must(shbuild.MakeGlobal("model", shbuild.Mat4, nil, "")))
	fs.Eval(shbuild.Must(shbuild.MakeGlobal("tint", shbuild.Vec4f, nil, "")))
	vs.Eval(shbuild.Must(shbuild.MakeGlobal("tint", shbuild.Vec4f, nil, "")))
	merged, err := shbuild.Merge(vs.Out(), fs.Out())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]shbuild.Stage{
		"model":  shbuild.StageVertex,
		"tint":   shbuild.StagesAll,
		"unused": 0,
	}
	for _, v := range merged.Vars() {
		if v.Stages != want[v.Name] {
			t.Errorf("%s: want stages %s, got %s", v.Name, want[v.Name], v.Stages)
		}
	}
	layout := merged.Layout()
	entries := layout.Groups[0].BindGroupLayoutEntries()
	if entries[0].Visibility != gputypes.ShaderStageVertex {
		t.Error("model must only be visible to the vertex stage")
	}
	both := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	if entries[1].Visibility != both || entries[2].Visibility != both {
		t.Error("tint and unused must be visible to both stages")
	}
}

func TestRenderMinimal(t *testing.T) {
	src := render(t, nil, vec4(1, 1, 1, 1), vec4(0, 0, 1, 1))
	const want = `struct VertexOutput {
    @builtin(position) pos: vec4<f32>,
}

@vertex
fn vs_main() -> VertexOutput {
    let v4 = vec4<f32>(1.0, 1.0, 1.0, 1.0);
    var out: VertexOutput;
    out.pos = v4;
    return out;
}

@fragment
fn fs_main(vertex_out: VertexOutput) -> @location(0) vec4<f32> {
    let v4 = vec4<f32>(0.0, 0.0, 1.0, 1.0);
    return v4;
}
`
	if src != want {
		t.Errorf("got:\n%s\nwant:\n%s", src, want)
	}
}

func TestRenderRequiresMerge(t *testing.T) {
	vs := shbuild.NewEntry(shbuild.StageVertex)
	vs.Output(vs.Eval(vec4(1, 1, 1, 1)))
	if _, err := shbuild.Render(vs.Out()); err == nil {
		t.Error("rendering a single stage output must fail")
	}
	if _, err := shbuild.Render(nil); err == nil {
		t.Error("rendering nil must fail")
	}
	fs := shbuild.NewEntry(shbuild.StageFragment)
	merged, err := shbuild.Merge(vs.Out(), fs.Out())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := shbuild.Render(merged); err == nil {
		t.Error("rendering without fragment output must fail")
	}
}

func TestRenderDiscardBranch(t *testing.T) {
	cond := shbuild.Must(shbuild.MakeBinary(shbuild.BinLt, lit(shbuild.F32, 0.25), lit(shbuild.F32, 0.5)))
	color := shbuild.Must(shbuild.MakeSelect(cond, shbuild.MakeDiscard(shbuild.Vec4f), vec4(1, 0, 0, 1)))
	src := render(t, nil, vec4(1, 1, 1, 1), color)
	const want = `    let v2 = 0.25 < 0.5;
    var v3: vec4<f32>;
    if v2 {
        discard;
    } else {
        let v9 = vec4<f32>(1.0, 0.0, 0.0, 1.0);
        v3 = v9;
    }
    return v3;
`
	if !strings.Contains(src, want) {
		t.Errorf("fragment body not found in:\n%s\nwant:\n%s", src, want)
	}
}

func TestDiscardValueNeverStored(t *testing.T) {
	// Discard of every output type evaluates without type errors.
	for _, typ := range []shbuild.ValueType{shbuild.F32, shbuild.Vec4f, shbuild.Vec3i, shbuild.Mat3} {
		fs := shbuild.NewEntry(shbuild.StageFragment)
		sel := shbuild.Must(shbuild.MakeSelect(lit(shbuild.Bool, 1), shbuild.MakeDiscard(typ), shbuild.MakeZero(typ)))
		if sel.Type != typ {
			t.Fatalf("select type %s, want %s", sel.Type, typ)
		}
		fs.Eval(sel)
	}
	// A top level discard terminates before the return.
	src := render(t, nil, vec4(1, 1, 1, 1), shbuild.MakeDiscard(shbuild.Vec4f))
	if !strings.Contains(src, "    discard;\n    return vec4<f32>();\n") {
		t.Errorf("want discard before return:\n%s", src)
	}
}

func TestEvalSharedSubexpression(t *testing.T) {
	x := vec4(0.5, 0.5, 0.5, 1)
	sum := shbuild.Must(shbuild.MakeBinary(shbuild.BinAdd, x, x))
	src := render(t, nil, vec4(1, 1, 1, 1), sum)
	if n := strings.Count(src, "vec4<f32>(0.5, 0.5, 0.5, 1.0)"); n != 1 {
		t.Errorf("shared expression evaluated %d times:\n%s", n, src)
	}
	if !strings.Contains(src, "let v5 = v4 + v4;") {
		t.Errorf("sum does not reuse shared value:\n%s", src)
	}
}

func TestEvalBranchScope(t *testing.T) {
	y := vec4(1, 2, 3, 4)
	sel := shbuild.Must(shbuild.MakeSelect(lit(shbuild.Bool, 1), y, shbuild.MakeZero(shbuild.Vec4f)))
	color := shbuild.Must(shbuild.MakeBinary(shbuild.BinAdd, sel, y))
	src := render(t, nil, vec4(1, 1, 1, 1), color)
	// The value computed inside the arm is not visible after the if statement.
	if n := strings.Count(src, "vec4<f32>(1.0, 2.0, 3.0, 4.0)"); n != 2 {
		t.Errorf("want value computed in the arm and after the branch, got %d:\n%s", n, src)
	}
	if !strings.Contains(src, "if true {") {
		t.Errorf("missing branch:\n%s", src)
	}
}

func TestStageMisusePanics(t *testing.T) {
	frag := shbuild.Must(shbuild.MakeFragment(lit(shbuild.F32, 1)))
	vidx := shbuild.Must(shbuild.MakeBuiltin(shbuild.BuiltinVertexIndex))
	for _, test := range []struct {
		desc  string
		stage shbuild.Stage
		x     *shbuild.Expr
		want  string
	}{
		{"discard in vertex", shbuild.StageVertex, shbuild.MakeDiscard(shbuild.F32), "fragment stage"},
		{"fragment in vertex", shbuild.StageVertex, frag, "vertex stage"},
		{"builtin in fragment", shbuild.StageFragment, vidx, "vertex_index"},
		{"unregistered varying", shbuild.StageFragment, frag, "not computed"},
		{"undefined global", shbuild.StageFragment, shbuild.Must(shbuild.MakeGlobal("camera", shbuild.Mat4, nil, "view")), `"camera"`},
		{"undefined input", shbuild.StageVertex, shbuild.MakeInput("vert", "pos", shbuild.Vec3f), `"vert"`},
		{"undefined function", shbuild.StageFragment, shbuild.Must(shbuild.MakeCall("sources_light", shbuild.Vec3f)), `"sources_light"`},
	} {
		func() {
			defer func() {
				r := recover()
				msg, _ := r.(string)
				if !strings.Contains(msg, test.want) {
					t.Errorf("%s: want panic containing %q, got %v", test.desc, test.want, r)
				}
			}()
			shbuild.NewEntry(test.stage).Eval(test.x)
		}()
	}
}

func TestVaryings(t *testing.T) {
	world := shbuild.Must(shbuild.MakeCompose(shbuild.Vec3f, lit(shbuild.F32, 1), lit(shbuild.F32, 2), lit(shbuild.F32, 3)))
	frag := shbuild.Must(shbuild.MakeFragment(world))
	color := shbuild.Must(shbuild.MakeCompose(shbuild.Vec4f, frag, lit(shbuild.F32, 1)))
	var varyings []*shbuild.Expr
	shbuild.ForEachFragment(color, func(f *shbuild.Expr) { varyings = append(varyings, f) })
	if len(varyings) != 1 || varyings[0] != frag {
		t.Fatalf("want single varying, got %d", len(varyings))
	}
	vs := shbuild.NewEntry(shbuild.StageVertex)
	vs.Output(vs.Eval(vec4(0, 0, 0, 1)), vs.Eval(frag.Args[0]))
	fs := shbuild.NewEntry(shbuild.StageFragment)
	fs.SetVaryings(varyings)
	fs.Output(fs.Eval(color))
	merged, err := shbuild.Merge(vs.Out(), fs.Out())
	if err != nil {
		t.Fatal(err)
	}
	src, err := shbuild.Render(merged)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"    @location(0) f0: vec3<f32>,\n",
		"    out.f0 = v8;\n",
		"vec4<f32>(vertex_out.f0, 1.0)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
}

func TestInputLayout(t *testing.T) {
	parts := []shbuild.Part{declareFunc(func(d *shbuild.Declarer) {
		d.Input("VertexInput", "vert", shbuild.StepVertex,
			shbuild.Attribute{Name: "pos", Attr: shbuild.VectorF3},
			shbuild.Attribute{Name: "map", Attr: shbuild.VectorF2},
		)
		d.Input("InstanceInput", "inst", shbuild.StepInstance,
			shbuild.Attribute{Name: "r0", Attr: shbuild.VectorF4},
		)
	})}
	vs := shbuild.NewEntry(shbuild.StageVertex)
	fs := shbuild.NewEntry(shbuild.StageFragment)
	for _, p := range parts {
		p.Declare(vs.Declarer())
		p.Declare(fs.Declarer())
	}
	merged, err := shbuild.Merge(vs.Out(), fs.Out())
	if err != nil {
		t.Fatal(err)
	}
	layout := merged.Layout()
	if len(layout.Buffers) != 2 {
		t.Fatalf("want 2 buffers, got %d", len(layout.Buffers))
	}
	bufs := layout.VertexBufferLayouts()
	if bufs[0].ArrayStride != 20 || bufs[0].StepMode != gputypes.VertexStepModeVertex {
		t.Errorf("vertex buffer: stride %d mode %v", bufs[0].ArrayStride, bufs[0].StepMode)
	}
	if a := bufs[0].Attributes[1]; a.Offset != 12 || a.ShaderLocation != 1 || a.Format != gputypes.VertexFormatFloat32x2 {
		t.Errorf("second attribute: %+v", a)
	}
	if a := bufs[1].Attributes[0]; a.ShaderLocation != 2 || bufs[1].StepMode != gputypes.VertexStepModeInstance {
		t.Errorf("instance attribute must continue locations: %+v", a)
	}
}

func TestLayoutBindingKinds(t *testing.T) {
	vs := shbuild.NewEntry(shbuild.StageVertex)
	fs := shbuild.NewEntry(shbuild.StageFragment)
	for _, e := range []*shbuild.Entry{vs, fs} {
		e.Write(shbuild.Var{Name: "tmap_0", Group: "textures", Member: shbuild.MemberTexture2D})
		e.Write(shbuild.Var{Name: "smap", Group: "textures", Member: shbuild.MemberSampler})
		e.Write(shbuild.Var{Name: "points", Group: "data", Member: shbuild.MemberDynamicArray(shbuild.Vec4f)})
	}
	merged, err := shbuild.Merge(vs.Out(), fs.Out())
	if err != nil {
		t.Fatal(err)
	}
	layout := merged.Layout()
	if layout.NumBindings() != 3 || len(layout.Groups) != 2 {
		t.Fatalf("want 3 bindings in 2 groups, got %d in %d", layout.NumBindings(), len(layout.Groups))
	}
	if g, b, ok := layout.Lookup("points"); !ok || g != 1 || b != 0 {
		t.Errorf("points at group %d binding %d", g, b)
	}
	tex := layout.Groups[0].BindGroupLayoutEntries()
	if tex[0].Texture == nil || tex[0].Texture.ViewDimension != gputypes.TextureViewDimension2D {
		t.Error("tmap_0 must be a 2D texture binding")
	}
	if tex[1].Sampler == nil {
		t.Error("smap must be a sampler binding")
	}
	data := layout.Groups[1].BindGroupLayoutEntries()
	if data[0].Buffer == nil || data[0].Buffer.Type != gputypes.BufferBindingTypeReadOnlyStorage {
		t.Error("points must be a read-only storage buffer")
	}
}

func TestAppendFloat(t *testing.T) {
	for _, test := range []struct {
		v    float32
		want string
	}{
		{1, "1.0"},
		{0, "0.0"},
		{-2.25, "-2.25"},
		{0.1, "0.1"},
		{1e6, "1000000.0"},
	} {
		got := string(shbuild.AppendFloat(nil, test.v))
		if got != test.want {
			t.Errorf("AppendFloat(%v): want %q, got %q", test.v, test.want, got)
		}
	}
}

func TestColumnMajor(t *testing.T) {
	// 2x3 matrix, rows are {1,2,3} and {4,5,6}.
	got := shbuild.ColumnMajor(nil, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	want := []float32{1, 4, 2, 5, 3, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}
