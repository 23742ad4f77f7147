package gshader_test

import (
	"flag"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gshader"
	"github.com/soypat/gshader/parts"
	"github.com/soypat/gshader/shaux"
	"github.com/soypat/gshader/shbuild"
	"github.com/soypat/gshader/shcheck"
)

var update = flag.Bool("update", false, "rewrite golden files in testdata")

func triangleScheme() gshader.Scheme {
	vert := parts.StandardVertex(2, true, false)
	return gshader.Scheme{
		Parts: []shbuild.Part{vert},
		Vertex: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Concat(vert.Get("pos"), bld.F32(0), bld.F32(1))
		},
		Fragment: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Concat(bld.Fragment(vert.Get("col")), bld.F32(1))
		},
	}
}

func instanceScheme() gshader.Scheme {
	vert := parts.StandardVertex(3, false, false)
	inst := parts.ModelInstance()
	view := &parts.View{Kind: parts.ViewCamera}
	ambient := &parts.Ambient{}
	return gshader.Scheme{
		Parts: []shbuild.Part{vert, inst, view, ambient},
		Vertex: func(bld *gshader.Builder) *gshader.Expr {
			world := bld.Mul(inst.Model(), bld.Concat(vert.Get("pos"), bld.F32(1)))
			return view.Apply(world)
		},
		Fragment: func(bld *gshader.Builder) *gshader.Expr {
			return ambient.Color()
		},
	}
}

func discardScheme() gshader.Scheme {
	vert := parts.StandardVertex(2, false, true)
	tex := &parts.Textures{N: 1, Threshold: 0.5}
	return gshader.Scheme{
		Parts: []shbuild.Part{vert, tex},
		Vertex: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Concat(vert.Get("pos"), bld.F32(0), bld.F32(1))
		},
		Fragment: func(bld *gshader.Builder) *gshader.Expr {
			return tex.Sample(bld.Fragment(vert.Get("map")))
		},
	}
}

func TestGolden(t *testing.T) {
	for _, tc := range []struct {
		file   string
		scheme func() gshader.Scheme
	}{
		{"triangle.wgsl", triangleScheme},
		{"instance.wgsl", instanceScheme},
		{"discard.wgsl", discardScheme},
	} {
		t.Run(tc.file, func(t *testing.T) {
			got := gshader.Generate(tc.scheme()).Source
			path := filepath.Join("testdata", tc.file)
			if *update {
				if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
					t.Fatal(err)
				}
				return
			}
			want, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := shaux.EqualLines(string(want), got); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestEntryPoints(t *testing.T) {
	src := gshader.Generate(triangleScheme()).Source
	names, err := shcheck.EntryPoints(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != gshader.VertexEntryPoint || names[1] != gshader.FragmentEntryPoint {
		t.Errorf("got entry points %q", names)
	}
}

func TestNoParts(t *testing.T) {
	c := gshader.Generate(gshader.Scheme{
		Vertex: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Vec4Lit(1, 1, 1, 1)
		},
		Fragment: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Vec4Lit(0, 0, 1, 1)
		},
	})
	src := c.DebugWGSL()
	if n := strings.Count(src, "struct VertexOutput {"); n != 1 {
		t.Errorf("want one vertex output declaration, got %d", n)
	}
	if n := strings.Count(src, "-> @location(0) vec4<f32>"); n != 1 {
		t.Errorf("want one fragment output, got %d", n)
	}
	if strings.Contains(src, "@group(") || strings.Contains(src, "@binding(") {
		t.Errorf("unexpected binding declaration:\n%s", src)
	}
	if n := c.Layout.NumBindings(); n != 0 {
		t.Errorf("want no bindings, got %d", n)
	}
	if len(c.Layout.Buffers) != 0 {
		t.Errorf("want no vertex buffers, got %d", len(c.Layout.Buffers))
	}
}

func constantScheme(ps ...shbuild.Part) gshader.Scheme {
	return gshader.Scheme{
		Parts: ps,
		Vertex: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Vec4Lit(1, 1, 1, 1)
		},
		Fragment: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Vec4Lit(0, 0, 1, 1)
		},
	}
}

func TestAmbientBinding(t *testing.T) {
	base := gshader.Generate(constantScheme())
	c := gshader.Generate(constantScheme(&parts.Ambient{}))
	if got := c.Layout.NumBindings() - base.Layout.NumBindings(); got != 1 {
		t.Errorf("ambient added %d bindings, want 1", got)
	}
	const want = "@group(0) @binding(0) var<uniform> ambient: vec4<f32>;"
	if !strings.Contains(c.Source, want) {
		t.Errorf("missing %q in:\n%s", want, c.Source)
	}
	group, binding, ok := c.Layout.Lookup("ambient")
	if !ok || group != 0 || binding != 0 {
		t.Errorf("ambient at group %d binding %d (found=%v)", group, binding, ok)
	}
	e := c.Layout.Groups[0].Entries[0]
	if e.Kind != shbuild.ResourceUniform || e.Type != "vec4<f32>" {
		t.Errorf("unexpected ambient entry %+v", e)
	}
}

func TestRegistrationOrder(t *testing.T) {
	lookup := func(c *gshader.Compiled, name string) uint32 {
		t.Helper()
		_, binding, ok := c.Layout.Lookup(name)
		if !ok {
			t.Fatalf("%s not bound", name)
		}
		return binding
	}
	ab := gshader.Generate(constantScheme(&parts.Ambient{}, &parts.View{Kind: parts.ViewCamera}))
	ba := gshader.Generate(constantScheme(&parts.View{Kind: parts.ViewCamera}, &parts.Ambient{}))
	if lookup(ab, "ambient") != 0 || lookup(ab, "camera") != 1 {
		t.Error("ambient first should bind ambient at 0 and camera at 1")
	}
	if lookup(ba, "camera") != 0 || lookup(ba, "ambient") != 1 {
		t.Error("camera first should bind camera at 0 and ambient at 1")
	}
	if ab.Source == ba.Source {
		t.Error("registration order did not change generated source")
	}
}

func TestDeterministic(t *testing.T) {
	for _, scheme := range []func() gshader.Scheme{triangleScheme, instanceScheme, discardScheme} {
		a := gshader.Generate(scheme())
		b := gshader.Generate(scheme())
		if err := shaux.EqualLines(a.Source, b.Source); err != nil {
			t.Error(err)
		}
		if shaux.FormatLayout(a.Layout) != shaux.FormatLayout(b.Layout) {
			t.Error("layout differs between runs")
		}
	}
}

func TestInstanceLayout(t *testing.T) {
	c := gshader.Generate(instanceScheme())
	if len(c.Layout.Buffers) != 2 {
		t.Fatalf("want vertex and instance buffers, got %d", len(c.Layout.Buffers))
	}
	vb, ib := c.Layout.Buffers[0], c.Layout.Buffers[1]
	if vb.Step != shbuild.StepVertex || vb.Stride != 12 {
		t.Errorf("unexpected vertex buffer %+v", vb)
	}
	if ib.Step != shbuild.StepInstance || ib.Stride != 64 || len(ib.Attributes) != 4 {
		t.Errorf("unexpected instance buffer %+v", ib)
	}
	if ib.Attributes[3].Location != 4 || ib.Attributes[3].Offset != 48 {
		t.Errorf("unexpected last instance row %+v", ib.Attributes[3])
	}
}

func TestTypePanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on mismatched operands")
		}
	}()
	var bld gshader.Builder
	bld.Add(bld.F32(1), bld.U32(1))
}

func TestNoTypePanic(t *testing.T) {
	bld := gshader.Builder{NoTypePanic: true}
	x := bld.Add(bld.F32(1), bld.U32(1))
	if x == nil {
		t.Fatal("want fallback expression")
	}
	bld.Swizzle(bld.Vec2Lit(ms2.Vec{X: 1, Y: 2}), "xyz")
	bld.F32(float32(posInf()))
	if err := bld.Err(); err == nil {
		t.Fatal("want accumulated errors")
	} else if n := strings.Count(err.Error(), "\n") + 1; n != 3 {
		t.Errorf("want 3 accumulated errors, got %d:\n%s", n, err)
	}
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}

func TestGenerateStageErrors(t *testing.T) {
	mustPanic := func(name string, s gshader.Scheme) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		gshader.Generate(s)
	}
	s := constantScheme()
	s.Fragment = nil
	mustPanic("missing fragment", s)

	s = constantScheme()
	s.Vertex = func(bld *gshader.Builder) *gshader.Expr { return bld.Discard(shbuild.Vec4f) }
	mustPanic("discard in vertex", s)

	s = constantScheme()
	s.Vertex = func(bld *gshader.Builder) *gshader.Expr { return bld.Vec3Lit(ms3.Vec{X: 1}) }
	mustPanic("vec3 position", s)
}

func TestMatrixLiteralColumns(t *testing.T) {
	var bld gshader.Builder
	m := bld.Mat3Lit(ms3.NewMat3([]float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}))
	if m.Op != shbuild.OpCompose || len(m.Args) != 9 {
		t.Fatalf("unexpected matrix literal %v with %d args", m.Op, len(m.Args))
	}
	want := []float64{1, 4, 7, 2, 5, 8, 3, 6, 9}
	for i, arg := range m.Args {
		if arg.Lit != want[i] {
			t.Errorf("arg %d: got %v want %v", i, arg.Lit, want[i])
		}
	}
}

func TestIndexBuiltins(t *testing.T) {
	c := gshader.Generate(gshader.Scheme{
		Vertex: func(bld *gshader.Builder) *gshader.Expr {
			i := bld.Convert(bld.InstanceIndex(), shbuild.KindFloat)
			return bld.Vec4(i, bld.F32(0), bld.F32(0), bld.F32(1))
		},
		Fragment: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Vec4Lit(1, 1, 1, 1)
		},
	})
	const want = "fn vs_main(@builtin(instance_index) instance_index: u32) -> VertexOutput {"
	if !strings.Contains(c.Source, want) {
		t.Errorf("missing %q in:\n%s", want, c.Source)
	}
}

func TestMinInt32Literal(t *testing.T) {
	c := gshader.Generate(gshader.Scheme{
		Vertex: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Vec4Lit(0, 0, 0, 1)
		},
		Fragment: func(bld *gshader.Builder) *gshader.Expr {
			x := bld.Convert(bld.Add(bld.I32(math.MinInt32), bld.I32(2)), shbuild.KindFloat)
			return bld.Vec4(x, x, x, bld.F32(1))
		},
	})
	if !strings.Contains(c.Source, "(-2147483647i - 1i)") {
		t.Errorf("minimum i32 literal not rewritten:\n%s", c.Source)
	}
}

func TestSampleOutsideBranch(t *testing.T) {
	vert := parts.StandardVertex(2, false, true)
	tex := &parts.Textures{N: 1}
	c := gshader.Generate(gshader.Scheme{
		Parts: []shbuild.Part{vert, tex},
		Vertex: func(bld *gshader.Builder) *gshader.Expr {
			return bld.Concat(vert.Get("pos"), bld.F32(0), bld.F32(1))
		},
		Fragment: func(bld *gshader.Builder) *gshader.Expr {
			uv := bld.Fragment(vert.Get("map"))
			cond := bld.Gt(bld.Component(uv, 0), bld.F32(0.5))
			return bld.IfThenElse(cond, bld.Sample(tex.Map(0), tex.Sampler(), uv), bld.Vec4Lit(0, 0, 0, 1))
		},
	})
	fsStart := strings.Index(c.Source, "@fragment")
	sample := strings.Index(c.Source, "textureSample(")
	branch := strings.Index(c.Source[fsStart:], "    if ")
	if fsStart < 0 || sample < fsStart || branch < 0 || sample > fsStart+branch {
		t.Errorf("texture sample must precede the branch:\n%s", c.Source)
	}
}
