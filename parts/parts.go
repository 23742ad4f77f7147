// Package parts implements the binding layout builders of shader schemes.
// Each part claims binding slots and writes the declarations of one logical
// shader resource, then exposes projections that read the resource from
// inside shader expressions.
//
// Parts must be declared in the same order in every stage. Binding numbers
// are positional: declaring parts in a different order changes the layout.
package parts

import (
	"fmt"

	"github.com/soypat/gshader/shbuild"
)

// Logical bind groups. Groups are numbered in the order they first receive a binding.
const (
	GroupGlobals  = "globals"
	GroupTextures = "textures"
	GroupLights   = "lights"
	GroupSpaces   = "spaces"
)

// Limits of the builtin parts.
const (
	MaxTextureMaps  = 4
	MaxSourceArrays = 4
	MaxSourceSize   = 127
	MaxSpaces       = 4
)

var (
	_ shbuild.Part = (*Ambient)(nil) // Interface implementation compile-time checks.
	_ shbuild.Part = (*View)(nil)
	_ shbuild.Part = (*Textures)(nil)
	_ shbuild.Part = (*Sources)(nil)
	_ shbuild.Part = (*Spaces)(nil)
	_ shbuild.Part = (*Vertex)(nil)
	_ shbuild.Part = (*Instance)(nil)
	_ shbuild.Part = (*Group)(nil)
	_ shbuild.Part = (*Post)(nil)
)

func global(name string, t shbuild.ValueType) *shbuild.Expr {
	return shbuild.Must(shbuild.MakeGlobal(name, t, nil, ""))
}

func u32(v int) *shbuild.Expr {
	return shbuild.Must(shbuild.MakeLiteral(shbuild.U32, float64(v)))
}

func f32(v float32) *shbuild.Expr {
	return shbuild.Must(shbuild.MakeLiteral(shbuild.F32, float64(v)))
}

func numbered(prefix string, n int) string { return fmt.Sprintf("%s_%d", prefix, n) }

// Ambient declares the ambient light color uniform:
//
//	var<uniform> ambient: vec4<f32>
type Ambient struct {
	binding shbuild.Binding
}

func (a *Ambient) Declare(d *shbuild.Declarer) {
	d.Claim("ambient")
	a.binding = d.Write(shbuild.Var{Name: "ambient", Group: GroupGlobals, Member: shbuild.MemberValue(shbuild.Vec4f)})
}

// Binding returns the slot of the ambient uniform.
func (a *Ambient) Binding() shbuild.Binding { return a.binding }

// Color reads the ambient color.
func (a *Ambient) Color() *shbuild.Expr { return global("ambient", shbuild.Vec4f) }

// ViewKind selects the view transform.
type ViewKind uint8

const (
	// ViewNone leaves positions untransformed.
	ViewNone ViewKind = iota
	// ViewCamera transforms positions by the camera view matrix.
	ViewCamera
)

// View declares the camera uniform when Kind is [ViewCamera].
type View struct {
	Kind    ViewKind
	binding shbuild.Binding
}

func (v *View) Declare(d *shbuild.Declarer) {
	d.Claim("view")
	if v.Kind != ViewCamera {
		return
	}
	d.Struct("Camera", shbuild.Field{Name: "view", Type: shbuild.Mat4.String()})
	v.binding = d.Write(shbuild.Var{Name: "camera", Group: GroupGlobals, Member: shbuild.MemberStruct("Camera")})
}

// Binding returns the slot of the camera uniform.
func (v *View) Binding() shbuild.Binding { return v.binding }

// Apply transforms the homogeneous world position by the view.
func (v *View) Apply(world *shbuild.Expr) *shbuild.Expr {
	if world.Type != shbuild.Vec4f {
		panic("view applies to vec4<f32> positions, got " + world.Type.String())
	}
	if v.Kind != ViewCamera {
		return world
	}
	view := shbuild.Must(shbuild.MakeGlobal("camera", shbuild.Mat4, nil, "view"))
	return shbuild.Must(shbuild.MakeBinary(shbuild.BinMul, view, world))
}
