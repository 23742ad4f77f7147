package parts

import (
	"github.com/soypat/gshader/shbuild"
	"github.com/soypat/gshader/shbuild/wgsllib"
)

// SourceKind is the nature of the light emitted by a source array.
type SourceKind uint8

const (
	// Glow sources add light.
	Glow SourceKind = iota
	// Gloom sources remove light.
	Gloom
)

// SourceArray is an array of Size point light sources.
type SourceArray struct {
	Kind SourceKind
	Size int
}

// Sources declares up to 4 arrays of point light sources in the lights group.
// Array n is bound as sources_array_n followed by its length sources_len_n.
// When an [Ambient] part precedes it, gloom sources are tinted by the ambient color.
type Sources struct {
	Arrays []SourceArray

	bindings []shbuild.Binding
}

func (s *Sources) Declare(d *shbuild.Declarer) {
	d.Claim("sources")
	if len(s.Arrays) > MaxSourceArrays {
		panic("the number of source arrays cannot be greater than 4")
	}
	for _, arr := range s.Arrays {
		if arr.Size < 1 || arr.Size > MaxSourceSize {
			panic("source array size must be in range 1..127")
		}
	}
	s.bindings = s.bindings[:0]
	if len(s.Arrays) == 0 {
		return
	}
	vec3 := shbuild.Vec3f.String()
	d.Struct("Source",
		shbuild.Field{Name: "col", Type: vec3},
		shbuild.Field{Name: "rad", Type: shbuild.F32.String()},
		shbuild.Field{Name: "pos", Type: vec3},
	)
	u32 := shbuild.U32.String()
	d.Struct("Len",
		shbuild.Field{Name: "n", Type: u32},
		shbuild.Field{Name: "pad0", Type: u32},
		shbuild.Field{Name: "pad1", Type: u32},
		shbuild.Field{Name: "pad2", Type: u32},
	)
	ambient := d.Declared("ambient")
	var uses []string
	var gloom bool
	arrays := make([]wgsllib.SourceArray, len(s.Arrays))
	for n, arr := range s.Arrays {
		array, length := numbered("sources_array", n), numbered("sources_len", n)
		s.bindings = append(s.bindings,
			d.Write(shbuild.Var{Name: array, Group: GroupLights, Member: shbuild.MemberStructArray("Source", arr.Size)}),
			d.Write(shbuild.Var{Name: length, Group: GroupLights, Member: shbuild.MemberStruct("Len")}),
		)
		uses = append(uses, array, length)
		arrays[n] = wgsllib.SourceArray{N: n, Gloom: arr.Kind == Gloom}
		gloom = gloom || arr.Kind == Gloom
	}
	if ambient && gloom {
		uses = append(uses, "ambient")
	}
	d.Func("sources_light", shbuild.Vec3f, wgsllib.SourcesLight(arrays, ambient), uses...)
}

// Bindings returns the array and length slots of each source array.
func (s *Sources) Bindings() []shbuild.Binding { return s.bindings }

// Light returns the light the sources cast on the world position.
func (s *Sources) Light(world *shbuild.Expr) *shbuild.Expr {
	if len(s.Arrays) == 0 {
		panic("no source arrays declared")
	} else if world.Type != shbuild.Vec3f {
		panic("sources light a vec3<f32> world position, got " + world.Type.String())
	}
	return shbuild.Must(shbuild.MakeCall("sources_light", shbuild.Vec3f, world))
}

// SpaceKind is the number of color components stored in a light space.
type SpaceKind uint8

const (
	SpaceRgba SpaceKind = iota
	SpaceGray
)

// Spaces declares up to 4 light spaces: 3D textures tspace_n sampled through
// sspace, with the spaces uniform array holding each space model matrix and color.
type Spaces struct {
	Kinds []SpaceKind

	bindings []shbuild.Binding
}

func (s *Spaces) Declare(d *shbuild.Declarer) {
	d.Claim("spaces")
	if len(s.Kinds) > MaxSpaces {
		panic("the number of light spaces cannot be greater than 4")
	}
	s.bindings = s.bindings[:0]
	if len(s.Kinds) == 0 {
		return
	}
	d.Struct("Space",
		shbuild.Field{Name: "model", Type: shbuild.Mat4.String()},
		shbuild.Field{Name: "col", Type: shbuild.Vec3f.String()},
	)
	s.bindings = append(s.bindings, d.Write(shbuild.Var{
		Name: "spaces", Group: GroupSpaces, Member: shbuild.MemberStructArray("Space", len(s.Kinds)),
	}))
	for n := range s.Kinds {
		s.bindings = append(s.bindings, d.Write(shbuild.Var{
			Name: numbered("tspace", n), Group: GroupSpaces, Member: shbuild.MemberTexture3D,
		}))
	}
	s.bindings = append(s.bindings, d.Write(shbuild.Var{
		Name: "sspace", Group: GroupSpaces, Member: shbuild.MemberSampler,
	}))
}

// Bindings returns the slots of the spaces array, each space texture and the sampler.
func (s *Spaces) Bindings() []shbuild.Binding { return s.bindings }

// Light returns the light of the spaces at the homogeneous world position.
// world must be computable in the vertex stage: the texture coordinate of each
// space is computed there and interpolated. The brightest space wins.
func (s *Spaces) Light(world *shbuild.Expr) *shbuild.Expr {
	if len(s.Kinds) == 0 {
		panic("no light spaces declared")
	} else if world.Type != shbuild.Vec4f {
		panic("spaces light a vec4<f32> world position, got " + world.Type.String())
	}
	sampler := shbuild.Resource{Name: "sspace", Kind: shbuild.ResourceSampler}
	var light *shbuild.Expr
	for n, kind := range s.Kinds {
		model := shbuild.Must(shbuild.MakeGlobal("spaces", shbuild.Mat4, u32(n), "model"))
		local := shbuild.Must(shbuild.MakeBinary(shbuild.BinMul, model, world))
		coord := shbuild.Must(shbuild.MakeSwizzle(local, "xzy"))
		coord = shbuild.Must(shbuild.MakeFragment(coord))
		tex := shbuild.Resource{Name: numbered("tspace", n), Kind: shbuild.ResourceTexture3D}
		sample := shbuild.Must(shbuild.MakeSample(tex, sampler, coord, f32(0)))
		pattern := "rgb"
		if kind == SpaceGray {
			pattern = "rrr"
		}
		col := shbuild.Must(shbuild.MakeGlobal("spaces", shbuild.Vec3f, u32(n), "col"))
		space := shbuild.Must(shbuild.MakeBinary(shbuild.BinMul, shbuild.Must(shbuild.MakeSwizzle(sample, pattern)), col))
		if light == nil {
			light = space
		} else {
			light = shbuild.Must(shbuild.MakeMath(shbuild.MathMax, light, space))
		}
	}
	return light
}
