package parts

import (
	"github.com/chewxy/math32"
	"github.com/soypat/gshader/shbuild"
)

// Textures declares N 2D texture maps tmap_0..tmap_{N-1} sharing the smap sampler.
type Textures struct {
	N int
	// Threshold discards sampled fragments with alpha below it. Zero disables the test.
	Threshold float32

	maps    []shbuild.Binding
	sampler shbuild.Binding
}

func (t *Textures) Declare(d *shbuild.Declarer) {
	d.Claim("textures")
	if t.N < 0 || t.N > MaxTextureMaps {
		panic("the number of texture maps cannot be greater than 4")
	} else if math32.IsNaN(t.Threshold) || math32.IsInf(t.Threshold, 0) || t.Threshold < 0 {
		panic("texture threshold must be finite and non-negative")
	}
	t.maps = t.maps[:0]
	for i := 0; i < t.N; i++ {
		b := d.Write(shbuild.Var{Name: numbered("tmap", i), Group: GroupTextures, Member: shbuild.MemberTexture2D})
		t.maps = append(t.maps, b)
	}
	if t.N > 0 {
		t.sampler = d.Write(shbuild.Var{Name: "smap", Group: GroupTextures, Member: shbuild.MemberSampler})
	}
}

// Bindings returns the slots of the texture maps followed by the sampler slot.
func (t *Textures) Bindings() []shbuild.Binding {
	if len(t.maps) == 0 {
		return nil
	}
	return append(append([]shbuild.Binding{}, t.maps...), t.sampler)
}

// Map returns the resource of texture map i.
func (t *Textures) Map(i int) shbuild.Resource {
	if i < 0 || i >= t.N {
		panic("texture map index out of range")
	}
	return shbuild.Resource{Name: numbered("tmap", i), Kind: shbuild.ResourceTexture2D}
}

// Sampler returns the resource of the shared sampler.
func (t *Textures) Sampler() shbuild.Resource {
	return shbuild.Resource{Name: "smap", Kind: shbuild.ResourceSampler}
}

// Sample reads all maps at uv. Each map after the first is blended over the
// previous result by its alpha. When a threshold is set fragments whose
// resulting alpha is below it are discarded.
func (t *Textures) Sample(uv *shbuild.Expr) *shbuild.Expr {
	if t.N == 0 {
		panic("no texture maps declared")
	}
	var col *shbuild.Expr
	for i := 0; i < t.N; i++ {
		s := shbuild.Must(shbuild.MakeSample(t.Map(i), t.Sampler(), uv, nil))
		if col == nil {
			col = s
			continue
		}
		alpha := shbuild.Must(shbuild.MakeSwizzle(s, "a"))
		col = shbuild.Must(shbuild.MakeMath(shbuild.MathMix, col, s, alpha))
	}
	if t.Threshold == 0 {
		return col
	}
	alpha := shbuild.Must(shbuild.MakeSwizzle(col, "a"))
	below := shbuild.Must(shbuild.MakeBinary(shbuild.BinLt, alpha, f32(t.Threshold)))
	return shbuild.Must(shbuild.MakeSelect(below, shbuild.MakeDiscard(shbuild.Vec4f), col))
}
