package parts

import (
	"github.com/soypat/gshader/shbuild"
	"github.com/soypat/gshader/shbuild/wgsllib"
)

// Post declares the post-processing pass inputs: the post_data uniform and the
// post_tmap frame texture sampled through post_smap.
type Post struct {
	// Antialiasing averages four samples one texel apart.
	Antialiasing bool
	// Vignette darkens the frame towards its edges by post_data.force.
	Vignette bool

	bindings []shbuild.Binding
}

func (p *Post) Declare(d *shbuild.Declarer) {
	d.Claim("post")
	d.Struct("PostData",
		shbuild.Field{Name: "texel", Type: shbuild.Vec2f.String()},
		shbuild.Field{Name: "force", Type: shbuild.F32.String()},
		shbuild.Field{Name: "vcolor", Type: shbuild.Vec4f.String()},
	)
	p.bindings = append(p.bindings[:0],
		d.Write(shbuild.Var{Name: "post_data", Group: GroupGlobals, Member: shbuild.MemberStruct("PostData")}),
		d.Write(shbuild.Var{Name: "post_tmap", Group: GroupTextures, Member: shbuild.MemberTexture2D}),
		d.Write(shbuild.Var{Name: "post_smap", Group: GroupTextures, Member: shbuild.MemberSampler}),
	)
	d.Func("post_color", shbuild.Vec4f, wgsllib.PostColor(p.Antialiasing, p.Vignette),
		"post_data", "post_tmap", "post_smap")
}

// Bindings returns the slots of post_data, post_tmap and post_smap.
func (p *Post) Bindings() []shbuild.Binding { return p.bindings }

// Color returns the post-processed frame color at uv. It samples with implicit
// derivatives and must only be used by the fragment stage.
func (p *Post) Color(uv *shbuild.Expr) *shbuild.Expr {
	if uv.Type != shbuild.Vec2f {
		panic("post color requires vec2<f32> coordinates, got " + uv.Type.String())
	}
	return shbuild.Must(shbuild.MakeCall("post_color", shbuild.Vec4f, uv))
}
