package parts

import (
	"strconv"

	"github.com/soypat/gshader/shbuild"
)

// Vertex declares the per-vertex input struct VertexInput read through the vert parameter.
type Vertex struct {
	Fields []shbuild.Attribute
}

// StandardVertex returns the vertex input of a mesh with a 2D or 3D position
// named pos optionally followed by an rgb color col and a texture coordinate map.
func StandardVertex(dim int, color, texture bool) *Vertex {
	var v Vertex
	switch dim {
	case 2:
		v.Fields = append(v.Fields, shbuild.Attribute{Name: "pos", Attr: shbuild.VectorF2})
	case 3:
		v.Fields = append(v.Fields, shbuild.Attribute{Name: "pos", Attr: shbuild.VectorF3})
	default:
		panic("vertex position dimension must be 2 or 3")
	}
	if color {
		v.Fields = append(v.Fields, shbuild.Attribute{Name: "col", Attr: shbuild.VectorF3})
	}
	if texture {
		v.Fields = append(v.Fields, shbuild.Attribute{Name: "map", Attr: shbuild.VectorF2})
	}
	return &v
}

func (v *Vertex) Declare(d *shbuild.Declarer) {
	d.Claim("vertex")
	d.Input("VertexInput", "vert", shbuild.StepVertex, v.Fields...)
}

// Field reads field i of the current vertex.
func (v *Vertex) Field(i int) *shbuild.Expr {
	f := v.Fields[i]
	return shbuild.MakeInput("vert", f.Name, f.Attr.Value())
}

// Get reads the field named name of the current vertex.
func (v *Vertex) Get(name string) *shbuild.Expr {
	return v.Field(attrIndex(v.Fields, "vertex", name))
}

// Instance declares the per-instance input struct InstanceInput read through the inst parameter.
type Instance struct {
	Rows []shbuild.Attribute
}

// ModelInstance returns an instance input holding a model matrix as four rows r0..r3.
func ModelInstance() *Instance {
	rows := make([]shbuild.Attribute, 4)
	for i := range rows {
		rows[i] = shbuild.Attribute{Name: "r" + strconv.Itoa(i), Attr: shbuild.VectorF4}
	}
	return &Instance{Rows: rows}
}

func (in *Instance) Declare(d *shbuild.Declarer) {
	d.Claim("instance")
	d.Input("InstanceInput", "inst", shbuild.StepInstance, in.Rows...)
}

// Row reads row i of the current instance.
func (in *Instance) Row(i int) *shbuild.Expr {
	r := in.Rows[i]
	return shbuild.MakeInput("inst", r.Name, r.Attr.Value())
}

// Get reads the row named name of the current instance.
func (in *Instance) Get(name string) *shbuild.Expr {
	return in.Row(attrIndex(in.Rows, "instance", name))
}

// Model reads the model matrix of a [ModelInstance]. Rows are uploaded in the
// column-major order WGSL expects, so each row becomes a matrix column.
func (in *Instance) Model() *shbuild.Expr {
	if len(in.Rows) != 4 {
		panic("model matrix requires 4 instance rows")
	}
	cols := make([]*shbuild.Expr, 4)
	for i := range cols {
		cols[i] = in.Row(i)
	}
	return shbuild.Must(shbuild.MakeCompose(shbuild.Mat4, cols...))
}

func attrIndex(attrs []shbuild.Attribute, input, name string) int {
	for i, a := range attrs {
		if a.Name == name {
			return i
		}
	}
	panic("undefined " + input + " field " + strconv.Quote(name))
}
