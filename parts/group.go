package parts

import (
	"strconv"

	"github.com/soypat/gshader/shbuild"
)

// Member is a named member of a user defined [Group].
type Member struct {
	Name string
	Type shbuild.MemberType
}

// Group declares a user defined bind group. Members are bound in order.
type Group struct {
	Name    string
	Members []Member

	bindings []shbuild.Binding
}

func (g *Group) Declare(d *shbuild.Declarer) {
	if g.Name == "" {
		panic("group requires a name")
	}
	key := g.key()
	d.Claim(key)
	g.bindings = g.bindings[:0]
	for _, m := range g.Members {
		if err := m.Type.Validate(); err != nil {
			panic("member " + strconv.Quote(m.Name) + " of group " + strconv.Quote(g.Name) + ": " + err.Error())
		}
		g.bindings = append(g.bindings, d.Write(shbuild.Var{Name: m.Name, Group: key, Member: m.Type}))
	}
}

// key is the logical group of the members, kept apart from the builtin groups.
func (g *Group) key() string { return "group:" + g.Name }

// Binding returns the slot of member name.
func (g *Group) Binding(name string) shbuild.Binding {
	i := g.index(name)
	if i >= len(g.bindings) {
		panic("group " + strconv.Quote(g.Name) + " not declared")
	}
	return g.bindings[i]
}

// Load reads a value member.
func (g *Group) Load(name string) *shbuild.Expr {
	m := g.Members[g.index(name)]
	if m.Type.IsArray() || m.Type.IsTexture() || m.Type.IsSampler() {
		panic("member " + strconv.Quote(name) + " of type " + m.Type.String() + " is not a value")
	}
	return global(name, m.Type.Elem())
}

// At reads element index of an array member.
func (g *Group) At(name string, index *shbuild.Expr) *shbuild.Expr {
	m := g.Members[g.index(name)]
	if !m.Type.IsArray() {
		panic("member " + strconv.Quote(name) + " is not an array")
	}
	return shbuild.Must(shbuild.MakeGlobal(name, m.Type.Elem(), index, ""))
}

// Texture returns the resource of a texture member.
func (g *Group) Texture(name string) shbuild.Resource {
	m := g.Members[g.index(name)]
	if !m.Type.IsTexture() {
		panic("member " + strconv.Quote(name) + " is not a texture")
	}
	return shbuild.Resource{Name: name, Kind: m.Type.Resource()}
}

// Sampler returns the resource of a sampler member.
func (g *Group) Sampler(name string) shbuild.Resource {
	m := g.Members[g.index(name)]
	if !m.Type.IsSampler() {
		panic("member " + strconv.Quote(name) + " is not a sampler")
	}
	return shbuild.Resource{Name: name, Kind: shbuild.ResourceSampler}
}

func (g *Group) index(name string) int {
	for i, m := range g.Members {
		if m.Name == name {
			return i
		}
	}
	panic("undefined member " + strconv.Quote(name) + " of group " + strconv.Quote(g.Name))
}
