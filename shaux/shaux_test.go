package shaux_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soypat/gshader/parts"
	"github.com/soypat/gshader/shaux"
	"github.com/soypat/gshader/shbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlScheme = `
[[parts]]
kind = "vertex"
attributes = [
	{name = "pos", type = "vec2<f32>"},
	{name = "col", type = "vec3<f32>"},
]

[[parts]]
kind = "instance"
model = true

[[parts]]
kind = "textures"
maps = 2
threshold = 0.5

[[parts]]
kind = "sources"
arrays = [{kind = "glow", size = 8}, {kind = "gloom", size = 2}]

[[parts]]
kind = "group"
name = "extra"
members = [
	{name = "tint", type = "vec4<f32>"},
	{name = "weights", type = "vec4<f32>", array = 4},
	{name = "data", type = "vec4<u32>", dynamic = true},
	{name = "tex", type = "texture_2d"},
]
`

const yamlScheme = `
parts:
  - kind: view
    view: camera
  - kind: ambient
  - kind: spaces
    spaces: [rgba, gray]
  - kind: post
    antialiasing: true
`

func TestLoadSchemeTOML(t *testing.T) {
	cfg, err := shaux.LoadScheme(strings.NewReader(tomlScheme), shaux.FormatTOML)
	require.NoError(t, err)
	ps, err := cfg.Build()
	require.NoError(t, err)
	require.Len(t, ps, 5)

	vert, ok := ps[0].(*parts.Vertex)
	require.True(t, ok, "want vertex part, got %T", ps[0])
	require.Len(t, vert.Fields, 2)
	assert.Equal(t, "col", vert.Fields[1].Name)
	assert.Equal(t, shbuild.VectorF3, vert.Fields[1].Attr)

	inst, ok := ps[1].(*parts.Instance)
	require.True(t, ok)
	assert.Len(t, inst.Rows, 4)

	tex, ok := ps[2].(*parts.Textures)
	require.True(t, ok)
	assert.Equal(t, 2, tex.N)
	assert.Equal(t, float32(0.5), tex.Threshold)

	src, ok := ps[3].(*parts.Sources)
	require.True(t, ok)
	assert.Equal(t, []parts.SourceArray{{Kind: parts.Glow, Size: 8}, {Kind: parts.Gloom, Size: 2}}, src.Arrays)

	grp, ok := ps[4].(*parts.Group)
	require.True(t, ok)
	assert.Equal(t, "extra", grp.Name)
	require.Len(t, grp.Members, 4)
	assert.True(t, grp.Members[1].Type.IsArray())
	assert.True(t, grp.Members[2].Type.IsArray())
	assert.True(t, grp.Members[3].Type.IsTexture())
}

func TestLoadSchemeYAML(t *testing.T) {
	cfg, err := shaux.LoadScheme(strings.NewReader(yamlScheme), shaux.FormatYAML)
	require.NoError(t, err)
	ps, err := cfg.Build()
	require.NoError(t, err)
	require.Len(t, ps, 4)
	assert.Equal(t, &parts.View{Kind: parts.ViewCamera}, ps[0])
	assert.Equal(t, &parts.Ambient{}, ps[1])
	assert.Equal(t, &parts.Spaces{Kinds: []parts.SpaceKind{parts.SpaceRgba, parts.SpaceGray}}, ps[2])
	assert.Equal(t, &parts.Post{Antialiasing: true}, ps[3])
}

func TestLoadSchemeUnknownField(t *testing.T) {
	_, err := shaux.LoadScheme(strings.NewReader("[[parts]]\nkind = \"ambient\"\ncolour = 1\n"), shaux.FormatTOML)
	assert.Error(t, err)
	_, err = shaux.LoadScheme(strings.NewReader("parts:\n  - kind: ambient\n    colour: 1\n"), shaux.FormatYAML)
	assert.Error(t, err)
	_, err = shaux.LoadScheme(strings.NewReader(""), 0)
	assert.Error(t, err)
}

func TestSchemeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scheme.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlScheme), 0o644))
	cfg, err := shaux.LoadSchemeFile(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Parts, 4)

	_, err = shaux.LoadSchemeFile(filepath.Join(dir, "scheme.json"))
	assert.Error(t, err)
}

func TestConfigPartErrors(t *testing.T) {
	for _, tc := range []struct {
		part shaux.PartConfig
		want string
	}{
		{shaux.PartConfig{Kind: "lens"}, `unknown part kind "lens"`},
		{shaux.PartConfig{Kind: "view", View: "ortho"}, `invalid view "ortho"`},
		{shaux.PartConfig{Kind: "vertex"}, "no attributes"},
		{shaux.PartConfig{Kind: "vertex", Attributes: []shaux.AttributeConfig{{Name: "pos", Type: "vec5<f32>"}}}, `attribute "pos"`},
		{shaux.PartConfig{Kind: "textures", Maps: 5}, "out of range"},
		{shaux.PartConfig{Kind: "sources", Arrays: []shaux.SourceConfig{{Kind: "glow", Size: 128}}}, "out of range 1..127"},
		{shaux.PartConfig{Kind: "sources", Arrays: []shaux.SourceConfig{{Kind: "shine", Size: 1}}}, `invalid source kind "shine"`},
		{shaux.PartConfig{Kind: "spaces", Spaces: []string{"hsv"}}, `invalid space kind "hsv"`},
		{shaux.PartConfig{Kind: "group"}, "requires a name"},
		{shaux.PartConfig{Kind: "group", Name: "g", Members: []shaux.MemberConfig{{Name: "s", Type: "sampler", Array: 2}}}, "handles cannot be arrays"},
		{shaux.PartConfig{Kind: "group", Name: "g", Members: []shaux.MemberConfig{{Name: "x", Type: "f32", Array: 2, Dynamic: true}}}, "both a fixed and a dynamic"},
		{shaux.PartConfig{Kind: "group", Name: "g", Members: []shaux.MemberConfig{{Name: "flag", Type: "bool"}}}, "not host-shareable"},
		{shaux.PartConfig{Kind: "group", Name: "g", Members: []shaux.MemberConfig{{Name: "w", Type: "f32", Array: 4}}}, "multiple of 16"},
	} {
		cfg := shaux.Config{Parts: []shaux.PartConfig{{Kind: "ambient"}, tc.part}}
		_, err := cfg.Build()
		if assert.Error(t, err, tc.part.Kind) {
			assert.Contains(t, err.Error(), "part 1 ("+tc.part.Kind+")")
			assert.Contains(t, err.Error(), tc.want)
		}
	}
}

func TestEqualLines(t *testing.T) {
	assert.NoError(t, shaux.EqualLines("a\nb\n", "a\nb\n"))
	err := shaux.EqualLines("a\nb\nc\n", "a\nB\nc\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-b")
	assert.Contains(t, err.Error(), "+B")
	assert.Error(t, shaux.EqualLines("a\n", "a"))
}

func TestWriteLayout(t *testing.T) {
	layout := shbuild.Layout{
		Groups: []shbuild.GroupLayout{{
			Group: 0,
			Entries: []shbuild.LayoutEntry{{
				Binding:    1,
				Name:       "ambient",
				Kind:       shbuild.ResourceUniform,
				Type:       "vec4<f32>",
				Visibility: shbuild.StageFragment,
			}},
		}},
		Buffers: []shbuild.VertexBuffer{{
			Step:   shbuild.StepVertex,
			Stride: 12,
			Attributes: []shbuild.VertexAttribute{
				{Name: "pos", Location: 0, Format: shbuild.VectorF3},
			},
		}},
	}
	got := shaux.FormatLayout(layout)
	for _, want := range []string{
		"name: ambient",
		"binding: 1",
		"kind: uniform",
		"visibility: fragment",
		"step: vertex",
		"stride: 12",
	} {
		assert.Contains(t, got, want)
	}
}
