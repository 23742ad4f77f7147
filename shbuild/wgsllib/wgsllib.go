// Package wgsllib holds the WGSL templates used to assemble shader modules
// and the helper functions declared by parts.
package wgsllib

import (
	_ "embed"

	"github.com/soypat/gshader/templater"
)

//go:embed shader.wgsl
var shaderSrc string

// Keys of the module template.
const (
	KeyDeclarations = "declarations"
	KeyVertexParams = "vs_params"
	KeyVertexBody   = "vs_body"
	KeyFragmentBody = "fs_body"
)

// Module renders the shader module skeleton with the vs_main and fs_main
// entry points. Bodies must be indented and newline terminated.
func Module(declarations, vsParams, vsBody, fsBody string) (string, error) {
	return templater.New().
		Insert(KeyDeclarations, declarations).
		Insert(KeyVertexParams, vsParams).
		Insert(KeyVertexBody, vsBody).
		Insert(KeyFragmentBody, fsBody).
		Format(shaderSrc)
}

//go:embed sources.wgsl
var sourcesSrc string

// SourceArray selects a light source array of the sources_light helper.
type SourceArray struct {
	// N is the index of the sources_array_N and sources_len_N variables.
	N int
	// Gloom sources darken instead of lighting.
	Gloom bool
}

// SourcesLight renders the helper accumulating the light of the source arrays at a world position:
//
//	fn sources_light(world: vec3<f32>) -> vec3<f32>
//
// With ambient set gloom sources are tinted by the ambient uniform.
func SourcesLight(arrays []SourceArray, ambient bool) string {
	return templater.New().
		Insert("arrays", arrays).
		Insert("ambient", ambient).
		MustFormat(sourcesSrc)
}

//go:embed post.wgsl
var postSrc string

// PostColor renders the post-processing helper reading the post_tmap texture:
//
//	fn post_color(uv: vec2<f32>) -> vec4<f32>
func PostColor(antialiasing, vignette bool) string {
	return templater.New().
		Insert("antialiasing", antialiasing).
		Insert("vignette", vignette).
		MustFormat(postSrc)
}
