// Package gshader compiles shader schemes into WGSL modules. A scheme lists
// the parts providing bindings and vertex inputs and two closures that build
// the vertex position and fragment color from typed expression combinators.
// Generation yields the module source and the binding layout the renderer
// must honor.
package gshader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/gshader/shbuild"
)

// Entry point names of generated modules.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// Scheme is the static description of one shader: the parts declaring its
// bindings and inputs and the closures building the stage graphs.
type Scheme struct {
	// Parts are declared in order in both stages. Reordering parts renumbers
	// bind groups and bindings accordingly.
	Parts []shbuild.Part
	// Vertex returns the clip space position of the vertex as a vec4<f32>.
	Vertex func(bld *Builder) *Expr
	// Fragment returns the color of the fragment as a vec4<f32>. Values
	// computed by the vertex stage are read through [Builder.Fragment].
	Fragment func(bld *Builder) *Expr
}

// Compiled is a generated shader module and the binding layout it expects.
type Compiled struct {
	Source string
	Layout shbuild.Layout
}

// DebugWGSL returns the generated WGSL source.
func (c *Compiled) DebugWGSL() string { return c.Source }

// Programmer generates shader modules from schemes.
type Programmer struct {
	// Logger receives a debug record per generated module. Nil disables logging.
	Logger *slog.Logger
}

// Generate compiles s with a default [Programmer]. It panics on error.
func Generate(s Scheme) *Compiled {
	var p Programmer
	return p.Generate(s)
}

// Generate compiles s. Type errors in the stage graphs and misuse of parts or
// stages panic. Generating the same scheme twice yields byte-identical output.
func (p *Programmer) Generate(s Scheme) *Compiled {
	c, err := p.generate(s)
	if err != nil {
		panic(err)
	}
	return c
}

var errMissingStage = errors.New("scheme requires vertex and fragment closures")

func (p *Programmer) generate(s Scheme) (*Compiled, error) {
	if s.Vertex == nil || s.Fragment == nil {
		return nil, errMissingStage
	}
	var bld Builder
	place := s.Vertex(&bld)
	color := s.Fragment(&bld)
	if err := bld.Err(); err != nil {
		return nil, err
	} else if place == nil || color == nil {
		return nil, errors.New("stage closure returned nil expression")
	}
	var varyings []*Expr
	shbuild.ForEachFragment(color, func(frag *Expr) {
		varyings = append(varyings, frag)
	})

	vs := shbuild.NewEntry(shbuild.StageVertex)
	for _, part := range s.Parts {
		part.Declare(vs.Declarer())
	}
	roots := make([]shbuild.Handle, 0, 1+len(varyings))
	roots = append(roots, vs.Eval(place))
	for _, v := range varyings {
		roots = append(roots, vs.Eval(v.Args[0]))
	}
	vs.Output(roots...)

	fs := shbuild.NewEntry(shbuild.StageFragment)
	for _, part := range s.Parts {
		part.Declare(fs.Declarer())
	}
	fs.SetVaryings(varyings)
	fs.Output(fs.Eval(color))

	merged, err := shbuild.Merge(vs.Out(), fs.Out())
	if err != nil {
		return nil, fmt.Errorf("merging stages: %w", err)
	}
	src, err := shbuild.Render(merged)
	if err != nil {
		return nil, fmt.Errorf("rendering module: %w", err)
	}
	c := &Compiled{Source: src, Layout: merged.Layout()}
	if p.Logger != nil {
		p.Logger.LogAttrs(context.Background(), slog.LevelDebug, "generated shader",
			slog.Int("bytes", len(src)),
			slog.Int("groups", len(c.Layout.Groups)),
			slog.Int("bindings", c.Layout.NumBindings()),
			slog.Int("varyings", len(varyings)),
		)
	}
	return c, nil
}
