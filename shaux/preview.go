//go:build !tinygo && cgo

package shaux

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/naga/glsl"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/gshader"
	"github.com/soypat/gshader/shbuild"
	"github.com/soypat/gshader/shcheck"
)

func preview(c *gshader.Compiled, cfg PreviewConfig) error {
	vs, err := shcheck.GLSL(c.Source, gshader.VertexEntryPoint, glsl.Version430)
	if err != nil {
		return err
	}
	fs, err := shcheck.GLSL(c.Source, gshader.FragmentEntryPoint, glsl.Version430)
	if err != nil {
		return err
	}
	window, term, err := startGLFW(cfg.Width, cfg.Height, cfg.Title)
	if err != nil {
		return err
	}
	defer term()
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   vs + "\x00",
		Fragment: fs + "\x00",
	})
	if err != nil {
		return fmt.Errorf("%s\n\n%s\n\n%w", vs, fs, err)
	}
	defer prog.Delete()
	prog.Bind()

	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	count := int32(cfg.Count)
	if len(c.Layout.Buffers) > 0 && c.Layout.Buffers[0].Step == shbuild.StepVertex {
		buf := c.Layout.Buffers[0]
		if len(cfg.Vertices) == 0 || (4*len(cfg.Vertices))%buf.Stride != 0 {
			return errors.New("vertex data does not fit the vertex buffer layout")
		}
		var vbo uint32
		gl.GenBuffers(1, &vbo)
		gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
		gl.BufferData(gl.ARRAY_BUFFER, 4*len(cfg.Vertices), gl.Ptr(cfg.Vertices), gl.STATIC_DRAW)
		for _, a := range buf.Attributes {
			v := a.Format.Value()
			gl.EnableVertexAttribArray(a.Location)
			switch v.Scalar() {
			case shbuild.KindFloat:
				gl.VertexAttribPointer(a.Location, int32(v.Len()), gl.FLOAT, false, int32(buf.Stride), gl.PtrOffset(a.Offset))
			case shbuild.KindSint:
				gl.VertexAttribIPointer(a.Location, int32(v.Len()), gl.INT, int32(buf.Stride), gl.PtrOffset(a.Offset))
			case shbuild.KindUint:
				gl.VertexAttribIPointer(a.Location, int32(v.Len()), gl.UNSIGNED_INT, int32(buf.Stride), gl.PtrOffset(a.Offset))
			}
		}
		count = int32(4 * len(cfg.Vertices) / buf.Stride)
	}
	if count <= 0 {
		return errors.New("nothing to draw")
	}
	for !window.ShouldClose() {
		gl.ClearColor(0, 0, 0, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.DrawArrays(gl.TRIANGLES, 0, count)
		window.SwapBuffers()
		glfw.PollEvents()
	}
	return nil
}

func startGLFW(width, height int, title string) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.False)

	window, err = glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
