//go:build !tinygo && cgo

package shcheck

import (
	"fmt"

	"github.com/gogpu/naga/glsl"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

// Init1x1GLFW starts a 1x1 sized GLFW window so that shaders can be compiled by the driver.
// It returns a termination function that should be called when done.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "shcheck",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// CompileGL translates the vertex and fragment entry points of src to GLSL
// 4.30 and links them with the OpenGL driver of the current context.
func CompileGL(src, vertexEntry, fragmentEntry string) error {
	vs, err := GLSL(src, vertexEntry, glsl.Version430)
	if err != nil {
		return err
	}
	fs, err := GLSL(src, fragmentEntry, glsl.Version430)
	if err != nil {
		return err
	}
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   vs + "\x00",
		Fragment: fs + "\x00",
	})
	if err != nil {
		return fmt.Errorf("%s\n\n%s\n\n%w", vs, fs, err)
	}
	prog.Delete()
	return nil
}
