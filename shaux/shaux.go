// Package shaux provides tooling around generated shaders: declarative scheme
// configuration, golden file comparison, layout dumps and a live preview.
package shaux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/soypat/gshader"
	"github.com/soypat/gshader/shbuild"
	"gopkg.in/yaml.v3"
)

// EqualLines compares got against want line by line without normalising
// whitespace. It returns nil when they are identical and an error holding a
// unified diff otherwise.
func EqualLines(want, got string) error {
	if want == got {
		return nil
	}
	var buf bytes.Buffer
	err := difflib.WriteUnifiedDiff(&buf, difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		return err
	}
	if buf.Len() == 0 {
		// Only difference is a missing trailing newline.
		return errors.New("mismatch in trailing newline")
	}
	return errors.New(buf.String())
}

// WriteLayout writes the binding layout as YAML.
func WriteLayout(w io.Writer, layout shbuild.Layout) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(layout); err != nil {
		return fmt.Errorf("encoding layout: %w", err)
	}
	return enc.Close()
}

// FormatLayout returns the YAML dump of layout.
func FormatLayout(layout shbuild.Layout) string {
	var sb strings.Builder
	if err := WriteLayout(&sb, layout); err != nil {
		panic(err)
	}
	return sb.String()
}

// PreviewConfig configures [Preview].
type PreviewConfig struct {
	Width, Height int
	Title         string
	// Vertices holds the interleaved data of the vertex-step buffer, laid out
	// as described by the compiled layout. Instance buffers and bind groups are
	// left unbound.
	Vertices []float32
	// Count is the number of vertices drawn when the shader reads no vertex buffer.
	Count int
}

// Preview opens a window drawing the compiled shader as a triangle list until
// the window is closed. The module is translated to GLSL and run on OpenGL.
// It must be called from the main thread. It requires cgo.
func Preview(c *gshader.Compiled, cfg PreviewConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 800, 600
	}
	if cfg.Title == "" {
		cfg.Title = "gshader preview"
	}
	return preview(c, cfg)
}
