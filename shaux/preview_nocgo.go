//go:build tinygo || !cgo

package shaux

import (
	"errors"

	"github.com/soypat/gshader"
)

func preview(c *gshader.Compiled, cfg PreviewConfig) error {
	return errors.New("require cgo for shader preview")
}
