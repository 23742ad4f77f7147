//go:build tinygo || !cgo

package shcheck

import "errors"

var errNoCGO = errors.New("OpenGL compilation requires CGo and is not supported on TinyGo")

func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

func CompileGL(src, vertexEntry, fragmentEntry string) error {
	return errNoCGO
}
