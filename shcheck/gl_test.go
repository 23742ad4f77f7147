//go:build !tinygo && cgo

package shcheck_test

import (
	"log"
	"os"
	"runtime"
	"testing"

	"github.com/soypat/gshader/shcheck"
)

var glContext bool

func TestMain(m *testing.M) {
	runtime.LockOSThread()
	term, err := shcheck.Init1x1GLFW()
	if err != nil {
		log.Println("no OpenGL context, skipping driver tests:", err)
	} else {
		glContext = true
	}
	code := m.Run()
	if term != nil {
		term()
	}
	runtime.UnlockOSThread()
	os.Exit(code)
}

func TestCompileGL(t *testing.T) {
	if !glContext {
		t.Skip("no OpenGL context")
	}
	err := shcheck.CompileGL(triangle, "vs_main", "fs_main")
	if err != nil {
		t.Fatal(err)
	}
}
