// Package shcheck validates generated WGSL modules with the naga shader
// compiler and translates them to SPIR-V and GLSL.
package shcheck

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// Module parses src and lowers it to the naga intermediate representation.
func Module(src string) (*ir.Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("lowering: %w", err)
	}
	return module, nil
}

// Validate parses src and runs IR validation on it. All validation failures
// are joined in the returned error.
func Validate(src string) error {
	module, err := Module(src)
	if err != nil {
		return err
	}
	return validate(module)
}

func validate(module *ir.Module) error {
	verrs, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("validating: %w", err)
	}
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i := range verrs {
		errs[i] = &verrs[i]
	}
	return errors.Join(errs...)
}

// EntryPoints returns the names of the entry points declared in src.
func EntryPoints(src string) ([]string, error) {
	module, err := Module(src)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(module.EntryPoints))
	for i, ep := range module.EntryPoints {
		names[i] = ep.Name
	}
	return names, nil
}

// SPIRV validates src and compiles it to a SPIR-V 1.3 binary.
func SPIRV(src string) ([]byte, error) {
	module, err := Module(src)
	if err != nil {
		return nil, err
	}
	if err = validate(module); err != nil {
		return nil, err
	}
	return naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
}

// GLSL translates the entry point of src to GLSL of the given version.
// A zero version selects GLSL 3.30.
func GLSL(src, entryPoint string, version glsl.Version) (string, error) {
	module, err := Module(src)
	if err != nil {
		return "", err
	}
	code, _, err := glsl.Compile(module, glsl.Options{
		LangVersion: version,
		EntryPoint:  entryPoint,
	})
	if err != nil {
		return "", fmt.Errorf("translating %s to GLSL: %w", entryPoint, err)
	}
	return code, nil
}
