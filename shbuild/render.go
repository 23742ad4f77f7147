package shbuild

import (
	"bytes"
	"errors"
	"math"
	"strconv"

	"github.com/soypat/gshader/shbuild/wgsllib"
)

// Names of the stage output declarations.
const (
	VertexOutputName   = "VertexOutput"
	FragmentOutputName = "FragmentOutput"
)

const (
	vertexOutParam = "vertex_out"
	vertexOutVar   = "out"
	indent         = "    "
)

var (
	errNoOutput  = errors.New("stage output not set")
	errNotMerged = errors.New("render requires the output of Merge")
)

// Render renders the WGSL module of stage outputs joined by [Merge].
// Declarations are rendered in write order, vertex stage declarations first.
// Rendering the same outputs always yields the same text.
func Render(merged *Out) (string, error) {
	if merged == nil || merged.stages[0] == nil || merged.stages[1] == nil {
		return "", errNotMerged
	}
	vs, fs := merged.stages[0], merged.stages[1]
	if len(vs.Roots) == 0 || len(fs.Roots) == 0 {
		return "", errNoOutput
	}
	var decls []byte
	for i := range merged.Decls {
		decls = appendDecl(decls, &merged.Decls[i])
	}
	params := appendVertexParams(nil, merged, vs.Builtins)

	vsBody := vs.appendBlock(nil, vs.body, 1)
	vsBody = append(vsBody, indent+"var "+vertexOutVar+": "+VertexOutputName+";\n"...)
	out := vs.Lookup(DeclOutput, VertexOutputName)
	for i, root := range vs.Roots {
		vsBody = append(vsBody, indent+vertexOutVar+"."...)
		vsBody = append(vsBody, out.Fields[i].Name...)
		vsBody = append(vsBody, " = "...)
		vsBody = vs.appendRef(vsBody, root)
		vsBody = append(vsBody, ";\n"...)
	}
	vsBody = append(vsBody, indent+"return "+vertexOutVar+";\n"...)

	fsBody := fs.appendBlock(nil, fs.body, 1)
	fsBody = append(fsBody, indent+"return "...)
	fsBody = fs.appendRef(fsBody, fs.Roots[0])
	fsBody = append(fsBody, ";\n"...)

	return wgsllib.Module(string(decls), string(params), string(vsBody), string(fsBody))
}

func appendDecl(b []byte, d *Decl) []byte {
	switch d.Kind {
	case DeclStruct:
		b = appendStruct(b, d.Name, d.Fields, false)
	case DeclInput:
		b = appendStruct(b, d.Name, d.Fields, true)
	case DeclOutput:
		if d.Name != VertexOutputName {
			return b // The fragment output is the entry point result.
		}
		b = appendStruct(b, d.Name, d.Fields, true)
	case DeclVar:
		b = append(b, d.Binding.String()...)
		b = append(b, " var"...)
		switch d.Space {
		case SpaceUniform:
			b = append(b, "<uniform>"...)
		case SpaceStorage:
			b = append(b, "<storage, read>"...)
		}
		b = append(b, ' ')
		b = append(b, d.Name...)
		b = append(b, ": "...)
		b = append(b, d.Type...)
		b = append(b, ";\n"...)
	case DeclFunc:
		b = append(b, d.Source...)
		if len(d.Source) > 0 && d.Source[len(d.Source)-1] != '\n' {
			b = append(b, '\n')
		}
	}
	return append(b, '\n')
}

func appendStruct(b []byte, name string, fields []Field, io bool) []byte {
	b = append(b, "struct "...)
	b = append(b, name...)
	b = append(b, " {\n"...)
	for _, f := range fields {
		b = append(b, indent...)
		if io {
			if f.Builtin != "" {
				b = append(b, "@builtin("...)
				b = append(b, f.Builtin...)
				b = append(b, ") "...)
			} else {
				b = append(b, "@location("...)
				b = strconv.AppendUint(b, uint64(f.Location), 10)
				b = append(b, ") "...)
				if f.Flat {
					b = append(b, "@interpolate(flat) "...)
				}
			}
		}
		b = append(b, f.Name...)
		b = append(b, ": "...)
		b = append(b, f.Type...)
		b = append(b, ",\n"...)
	}
	return append(b, "}\n"...)
}

func appendVertexParams(b []byte, merged *Out, builtins []string) []byte {
	first := true
	sep := func() {
		if !first {
			b = append(b, ", "...)
		}
		first = false
	}
	for _, d := range merged.Decls {
		if d.Kind == DeclInput {
			sep()
			b = append(b, d.Param...)
			b = append(b, ": "...)
			b = append(b, d.Name...)
		}
	}
	for _, name := range builtins {
		sep()
		b = append(b, "@builtin("...)
		b = append(b, name...)
		b = append(b, ") "...)
		b = append(b, name...)
		b = append(b, ": u32"...)
	}
	return b
}

func (o *Out) appendBlock(b []byte, block []statement, depth int) []byte {
	for _, st := range block {
		b = appendIndent(b, depth)
		switch st.kind {
		case stmtLet:
			b = append(b, "let "...)
			b = appendName(b, st.value)
			b = append(b, " = "...)
			b = o.appendDef(b, st.value)
		case stmtVar:
			b = append(b, "var "...)
			b = appendName(b, st.value)
			b = append(b, ": "...)
			b = o.store.Get(st.value).Type.AppendWGSL(b)
		case stmtStore:
			b = appendName(b, st.value)
			b = append(b, " = "...)
			b = o.appendRef(b, st.src)
		case stmtKill:
			b = append(b, "discard"...)
		case stmtIf:
			b = append(b, "if "...)
			b = o.appendRef(b, st.src)
			b = append(b, " {\n"...)
			b = o.appendBlock(b, st.then, depth+1)
			b = appendIndent(b, depth)
			b = append(b, '}')
			if len(st.els) > 0 {
				b = append(b, " else {\n"...)
				b = o.appendBlock(b, st.els, depth+1)
				b = appendIndent(b, depth)
				b = append(b, '}')
			}
			b = append(b, '\n')
			continue
		}
		b = append(b, ";\n"...)
	}
	return b
}

func appendIndent(b []byte, depth int) []byte {
	for i := 0; i < depth; i++ {
		b = append(b, indent...)
	}
	return b
}

func appendName(b []byte, h Handle) []byte {
	b = append(b, 'v')
	return strconv.AppendUint(b, uint64(h), 10)
}

// appendRef appends the expression referring to the value of h. Named nodes
// are referred to by their identifier, leaves are rendered in place.
func (o *Out) appendRef(b []byte, h Handle) []byte {
	n := o.store.Get(h)
	if n.named {
		return appendName(b, h)
	}
	switch n.Op {
	case OpLiteral:
		return appendLiteral(b, n.Type.Scalar(), n.Lit)
	case OpZero, OpDiscard:
		return n.Type.AppendZero(b)
	case OpGlobal:
		b = append(b, n.Name...)
		if len(n.Args) > 0 {
			b = append(b, '[')
			b = o.appendRef(b, n.Args[0])
			b = append(b, ']')
		}
		if n.Field != "" {
			b = append(b, '.')
			b = append(b, n.Field...)
		}
		return b
	case OpInput:
		b = append(b, n.Name...)
		b = append(b, '.')
		return append(b, n.Field...)
	case OpBuiltin:
		return append(b, n.Name...)
	case OpFragment:
		b = append(b, vertexOutParam+"."...)
		return append(b, n.Field...)
	}
	panic("unnamed " + n.Op.String() + " node")
}

// appendDef appends the expression computing the value of the named node h.
func (o *Out) appendDef(b []byte, h Handle) []byte {
	n := o.store.Get(h)
	switch n.Op {
	case OpBinary:
		b = o.appendRef(b, n.Args[0])
		b = append(b, ' ')
		b = append(b, n.Binary.String()...)
		b = append(b, ' ')
		return o.appendRef(b, n.Args[1])
	case OpUnary:
		b = append(b, n.Unary.String()...)
		b = append(b, '(')
		b = o.appendRef(b, n.Args[0])
		return append(b, ')')
	case OpCompose, OpSplat, OpConvert:
		b = n.Type.AppendWGSL(b)
		return o.appendArgs(b, n.Args)
	case OpSwizzle:
		b = o.appendRef(b, n.Args[0])
		b = append(b, '.')
		for _, c := range n.Components {
			b = append(b, "xyzw"[c])
		}
		return b
	case OpMath:
		b = append(b, n.Math.String()...)
		return o.appendArgs(b, n.Args)
	case OpSample:
		if len(n.Args) > 1 {
			b = append(b, "textureSampleLevel("...)
		} else {
			b = append(b, "textureSample("...)
		}
		b = append(b, n.Resources[0].Name...)
		b = append(b, ", "...)
		b = append(b, n.Resources[1].Name...)
		for _, arg := range n.Args {
			b = append(b, ", "...)
			b = o.appendRef(b, arg)
		}
		return append(b, ')')
	case OpCall:
		b = append(b, n.Name...)
		return o.appendArgs(b, n.Args)
	}
	panic("cannot define " + n.Op.String() + " node")
}

func (o *Out) appendArgs(b []byte, args []Handle) []byte {
	b = append(b, '(')
	for i, arg := range args {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = o.appendRef(b, arg)
	}
	return append(b, ')')
}

func appendLiteral(b []byte, k ScalarKind, v float64) []byte {
	switch k {
	case KindFloat:
		return AppendFloat(b, float32(v))
	case KindSint:
		if int32(v) == math.MinInt32 {
			// No negative literals in WGSL and 2147483648i is out of range.
			return append(b, "(-2147483647i - 1i)"...)
		}
		b = strconv.AppendInt(b, int64(v), 10)
		return append(b, 'i')
	case KindUint:
		b = strconv.AppendUint(b, uint64(v), 10)
		return append(b, 'u')
	}
	return strconv.AppendBool(b, v != 0)
}

// AppendFloat appends the shortest decimal representation of v that reads
// back as the same f32. Integral values are written with a trailing ".0"
// so the literal is never taken for an integer.
func AppendFloat(b []byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', -1, 32)
	if bytes.IndexByte(b[start:], '.') < 0 {
		b = append(b, ".0"...)
	}
	return b
}

// ColumnMajor appends the elements of a rows×cols matrix stored in row-major
// order to dst in the column order taken by WGSL matrix constructors.
func ColumnMajor(dst, rowMajor []float32, rows, cols int) []float32 {
	if len(rowMajor) != rows*cols {
		panic("matrix element count mismatch")
	}
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			dst = append(dst, rowMajor[r*cols+c])
		}
	}
	return dst
}
