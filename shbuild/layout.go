package shbuild

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/gogpu/gputypes"
)

// ResourceKind is the kind of resource attached to a binding slot.
type ResourceKind uint8

const (
	ResourceUniform ResourceKind = iota
	ResourceStorage
	ResourceTexture2D
	ResourceTexture3D
	ResourceSampler
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceUniform:
		return "uniform"
	case ResourceStorage:
		return "storage"
	case ResourceTexture2D:
		return "texture_2d"
	case ResourceTexture3D:
		return "texture_3d"
	case ResourceSampler:
		return "sampler"
	}
	return "ResourceKind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText implements encoding.TextMarshaler so layouts dump with readable kinds.
func (k ResourceKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// StepMode selects whether a vertex buffer advances per vertex or per instance.
type StepMode uint8

const (
	StepVertex StepMode = iota
	StepInstance
)

func (s StepMode) String() string {
	if s == StepInstance {
		return "instance"
	}
	return "vertex"
}

func (s StepMode) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// LayoutEntry is one binding slot of a bind group.
type LayoutEntry struct {
	Binding uint32       `yaml:"binding"`
	Name    string       `yaml:"name"`
	Kind    ResourceKind `yaml:"kind"`
	// Type is the WGSL type of the bound variable.
	Type       string `yaml:"type"`
	Visibility Stage  `yaml:"visibility"`
}

// GroupLayout lists the bindings of one bind group in increasing binding order.
type GroupLayout struct {
	Group   uint32        `yaml:"group"`
	Entries []LayoutEntry `yaml:"entries"`
}

// VertexAttribute is a single field of a vertex or instance buffer.
type VertexAttribute struct {
	Name     string     `yaml:"name"`
	Location uint32     `yaml:"location"`
	Format   VectorType `yaml:"format"`
	Offset   int        `yaml:"offset"`
}

// VertexBuffer describes the memory layout of a vertex or instance buffer.
type VertexBuffer struct {
	Step       StepMode          `yaml:"step"`
	Stride     int               `yaml:"stride"`
	Attributes []VertexAttribute `yaml:"attributes"`
}

// Layout is the binding schema of a compiled shader. The rendering layer
// must bind resources exactly at the group and binding numbers listed here.
type Layout struct {
	Groups  []GroupLayout  `yaml:"groups"`
	Buffers []VertexBuffer `yaml:"buffers"`
}

// NumBindings returns the total number of binding slots across all groups.
func (l *Layout) NumBindings() (n int) {
	for _, g := range l.Groups {
		n += len(g.Entries)
	}
	return n
}

// Lookup returns the group and binding numbers of the variable name.
func (l *Layout) Lookup(name string) (group, binding uint32, ok bool) {
	for _, g := range l.Groups {
		for _, e := range g.Entries {
			if e.Name == name {
				return g.Group, e.Binding, true
			}
		}
	}
	return 0, 0, false
}

// BindGroupLayoutEntries converts the group to the entries used to create a
// bind group layout on the device.
func (g GroupLayout) BindGroupLayoutEntries() []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, len(g.Entries))
	for i, e := range g.Entries {
		entry := gputypes.BindGroupLayoutEntry{Binding: e.Binding}
		if e.Visibility.Has(StageVertex) {
			entry.Visibility |= gputypes.ShaderStageVertex
		}
		if e.Visibility.Has(StageFragment) {
			entry.Visibility |= gputypes.ShaderStageFragment
		}
		switch e.Kind {
		case ResourceUniform:
			entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case ResourceStorage:
			entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
		case ResourceTexture2D:
			entry.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case ResourceTexture3D:
			entry.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension3D,
			}
		case ResourceSampler:
			entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
		default:
			panic("invalid resource kind " + e.Kind.String())
		}
		entries[i] = entry
	}
	return entries
}

// VertexBufferLayouts converts the vertex and instance buffers to the layouts
// used to create a render pipeline. Buffer slots follow the order of l.Buffers.
func (l *Layout) VertexBufferLayouts() []gputypes.VertexBufferLayout {
	layouts := make([]gputypes.VertexBufferLayout, len(l.Buffers))
	for i, buf := range l.Buffers {
		step := gputypes.VertexStepModeVertex
		if buf.Step == StepInstance {
			step = gputypes.VertexStepModeInstance
		}
		attrs := make([]gputypes.VertexAttribute, len(buf.Attributes))
		for j, a := range buf.Attributes {
			attrs[j] = gputypes.VertexAttribute{
				Format:         a.Format.Format(),
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			}
		}
		layouts[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(buf.Stride),
			StepMode:    step,
			Attributes:  attrs,
		}
	}
	return layouts
}

// layoutOf builds the binding schema from a merged stage output. Groups and
// their entries are sorted by number.
func layoutOf(o *Out) Layout {
	var l Layout
	groupIdx := make(map[uint32]int)
	for _, d := range o.Decls {
		switch d.Kind {
		case DeclVar:
			idx, ok := groupIdx[d.Binding.Group]
			if !ok {
				idx = len(l.Groups)
				groupIdx[d.Binding.Group] = idx
				l.Groups = append(l.Groups, GroupLayout{Group: d.Binding.Group})
			}
			vis := d.Stages
			if vis == 0 {
				vis = StagesAll // Declared by a part but never read.
			}
			l.Groups[idx].Entries = append(l.Groups[idx].Entries, LayoutEntry{
				Binding:    d.Binding.Num,
				Name:       d.Name,
				Kind:       d.Resource,
				Type:       d.Type,
				Visibility: vis,
			})
		case DeclInput:
			buf := VertexBuffer{Step: d.Step}
			offset := 0
			for _, f := range d.Fields {
				buf.Attributes = append(buf.Attributes, VertexAttribute{
					Name:     f.Name,
					Location: f.Location,
					Format:   f.Attr,
					Offset:   offset,
				})
				offset += f.Attr.Size()
			}
			buf.Stride = offset
			l.Buffers = append(l.Buffers, buf)
		}
	}
	slices.SortFunc(l.Groups, func(a, b GroupLayout) int { return cmp.Compare(a.Group, b.Group) })
	for _, g := range l.Groups {
		slices.SortFunc(g.Entries, func(a, b LayoutEntry) int { return cmp.Compare(a.Binding, b.Binding) })
	}
	return l
}
