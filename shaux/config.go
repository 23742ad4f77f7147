package shaux

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/gshader/parts"
	"github.com/soypat/gshader/shbuild"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a declarative scheme.
type Format uint8

const (
	FormatTOML Format = iota + 1
	FormatYAML
)

// FormatFromPath returns the format implied by the file extension of path.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("unknown scheme format for %q", path)
}

// Config is the declarative description of the parts of a scheme. Parts are
// declared in list order.
type Config struct {
	Parts []PartConfig `toml:"parts" yaml:"parts"`
}

// PartConfig configures one part. Kind selects the part and the fields that apply to it:
//
//	ambient
//	view:      view ("none" or "camera")
//	vertex:    attributes
//	instance:  attributes, or model = true for the r0..r3 model matrix rows
//	textures:  maps, threshold
//	sources:   arrays
//	spaces:    spaces ("rgba" or "gray")
//	group:     name, members
//	post:      antialiasing, vignette
type PartConfig struct {
	Kind string `toml:"kind" yaml:"kind"`

	View         string            `toml:"view,omitempty" yaml:"view,omitempty"`
	Attributes   []AttributeConfig `toml:"attributes,omitempty" yaml:"attributes,omitempty"`
	Model        bool              `toml:"model,omitempty" yaml:"model,omitempty"`
	Maps         int               `toml:"maps,omitempty" yaml:"maps,omitempty"`
	Threshold    float32           `toml:"threshold,omitempty" yaml:"threshold,omitempty"`
	Arrays       []SourceConfig    `toml:"arrays,omitempty" yaml:"arrays,omitempty"`
	Spaces       []string          `toml:"spaces,omitempty" yaml:"spaces,omitempty"`
	Name         string            `toml:"name,omitempty" yaml:"name,omitempty"`
	Members      []MemberConfig    `toml:"members,omitempty" yaml:"members,omitempty"`
	Antialiasing bool              `toml:"antialiasing,omitempty" yaml:"antialiasing,omitempty"`
	Vignette     bool              `toml:"vignette,omitempty" yaml:"vignette,omitempty"`
}

// AttributeConfig is a vertex or instance attribute such as {name = "pos", type = "vec3<f32>"}.
type AttributeConfig struct {
	Name string `toml:"name" yaml:"name"`
	Type string `toml:"type" yaml:"type"`
}

// SourceConfig is a light source array.
type SourceConfig struct {
	Kind string `toml:"kind" yaml:"kind"` // "glow" or "gloom".
	Size int    `toml:"size" yaml:"size"`
}

// MemberConfig is a member of a user defined group. Type is a WGSL value type
// or one of texture_2d, texture_3d and sampler. A positive Array makes the
// member a fixed size array and Dynamic a runtime sized storage array.
type MemberConfig struct {
	Name    string `toml:"name" yaml:"name"`
	Type    string `toml:"type" yaml:"type"`
	Array   int    `toml:"array,omitempty" yaml:"array,omitempty"`
	Dynamic bool   `toml:"dynamic,omitempty" yaml:"dynamic,omitempty"`
}

// LoadScheme decodes a scheme configuration. Fields not defined by [Config] are errors.
func LoadScheme(r io.Reader, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r).DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, fmt.Errorf("decoding TOML scheme: %s", strict.String())
			}
			return nil, fmt.Errorf("decoding TOML scheme: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decoding YAML scheme: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid scheme format %d", format)
	}
	return &cfg, nil
}

// LoadSchemeFile decodes the scheme configuration file at path. The format is
// chosen by the file extension.
func LoadSchemeFile(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return LoadScheme(fp, format)
}

// Build returns the configured parts in order.
func (c *Config) Build() ([]shbuild.Part, error) {
	ps := make([]shbuild.Part, len(c.Parts))
	for i := range c.Parts {
		p, err := c.Parts[i].part()
		if err != nil {
			return nil, fmt.Errorf("part %d (%s): %w", i, c.Parts[i].Kind, err)
		}
		ps[i] = p
	}
	return ps, nil
}

func (pc *PartConfig) part() (shbuild.Part, error) {
	switch pc.Kind {
	case "ambient":
		return &parts.Ambient{}, nil

	case "view":
		switch pc.View {
		case "", "none":
			return &parts.View{Kind: parts.ViewNone}, nil
		case "camera":
			return &parts.View{Kind: parts.ViewCamera}, nil
		}
		return nil, fmt.Errorf("invalid view %q", pc.View)

	case "vertex":
		attrs, err := attributes(pc.Attributes)
		if err != nil {
			return nil, err
		}
		return &parts.Vertex{Fields: attrs}, nil

	case "instance":
		if pc.Model {
			if len(pc.Attributes) > 0 {
				return nil, errors.New("model instance takes no attributes")
			}
			return parts.ModelInstance(), nil
		}
		attrs, err := attributes(pc.Attributes)
		if err != nil {
			return nil, err
		}
		return &parts.Instance{Rows: attrs}, nil

	case "textures":
		if pc.Maps < 0 || pc.Maps > parts.MaxTextureMaps {
			return nil, fmt.Errorf("texture maps %d out of range 0..%d", pc.Maps, parts.MaxTextureMaps)
		} else if pc.Threshold < 0 {
			return nil, errors.New("negative texture threshold")
		}
		return &parts.Textures{N: pc.Maps, Threshold: pc.Threshold}, nil

	case "sources":
		if len(pc.Arrays) > parts.MaxSourceArrays {
			return nil, fmt.Errorf("%d source arrays exceed limit of %d", len(pc.Arrays), parts.MaxSourceArrays)
		}
		arrays := make([]parts.SourceArray, len(pc.Arrays))
		for i, a := range pc.Arrays {
			switch a.Kind {
			case "glow":
				arrays[i].Kind = parts.Glow
			case "gloom":
				arrays[i].Kind = parts.Gloom
			default:
				return nil, fmt.Errorf("invalid source kind %q", a.Kind)
			}
			if a.Size < 1 || a.Size > parts.MaxSourceSize {
				return nil, fmt.Errorf("source array size %d out of range 1..%d", a.Size, parts.MaxSourceSize)
			}
			arrays[i].Size = a.Size
		}
		return &parts.Sources{Arrays: arrays}, nil

	case "spaces":
		if len(pc.Spaces) > parts.MaxSpaces {
			return nil, fmt.Errorf("%d light spaces exceed limit of %d", len(pc.Spaces), parts.MaxSpaces)
		}
		kinds := make([]parts.SpaceKind, len(pc.Spaces))
		for i, s := range pc.Spaces {
			switch s {
			case "rgba":
				kinds[i] = parts.SpaceRgba
			case "gray":
				kinds[i] = parts.SpaceGray
			default:
				return nil, fmt.Errorf("invalid space kind %q", s)
			}
		}
		return &parts.Spaces{Kinds: kinds}, nil

	case "group":
		if pc.Name == "" {
			return nil, errors.New("group requires a name")
		}
		g := &parts.Group{Name: pc.Name}
		for _, m := range pc.Members {
			mt, err := m.memberType()
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", m.Name, err)
			}
			g.Members = append(g.Members, parts.Member{Name: m.Name, Type: mt})
		}
		return g, nil

	case "post":
		return &parts.Post{Antialiasing: pc.Antialiasing, Vignette: pc.Vignette}, nil
	}
	return nil, fmt.Errorf("unknown part kind %q", pc.Kind)
}

func attributes(cfgs []AttributeConfig) ([]shbuild.Attribute, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("no attributes")
	}
	attrs := make([]shbuild.Attribute, len(cfgs))
	for i, a := range cfgs {
		vt, err := shbuild.ParseVectorType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		attrs[i] = shbuild.Attribute{Name: a.Name, Attr: vt}
	}
	return attrs, nil
}

func (m *MemberConfig) memberType() (shbuild.MemberType, error) {
	handle := m.Type == "texture_2d" || m.Type == "texture_3d" || m.Type == "sampler"
	if handle && (m.Array != 0 || m.Dynamic) {
		return shbuild.MemberType{}, errors.New("handles cannot be arrays")
	}
	switch m.Type {
	case "texture_2d":
		return shbuild.MemberTexture2D, nil
	case "texture_3d":
		return shbuild.MemberTexture3D, nil
	case "sampler":
		return shbuild.MemberSampler, nil
	}
	t, err := shbuild.ParseValueType(m.Type)
	if err != nil {
		return shbuild.MemberType{}, err
	}
	var mt shbuild.MemberType
	switch {
	case m.Dynamic && m.Array != 0:
		return shbuild.MemberType{}, errors.New("member cannot be both a fixed and a dynamic array")
	case m.Dynamic:
		mt = shbuild.MemberDynamicArray(t)
	case m.Array < 0:
		return shbuild.MemberType{}, fmt.Errorf("negative array size %d", m.Array)
	case m.Array > 0:
		mt = shbuild.MemberArray(t, m.Array)
	default:
		mt = shbuild.MemberValue(t)
	}
	return mt, mt.Validate()
}
