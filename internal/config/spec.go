package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

// TargetType selects how a target's command is run.
type TargetType string

const (
	// TypeDefault pipes rendered output into the command.
	TypeDefault TargetType = ""
	// TypeRaw runs the command without rendering anything.
	TypeRaw TargetType = "raw"
	// TypeMeta runs nothing; the target only exists for its hooks.
	TypeMeta TargetType = "meta"
)

// LoopSpec fans a target out over a sequence in the render context.
type LoopSpec struct {
	LoopData string `mapstructure:"loop_data"`
	AssignTo string `mapstructure:"assign_to"`
}

// TargetSpec is the typed view of a resolved target's parameters. Keys it does
// not name are kept in Extra and remain available to templates and commands.
type TargetSpec struct {
	InheritFrom     []string   `mapstructure:"inherit_from"`
	Command         string     `mapstructure:"command"`
	OutputFile      string     `mapstructure:"output_file"`
	JinjaTemplate   string     `mapstructure:"jinja_template"`
	LatexTemplate   string     `mapstructure:"latex_template"`
	Type            TargetType `mapstructure:"type"`
	Prebuild        []string   `mapstructure:"prebuild"`
	Postbuild       []string   `mapstructure:"postbuild"`
	Loop            *LoopSpec  `mapstructure:"loop"`
	RecursiveRender *bool      `mapstructure:"recursive_render"`
	Description     string     `mapstructure:"description"`
	Shell           *bool      `mapstructure:"shell"`
	TemplateRoot    string     `mapstructure:"mm_templates"`
	StopOpen        bool       `mapstructure:"-"`
	Abstract        bool       `mapstructure:"-"`
	DefPath         string     `mapstructure:"_defpath"`
	WorkPath        string     `mapstructure:"_workpath"`
	CfgFilePath     string     `mapstructure:"_cfg_file_path"`

	Data  DataSpec       `mapstructure:"-"`
	Extra map[string]any `mapstructure:",remain"`
}

// DoubleRender reports whether output is rendered twice. Defaults to true.
func (s *TargetSpec) DoubleRender() bool {
	return s.RecursiveRender == nil || *s.RecursiveRender
}

// UseShell reports whether the command runs through a shell. Defaults to true.
func (s *TargetSpec) UseShell() bool {
	return s.Shell == nil || *s.Shell
}

// DecodeTarget decodes and validates a target's parameter mapping.
func DecodeTarget(name string, params *cfgtree.Map) (TargetSpec, error) {
	var spec TargetSpec

	raw := params.Interface()
	delete(raw, KeyData)
	delete(raw, KeyAbstract)
	delete(raw, "stopopen")

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &spec,
	})
	if err != nil {
		return spec, err
	}
	if err := dec.Decode(raw); err != nil {
		return spec, invalidTarget(name, err.Error())
	}

	spec.Abstract = params.Has(KeyAbstract)
	spec.StopOpen = params.Has("stopopen")

	data, _ := params.Get(KeyData)
	spec.Data, err = ParseDataSpec(data)
	if err != nil {
		return spec, invalidTarget(name, err.Error())
	}

	switch spec.Type {
	case TypeDefault, TypeRaw, TypeMeta:
	default:
		return spec, invalidTarget(name, fmt.Sprintf("unknown type %q (want raw or meta)", spec.Type))
	}
	if spec.Loop != nil && (spec.Loop.LoopData == "" || spec.Loop.AssignTo == "") {
		return spec, invalidTarget(name, "loop needs both loop_data and assign_to")
	}
	return spec, nil
}

func invalidTarget(name, reason string) error {
	return ferrors.WrapError(ErrInvalidTarget, ferrors.CategoryValidation,
		fmt.Sprintf("target %q: %s", name, reason)).
		WithContext("target", name).
		Build()
}

// Source is one keyed data input.
type Source struct {
	Key string
	// Ref is a path or URL. An empty Ref yields an empty value under Key.
	Ref string
}

// DataSpec lists the inputs melded into a render context. Keyed sources keep
// their declaration order.
type DataSpec struct {
	MdFiles          []Source
	MdGlobs          []string
	YamlFiles        []Source
	YamlGlobs        []string
	YamlGlobsUnkeyed []string
	Variables        *cfgtree.Map
	GitInfo          bool
}

// Empty reports whether the spec names no inputs at all.
func (d DataSpec) Empty() bool {
	return len(d.MdFiles) == 0 && len(d.MdGlobs) == 0 && len(d.YamlFiles) == 0 &&
		len(d.YamlGlobs) == 0 && len(d.YamlGlobsUnkeyed) == 0 && d.Variables.Len() == 0 && !d.GitInfo
}

// ParseDataSpec validates a target's data mapping.
func ParseDataSpec(v cfgtree.Value) (DataSpec, error) {
	spec := DataSpec{Variables: cfgtree.NewMap()}
	if v.IsNull() {
		return spec, nil
	}
	if !v.IsMapping() {
		return spec, fmt.Errorf("data must be a mapping, got %s", v.Kind())
	}

	var err error
	v.Map().Range(func(key string, val cfgtree.Value) bool {
		switch key {
		case "md_files":
			spec.MdFiles, err = keyedSources(key, val)
		case "yaml_files":
			spec.YamlFiles, err = keyedSources(key, val)
		case "md_globs":
			spec.MdGlobs, err = patterns(key, val)
		case "yaml_globs":
			spec.YamlGlobs, err = patterns(key, val)
		case "yaml_globs_unkeyed":
			spec.YamlGlobsUnkeyed, err = patterns(key, val)
		case "variables":
			switch {
			case val.IsNull():
			case val.IsMapping():
				spec.Variables = val.Map().Clone()
			default:
				err = fmt.Errorf("data.variables must be a mapping")
			}
		case "git_info":
			b, ok := val.AsBool()
			if !ok && !val.IsNull() {
				err = fmt.Errorf("data.git_info must be a boolean")
			}
			spec.GitInfo = b
		default:
			err = fmt.Errorf("unknown data key %q", key)
		}
		return err == nil
	})
	return spec, err
}

func keyedSources(field string, v cfgtree.Value) ([]Source, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsMapping() {
		return nil, fmt.Errorf("data.%s must be a mapping of key to path", field)
	}
	var out []Source
	var err error
	v.Map().Range(func(k string, ref cfgtree.Value) bool {
		switch {
		case ref.IsNull():
			out = append(out, Source{Key: k})
		case ref.IsScalar():
			out = append(out, Source{Key: k, Ref: ref.Text()})
		default:
			err = fmt.Errorf("data.%s.%s must be a path", field, k)
		}
		return err == nil
	})
	return out, err
}

func patterns(field string, v cfgtree.Value) ([]string, error) {
	switch {
	case v.IsNull():
		return nil, nil
	case v.IsScalar():
		return []string{v.Text()}, nil
	case v.IsSequence():
		out := make([]string, 0, len(v.Items()))
		for _, it := range v.Items() {
			if !it.IsScalar() {
				return nil, fmt.Errorf("data.%s entries must be glob patterns", field)
			}
			out = append(out, it.Text())
		}
		return out, nil
	}
	return nil, fmt.Errorf("data.%s must be a list of glob patterns", field)
}
