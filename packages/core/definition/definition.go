package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/fetchforge/packages/core/env"
	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

var (
	// ErrUnknownFragment is returned when a request lists a name that is
	// neither a fragment nor a request.
	ErrUnknownFragment = errors.New("unknown fragment or request")
	// ErrUnknownRequest is returned by Request for undeclared names.
	ErrUnknownRequest = errors.New("unknown request")
	// ErrDuplicateName is returned when a name is declared as both a
	// fragment and a request.
	ErrDuplicateName = errors.New("name declared as both fragment and request")
)

// Args are the per-request arguments placeholders are resolved against.
type Args map[string]string

// File is the YAML layout of a definition file.
type File struct {
	Origin    string                  `yaml:"origin,omitempty"`
	Fragments map[string]FragmentSpec `yaml:"fragments"`
	Requests  map[string][]string     `yaml:"requests"`
}

// FragmentSpec is one declared fragment. Body and Form are exclusive.
type FragmentSpec struct {
	URL     string                `yaml:"url,omitempty"`
	Method  string                `yaml:"method,omitempty"`
	Headers map[string]StringList `yaml:"headers,omitempty"`
	Params  map[string]StringList `yaml:"params,omitempty"`
	Body    map[string]any        `yaml:"body,omitempty"`
	Form    []FormFieldSpec       `yaml:"form,omitempty"`
}

// FormFieldSpec is one multipart field: a text value, or a file read from
// disk when File is set.
type FormFieldSpec struct {
	Name        string `yaml:"name"`
	Value       string `yaml:"value,omitempty"`
	File        string `yaml:"file,omitempty"`
	ContentType string `yaml:"contentType,omitempty"`
}

// StringList accepts either a scalar or a sequence of scalars.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*s = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// Definition is a loaded definition file.
type Definition struct {
	Path   string
	Origin string

	file      File
	fragments map[string]*forge.Fragment[Args]
	requests  map[string]*forge.Builder[Args]
	resolver  *env.Resolver
}

// Load reads and compiles the definition file at path.
func Load(path string, resolver *env.Resolver) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	def, err := Parse(data, resolver)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Path = path
	return def, nil
}

// Parse compiles a definition from YAML. A nil resolver gets a fresh one.
func Parse(data []byte, resolver *env.Resolver) (*Definition, error) {
	if resolver == nil {
		resolver = env.NewResolver()
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}

	def := &Definition{
		Origin:    file.Origin,
		file:      file,
		fragments: make(map[string]*forge.Fragment[Args], len(file.Fragments)),
		requests:  make(map[string]*forge.Builder[Args], len(file.Requests)),
		resolver:  resolver,
	}

	for name, spec := range file.Fragments {
		f, err := compileFragment(spec, resolver)
		if err != nil {
			return nil, fmt.Errorf("fragment %q: %w", name, err)
		}
		def.fragments[name] = f
	}

	// Builders are created before they are filled so requests can list
	// requests declared later in the file.
	for name := range file.Requests {
		if _, ok := def.fragments[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		def.requests[name] = forge.Using[Args]()
	}
	for _, name := range def.RequestNames() {
		b := def.requests[name]
		for _, ref := range file.Requests[name] {
			src, err := def.source(ref)
			if err != nil {
				return nil, fmt.Errorf("request %q: %w", name, err)
			}
			b.Use(src)
		}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func (d *Definition) source(name string) (forge.Source[Args], error) {
	if f, ok := d.fragments[name]; ok {
		return f, nil
	}
	if b, ok := d.requests[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFragment, name)
}

// Validate reports requests that contain themselves.
func (d *Definition) Validate() error {
	var errs []error
	for _, name := range d.RequestNames() {
		if _, err := forge.Fragments[Args](d.requests[name]); err != nil {
			errs = append(errs, fmt.Errorf("request %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Request returns the builder of a named request. The builder is shared: it
// is the same instance other requests nest.
func (d *Definition) Request(name string) (*forge.Builder[Args], error) {
	b, ok := d.requests[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, name)
	}
	return b, nil
}

// Fragment returns a named fragment.
func (d *Definition) Fragment(name string) (*forge.Fragment[Args], bool) {
	f, ok := d.fragments[name]
	return f, ok
}

func (d *Definition) RequestNames() []string {
	return slices.Sorted(maps.Keys(d.requests))
}

func (d *Definition) FragmentNames() []string {
	return slices.Sorted(maps.Keys(d.fragments))
}

// Sources returns the fragment and request names a request is composed of,
// in application order.
func (d *Definition) Sources(name string) ([]string, error) {
	if _, ok := d.requests[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, name)
	}
	return slices.Clone(d.file.Requests[name]), nil
}

// Variables lists the placeholder variables a request needs, sorted and
// without duplicates. Variables already known to the resolver are omitted.
func (d *Definition) Variables(name string) ([]string, error) {
	if _, ok := d.requests[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, name)
	}

	seen := make(map[string]struct{})
	var visit func(request string, active map[string]bool)
	visit = func(request string, active map[string]bool) {
		if active[request] {
			return
		}
		active[request] = true
		for _, ref := range d.file.Requests[request] {
			if _, ok := d.requests[ref]; ok {
				visit(ref, active)
				continue
			}
			for _, s := range d.file.Fragments[ref].strings() {
				for _, v := range d.resolver.UnresolvedVariables(s, nil) {
					seen[v] = struct{}{}
				}
			}
		}
	}
	visit(name, make(map[string]bool))

	return slices.Sorted(maps.Keys(seen)), nil
}

// BaseDir is the directory relative form file paths resolve against.
func (d *Definition) BaseDir() string {
	if d.Path == "" {
		return "."
	}
	return filepath.Dir(d.Path)
}
