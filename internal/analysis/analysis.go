// Package analysis maintains the named analyzer registry a schema compiles
// against. Analyzers themselves live in the full-text engine; this package
// only validates declarations and resolves names, so mapper compilation can
// reject a dangling analyzer reference before any document is written.
package analysis

import (
	"sort"

	gterrors "github.com/gridtext/gridtext/internal/errors"
)

// DefaultAnalyzer is used when a schema declares no default of its own.
const DefaultAnalyzer = "standard"

// Builtin analyzer names every registry starts with.
var builtins = []string{"standard", "keyword", "whitespace", "lowercase", "stop", "simple"}

// snowballLanguages are the stemming languages a snowball analyzer may declare.
var snowballLanguages = map[string]bool{
	"english": true, "french": true, "german": true, "spanish": true,
	"italian": true, "portuguese": true, "dutch": true, "swedish": true,
	"norwegian": true, "danish": true, "russian": true, "finnish": true,
	"hungarian": true, "romanian": true, "turkish": true, "basque": true,
	"catalan": true, "armenian": true, "irish": true,
}

// Spec is one custom analyzer declaration: either a classpath-loaded
// analyzer identified by class name, or a snowball stemming analyzer
// identified by language with an optional stopword list.
type Spec struct {
	Type      string   `json:"type" yaml:"type"`
	Class     string   `json:"class,omitempty" yaml:"class,omitempty"`
	Language  string   `json:"language,omitempty" yaml:"language,omitempty"`
	Stopwords []string `json:"stopwords,omitempty" yaml:"stopwords,omitempty"`
}

// Registry holds the analyzers a single schema may reference. Registries are
// built once at schema-compile time and read-only afterwards.
type Registry struct {
	analyzers map[string]Spec
}

// NewRegistry returns a registry pre-populated with the builtin analyzers.
func NewRegistry() *Registry {
	r := &Registry{analyzers: make(map[string]Spec, len(builtins))}
	for _, name := range builtins {
		r.analyzers[name] = Spec{Type: "builtin"}
	}
	return r
}

// Register adds a custom analyzer under the given name, validating the
// declaration. Registration must happen before any mapper referencing the
// analyzer is compiled.
func (r *Registry) Register(name string, spec Spec) error {
	if name == "" {
		return gterrors.NewConfigError(gterrors.CodeBadOption, "analyzer name must not be empty")
	}
	switch spec.Type {
	case "classpath":
		if spec.Class == "" {
			return gterrors.NewConfigError(gterrors.CodeBadOption,
				"classpath analyzer %q: class is required", name)
		}
	case "snowball":
		if !snowballLanguages[spec.Language] {
			return gterrors.NewConfigError(gterrors.CodeBadOption,
				"snowball analyzer %q: unsupported language %q", name, spec.Language)
		}
	default:
		return gterrors.NewConfigError(gterrors.CodeBadOption,
			"analyzer %q: unknown type %q", name, spec.Type)
	}
	r.analyzers[name] = spec
	return nil
}

// Resolve checks that name refers to a registered analyzer. A blank name
// resolves to the schema default and is always valid.
func (r *Registry) Resolve(name string) error {
	if name == "" {
		return nil
	}
	if _, ok := r.analyzers[name]; !ok {
		return gterrors.NewConfigError(gterrors.CodeUnknownAnalyzer,
			"analyzer %q is not defined", name)
	}
	return nil
}

// Names returns the registered analyzer names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.analyzers))
	for n := range r.analyzers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the declaration registered under name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	s, ok := r.analyzers[name]
	return s, ok
}
