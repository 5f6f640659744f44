package domaincontext

import (
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
	"logbook/internal/domain"
)

// Registry is the read-only set of known domain modules, in load order.
type Registry struct {
	modules []domain.DomainModule
	byName  map[string]int
}

// NewRegistry builds a registry, rejecting empty and duplicate names.
func NewRegistry(modules ...domain.DomainModule) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(modules))}
	for _, m := range modules {
		if m.Name == "" {
			return nil, fmt.Errorf("domain module without a name")
		}
		if _, dup := r.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate domain module %q", m.Name)
		}
		r.byName[m.Name] = len(r.modules)
		r.modules = append(r.modules, m)
	}
	return r, nil
}

// LoadRegistry reads every YAML domain module under dir matching pattern.
// A missing directory yields an empty registry.
func LoadRegistry(dir, pattern string) (*Registry, error) {
	if pattern == "" {
		pattern = "**/*.yaml"
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewRegistry()
	}

	fsys := os.DirFS(dir)
	paths, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob domain modules: %w", err)
	}
	sort.Strings(paths)

	modules := make([]domain.DomainModule, 0, len(paths))
	for _, p := range paths {
		m, err := readModule(fsys, p)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return NewRegistry(modules...)
}

func readModule(fsys fs.FS, path string) (domain.DomainModule, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return domain.DomainModule{}, fmt.Errorf("failed to read domain module %s: %w", path, err)
	}
	var m domain.DomainModule
	if err := yaml.Unmarshal(data, &m); err != nil {
		return domain.DomainModule{}, fmt.Errorf("failed to parse domain module %s: %w", path, err)
	}
	return m, nil
}

func (r *Registry) Get(name string) (domain.DomainModule, bool) {
	if r == nil {
		return domain.DomainModule{}, false
	}
	i, ok := r.byName[name]
	if !ok {
		return domain.DomainModule{}, false
	}
	return r.modules[i], true
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns the modules in load order.
func (r *Registry) List() []domain.DomainModule {
	if r == nil {
		return nil
	}
	out := make([]domain.DomainModule, len(r.modules))
	copy(out, r.modules)
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.modules)
}
