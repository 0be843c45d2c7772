package persona

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Registry is a read-only lookup of personas by ID.
//
// It is safe for concurrent use because nothing mutates it after NewRegistry
// returns; Get and List hand out deep copies.
type Registry struct {
	personas map[string]Persona
	order    []string
}

// NewRegistry builds a registry from the given personas. Later entries with a
// duplicate ID replace earlier ones, which is how recipe packs override the
// built-in table.
func NewRegistry(personas ...Persona) (*Registry, error) {
	r := &Registry{personas: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, ErrEmptyPersonaID
		}
		if err := p.Recipe.Validate(); err != nil {
			return nil, fmt.Errorf("persona %s: %w", id, err)
		}
		p.ID = id
		if p.Name == "" {
			p.Name = id
		}
		if _, exists := r.personas[id]; !exists {
			r.order = append(r.order, id)
		}
		r.personas[id] = p.Clone()
	}
	return r, nil
}

// NewDefaultRegistry returns a registry holding only the built-in personas.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		// Built-in table is static; a failure here is a programming error.
		panic(fmt.Sprintf("persona: invalid built-in table: %v", err))
	}
	return r
}

// NewRegistryWithPack returns the built-in personas extended (or overridden)
// by the personas declared in a TOML recipe pack. An empty path yields the
// built-in registry.
func NewRegistryWithPack(path string) (*Registry, error) {
	if path == "" {
		return NewDefaultRegistry(), nil
	}
	pack, err := LoadPack(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(append(Builtin(), pack...)...)
}

// Get returns a copy of the persona with the given ID, or ErrUnknownPersona.
func (r *Registry) Get(id string) (Persona, error) {
	p, ok := r.personas[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	return p.Clone(), nil
}

// Has reports whether the persona ID is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.personas[id]
	return ok
}

// IDs returns persona IDs in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// List returns copies of all personas in registration order.
func (r *Registry) List() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.personas[id].Clone())
	}
	return out
}

// packFile is the on-disk layout of a TOML recipe pack.
type packFile struct {
	Personas []Persona `toml:"persona"`
}

// LoadPack reads personas from a TOML recipe pack:
//
//	[[persona]]
//	id = "climate"
//	name = "Climate Fund"
//	[persona.recipe]
//	positive_highlights = ["carbon_removal", "hardware"]
//	[persona.recipe.default_weights]
//	carbon_removal = 0.9
func LoadPack(path string) ([]Persona, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("recipe pack %s: %w", path, err)
	}
	var pf packFile
	md, err := toml.DecodeFile(path, &pf)
	if err != nil {
		return nil, fmt.Errorf("decoding recipe pack %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("recipe pack %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return pf.Personas, nil
}
