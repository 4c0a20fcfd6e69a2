package param

import (
	"fmt"
	"sync"

	"gosobol/domain/core"
)

// Registry holds named parameter definitions. Each name is written once;
// after Seal the registry is read-only and safe for any number of readers.
type Registry struct {
	mu     sync.RWMutex
	params []Parameter
	index  map[string]int
	sealed bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Define validates and registers p. Redefining an existing name fails with
// a DuplicateParameterError; the existing definition is left untouched.
func (r *Registry) Define(p Parameter) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%s: define %q: %w", core.StageRegistry, p.Name, core.ErrRegistrySealed)
	}
	if _, exists := r.index[p.Name]; exists {
		return core.NewDuplicateParameterError(core.StageRegistry, p.Name)
	}
	r.index[p.Name] = len(r.params)
	r.params = append(r.params, p)
	return nil
}

// Has reports whether name is defined.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[name]
	return ok
}

// Get returns the definition of name.
func (r *Registry) Get(name string) (Parameter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return Parameter{}, fmt.Errorf("%s: %w %q", core.StageRegistry, core.ErrUnknownParameter, name)
	}
	return r.params[i], nil
}

// Parameters returns all definitions in definition order.
func (r *Registry) Parameters() []Parameter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Parameter, len(r.params))
	copy(out, r.params)
	return out
}

// Names returns all names in definition order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.params))
	for i, p := range r.params {
		out[i] = p.Name
	}
	return out
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.params)
}

// Seal freezes the registry. Further Define calls fail with ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Defaults returns the assignment binding every parameter to its default.
func Defaults(params []Parameter) (Assignment, error) {
	names := make([]string, len(params))
	values := make([]float64, len(params))
	for i, p := range params {
		names[i] = p.Name
		values[i] = p.Default
	}
	layout, err := NewLayout(names)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{layout: layout, values: values}, nil
}
