package param

import (
	"fmt"

	"gosobol/domain/core"
)

// Layout is the ordered set of parameter names shared by every Assignment
// drawn from the same design matrix. It is immutable once built.
type Layout struct {
	names []string
	index map[string]int
}

// NewLayout builds a layout; names must be unique.
func NewLayout(names []string) (*Layout, error) {
	l := &Layout{names: append([]string(nil), names...), index: make(map[string]int, len(names))}
	for i, n := range names {
		if _, dup := l.index[n]; dup {
			return nil, core.NewDuplicateParameterError(core.StageSampling, n)
		}
		l.index[n] = i
	}
	return l, nil
}

// Names returns a copy of the ordered names.
func (l *Layout) Names() []string { return append([]string(nil), l.names...) }

// Len returns the number of parameters.
func (l *Layout) Len() int { return len(l.names) }

// Index returns the column of name.
func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Assignment maps each parameter name to one concrete value.
// It is immutable: constructors copy their inputs and accessors return copies.
type Assignment struct {
	layout *Layout
	values []float64
}

// NewAssignment builds an assignment over layout. values is copied.
func NewAssignment(layout *Layout, values []float64) (Assignment, error) {
	if layout == nil {
		return Assignment{}, fmt.Errorf("assignment: nil layout")
	}
	if len(values) != layout.Len() {
		return Assignment{}, fmt.Errorf("assignment: %d values for %d parameters", len(values), layout.Len())
	}
	return Assignment{layout: layout, values: append([]float64(nil), values...)}, nil
}

// AssignmentFromMap builds an assignment with names in sorted-by-layout order.
func AssignmentFromMap(layout *Layout, m map[string]float64) (Assignment, error) {
	values := make([]float64, layout.Len())
	for i, n := range layout.names {
		v, ok := m[n]
		if !ok {
			return Assignment{}, fmt.Errorf("assignment: %w %q", core.ErrUnknownParameter, n)
		}
		values[i] = v
	}
	return Assignment{layout: layout, values: values}, nil
}

// Value returns the value bound to name.
func (a Assignment) Value(name string) (float64, bool) {
	if a.layout == nil {
		return 0, false
	}
	i, ok := a.layout.index[name]
	if !ok {
		return 0, false
	}
	return a.values[i], true
}

// MustValue is Value for names known to be bound; it panics otherwise.
func (a Assignment) MustValue(name string) float64 {
	v, ok := a.Value(name)
	if !ok {
		panic(fmt.Sprintf("assignment: parameter %q not bound", name))
	}
	return v
}

// At returns the value in column i.
func (a Assignment) At(i int) float64 { return a.values[i] }

// Len returns the number of bound parameters.
func (a Assignment) Len() int { return len(a.values) }

// Names returns the ordered parameter names.
func (a Assignment) Names() []string {
	if a.layout == nil {
		return nil
	}
	return a.layout.Names()
}

// Values returns a copy of the ordered values.
func (a Assignment) Values() []float64 { return append([]float64(nil), a.values...) }

// Map returns a copy as a name -> value map.
func (a Assignment) Map() map[string]float64 {
	m := make(map[string]float64, len(a.values))
	if a.layout == nil {
		return m
	}
	for i, n := range a.layout.names {
		m[n] = a.values[i]
	}
	return m
}

// With returns a new assignment with name rebound to v.
func (a Assignment) With(name string, v float64) (Assignment, error) {
	i, ok := a.layout.Index(name)
	if !ok {
		return Assignment{}, fmt.Errorf("assignment: %w %q", core.ErrUnknownParameter, name)
	}
	values := a.Values()
	values[i] = v
	return Assignment{layout: a.layout, values: values}, nil
}
