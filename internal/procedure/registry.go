package procedure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/sensor"
)

// Registry maps sensor types to their procedures
type Registry struct {
	procedures map[sensor.Type]Procedure
}

// NewRegistry returns a registry holding the given procedures
func NewRegistry(procs ...Procedure) *Registry {
	r := &Registry{procedures: make(map[sensor.Type]Procedure, len(procs))}
	for _, p := range procs {
		r.procedures[p.Type()] = p
	}
	return r
}

// NewDefaultRegistry returns the ph, eh, ntc and do procedures
func NewDefaultRegistry(env *Env) *Registry {
	return NewRegistry(
		NewPHProcedure(env),
		NewEhProcedure(env),
		NewThermistorProcedure(env),
		NewDOProcedure(env),
	)
}

// Get returns the procedure for t
func (r *Registry) Get(t sensor.Type) (Procedure, error) {
	p, ok := r.procedures[sensor.Type(strings.ToLower(string(t)))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownProcedure, t, strings.Join(r.typeNames(), ", "))
	}
	return p, nil
}

// Types returns the served sensor types, sorted
func (r *Registry) Types() []sensor.Type {
	types := make([]sensor.Type, 0, len(r.procedures))
	for t := range r.procedures {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (r *Registry) typeNames() []string {
	types := r.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

// Pack writes each procedure into its own child of sec, keyed by type
func (r *Registry) Pack(sec *document.Section) {
	for _, t := range r.Types() {
		r.procedures[t].Pack(sec.Child(string(t)))
	}
}

// Unpack reads procedures written by Pack into the registered procedures.
// Types without a procedure are an error.
func (r *Registry) Unpack(sec *document.Section) error {
	for _, child := range sec.Children() {
		p, err := r.Get(sensor.Type(child.Name()))
		if err != nil {
			return &document.DecodeError{Path: child.Path(), Key: "type", Err: err}
		}
		if err := p.Unpack(child); err != nil {
			return err
		}
	}
	return nil
}
