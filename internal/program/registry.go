package program

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateProgram is returned when a program's name or ID is already
// taken by a registered program's name or ID.
var ErrDuplicateProgram = errors.New("program: duplicate program reference")

// Registry manages the set of deployed programs.
type Registry struct {
	Programs map[string]Program
	byID     map[string]Program
}

func NewRegistry() *Registry {
	return &Registry{
		Programs: make(map[string]Program),
		byID:     make(map[string]Program),
	}
}

// Register adds p. Names and IDs share one lookup space, so p is refused
// when either collides with a reference already in use.
func (r *Registry) Register(p Program) error {
	for _, ref := range []string{p.Name(), p.ID()} {
		if r.Get(ref) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateProgram, ref)
		}
	}
	r.Programs[p.Name()] = p
	r.byID[p.ID()] = p
	return nil
}

// Get resolves a program by name or by program ID.
func (r *Registry) Get(ref string) Program {
	if p, ok := r.Programs[ref]; ok {
		return p
	}
	return r.byID[ref]
}

// Names returns registered program names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Programs))
	for name := range r.Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
