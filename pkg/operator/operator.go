// Package operator provides the named comparison predicates used to evaluate
// query constraints against already-fetched records.
//
// A Registry maps operator names ("eq", "gte", "match", ...) to binary
// predicates. Default returns a process-wide registry pre-loaded with the
// built-in operators; callers may register additional ones.
package operator

import (
	"fmt"
	"sort"
	"sync"
)

// Predicate compares a record value (left) with a constraint value (right).
type Predicate func(left, right any) bool

// Built-in operator names.
const (
	Eq    = "eq"
	Neq   = "neq"
	Gte   = "gte"
	Gt    = "gt"
	Lte   = "lte"
	Lt    = "lt"
	In    = "in"
	Nin   = "nin"
	Match = "match"
)

// Resolver looks up a predicate by operator name.
type Resolver interface {
	Resolve(name string) (Predicate, error)
}

// Registry holds named predicates.
type Registry struct {
	mu    sync.RWMutex
	preds map[string]Predicate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{preds: make(map[string]Predicate)}
}

// NewDefaultRegistry creates a registry loaded with the built-in operators.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Eq, Equal)
	r.Register(Neq, func(l, rv any) bool { return !Equal(l, rv) })
	r.Register(Gte, ordered(func(c int) bool { return c >= 0 }))
	r.Register(Gt, ordered(func(c int) bool { return c > 0 }))
	r.Register(Lte, ordered(func(c int) bool { return c <= 0 }))
	r.Register(Lt, ordered(func(c int) bool { return c < 0 }))
	r.Register(In, Contains)
	r.Register(Nin, func(l, rv any) bool { return !Contains(l, rv) })
	r.Register(Match, Matches)
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared registry with the built-in operators.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewDefaultRegistry()
	})
	return defaultReg
}

// Register adds or replaces a predicate.
func (r *Registry) Register(name string, p Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preds[name] = p
}

// Resolve returns the predicate registered under name.
func (r *Registry) Resolve(name string) (Predicate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.preds[name]
	if !ok {
		return nil, &UnknownOperatorError{Name: name, Available: r.namesLocked()}
	}
	return p, nil
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.preds[name]
	return ok
}

// Names returns all registered operator names (sorted).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.preds))
	for name := range r.preds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownOperatorError is returned when an operator name is not registered.
type UnknownOperatorError struct {
	Name      string
	Available []string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q (available: %v)", e.Name, e.Available)
}

// ordered builds a predicate from a three-way comparison check.
// Values that cannot be ordered against each other never match.
func ordered(check func(int) bool) Predicate {
	return func(left, right any) bool {
		c, ok := Compare(left, right)
		return ok && check(c)
	}
}
