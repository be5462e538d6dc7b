// Package handler provides the typed dependency set handed to update handlers
// and the small set of combinators used to build handler trees.
package handler

import "fmt"

type keyID struct {
	name string
}

// Key identifies one typed value in a Deps set. Keys are compared by identity:
// two NewKey calls with the same name are different keys.
type Key[T any] struct {
	id *keyID
}

// NewKey creates a key for values of type T.
func NewKey[T any](name string) Key[T] {
	return Key[T]{id: &keyID{name: name}}
}

// Name returns the key's descriptive name.
func (k Key[T]) Name() string {
	if k.id == nil {
		return ""
	}
	return k.id.name
}

// Deps is the dependency set for one handler invocation.
type Deps struct {
	values map[*keyID]any
}

// NewDeps returns an empty set.
func NewDeps() *Deps {
	return &Deps{values: make(map[*keyID]any)}
}

// Set stores v under k, replacing any previous value.
func Set[T any](d *Deps, k Key[T], v T) {
	if k.id == nil {
		panic("handler: Set with zero Key")
	}
	if d.values == nil {
		d.values = make(map[*keyID]any)
	}
	d.values[k.id] = v
}

// Get returns the value stored under k.
func Get[T any](d *Deps, k Key[T]) (T, bool) {
	var zero T
	if d == nil || k.id == nil {
		return zero, false
	}
	raw, ok := d.values[k.id]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// MustGet returns the value stored under k and panics when it is missing.
// Use it only for values the dispatcher always provides.
func MustGet[T any](d *Deps, k Key[T]) T {
	v, ok := Get(d, k)
	if !ok {
		panic(fmt.Sprintf("handler: missing dependency %q", k.Name()))
	}
	return v
}

// Has reports whether k is set.
func Has[T any](d *Deps, k Key[T]) bool {
	_, ok := Get(d, k)
	return ok
}

// Merge copies every value of other into d, overwriting shared keys.
func (d *Deps) Merge(other *Deps) {
	if other == nil {
		return
	}
	if d.values == nil {
		d.values = make(map[*keyID]any, len(other.values))
	}
	for k, v := range other.values {
		d.values[k] = v
	}
}

// Clone returns a shallow copy of d.
func (d *Deps) Clone() *Deps {
	out := &Deps{values: make(map[*keyID]any, d.Len())}
	out.Merge(d)
	return out
}

// Len returns the number of stored values.
func (d *Deps) Len() int {
	if d == nil {
		return 0
	}
	return len(d.values)
}
