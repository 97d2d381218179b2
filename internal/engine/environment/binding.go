package environment

import (
	"fmt"

	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/object"
	"github.com/trynova/nova-sub004/internal/engine/value"
)

// ReferenceError is thrown by GetValue/PutValue/GetBindingValue on an
// uninitialized or missing binding (ERROR HANDLING DESIGN §7: "Lookup
// miss on an environment chain... becomes ReferenceError at GetValue
// time").
type ReferenceError struct {
	Name string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s is not defined", e.Name)
}

// TypeError is thrown by SetMutableBinding against a non-writable
// binding in strict mode, and by PutValue when auto-boxing a primitive
// base fails to accept the assignment.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }

// CreateMutableBinding implements the declarative-environment binding
// creation used by `var`/function declarations.
func (s *Store) CreateMutableBinding(idx heap.Index, name string, deletable bool) error {
	env := s.Get(idx)
	if env.HasBindingObj && env.Bindings == nil {
		// pure object environment (with-statement): delegate to the
		// object's [[DefineOwnProperty]].
		s.objects.DefineOwnDataProperty(env.BindingObject, s.key(name), value.Undefined,
			object.NewDataDescriptor(true, true, deletable))
		return nil
	}
	env.Bindings[name] = &Binding{Mutable: true, Deletable: deletable}
	return nil
}

// CreateImmutableBinding implements `let`/`const`/class declarative
// binding creation (uninitialized until InitializeBinding runs).
func (s *Store) CreateImmutableBinding(idx heap.Index, name string, strict bool) error {
	s.Get(idx).Bindings[name] = &Binding{Mutable: false, Strict: strict}
	return nil
}

// InitializeBinding transitions an uninitialized binding to initialized.
func (s *Store) InitializeBinding(idx heap.Index, name string, v value.Value) error {
	env := s.Get(idx)
	if b, ok := env.Bindings[name]; ok {
		b.Value = v
		b.HasValue = true
		return nil
	}
	if env.HasBindingObj {
		s.objects.DefineOwnDataProperty(env.BindingObject, s.key(name), v,
			object.NewDataDescriptor(true, true, true))
		return nil
	}
	return &ReferenceError{Name: name}
}

// SetMutableBinding implements PutValue's env-base dispatch for a
// mutable or object-environment binding.
func (s *Store) SetMutableBinding(idx heap.Index, name string, v value.Value, strict bool) error {
	env := s.Get(idx)
	if b, ok := env.Bindings[name]; ok {
		if !b.HasValue {
			return &ReferenceError{Name: name}
		}
		if !b.Mutable {
			if strict || b.Strict {
				return &TypeError{Msg: "Assignment to constant variable."}
			}
			return nil
		}
		b.Value = v
		return nil
	}
	if env.HasBindingObj {
		key := s.key(name)
		if !s.objects.HasOwn(env.BindingObject, key.Value()) {
			if strict {
				return &ReferenceError{Name: name}
			}
			s.objects.DefineOwnDataProperty(env.BindingObject, key, v,
				object.NewDataDescriptor(true, true, true))
			return nil
		}
		s.objects.DefineOwnDataProperty(env.BindingObject, key, v,
			object.NewDataDescriptor(true, true, true))
		return nil
	}
	if strict {
		return &ReferenceError{Name: name}
	}
	return nil
}

// GetBindingValue implements GetValue's env-base dispatch.
func (s *Store) GetBindingValue(idx heap.Index, name string, strict bool) (value.Value, error) {
	env := s.Get(idx)
	if b, ok := env.Bindings[name]; ok {
		if !b.HasValue {
			return value.Undefined, &ReferenceError{Name: name}
		}
		return b.Value, nil
	}
	if env.HasBindingObj {
		key := s.key(name)
		v, _, found := s.objects.GetOwn(env.BindingObject, key.Value())
		if !found {
			if strict {
				return value.Undefined, &ReferenceError{Name: name}
			}
			return value.Undefined, nil
		}
		return v, nil
	}
	return value.Undefined, &ReferenceError{Name: name}
}

// HasBinding reports whether name is bound directly in env idx (not
// walking Outer).
func (s *Store) HasBinding(idx heap.Index, name string) bool {
	env := s.Get(idx)
	if _, ok := env.Bindings[name]; ok {
		return true
	}
	if env.HasBindingObj {
		return s.objects.HasOwn(env.BindingObject, s.key(name).Value())
	}
	return false
}

// DeleteBinding removes a deletable binding.
func (s *Store) DeleteBinding(idx heap.Index, name string) bool {
	env := s.Get(idx)
	if b, ok := env.Bindings[name]; ok {
		if !b.Deletable {
			return false
		}
		delete(env.Bindings, name)
		return true
	}
	if env.HasBindingObj {
		return s.objects.Delete(env.BindingObject, s.key(name).Value())
	}
	return true
}

// Reference is an unresolved lvalue awaiting GetValue/PutValue
// (DATA MODEL/GLOSSARY: "Reference").
type Reference struct {
	// EnvBase is set when the reference resolved through an environment
	// chain; otherwise BaseValue/HasBaseValue describe a value base
	// (property access on an arbitrary value, per §4.6).
	EnvBase    heap.Index
	HasEnvBase bool
	BaseValue  value.Value
	Name       string
	Strict     bool
	ThisValue  value.Value
	HasThis    bool
}

// ResolveBinding walks the environment chain outward from idx looking
// for name, returning a Reference with EnvBase set to the environment
// that owns it (or the outermost if none does, matching ECMA-262's
// "global environment as last resort").
func (s *Store) ResolveBinding(idx heap.Index, name string, strict bool) Reference {
	cur := idx
	for {
		if s.HasBinding(cur, name) {
			return Reference{EnvBase: cur, HasEnvBase: true, Name: name, Strict: strict}
		}
		env := s.Get(cur)
		if !env.HasOuter || env.Outer.Tag() != value.TagObject {
			return Reference{EnvBase: cur, HasEnvBase: true, Name: name, Strict: strict}
		}
		cur = heap.Index(env.Outer.Index())
	}
}

// ValueGetter resolves a value-base Reference's [[Get]] (property access
// on a non-environment base); supplied by the vm package, which alone
// owns auto-boxing and exotic-object dispatch, keeping this package free
// of a dependency on it.
type ValueGetter func(base value.Value, name string) (value.Value, error)

// ValueSetter is PutValue's value-base counterpart.
type ValueSetter func(base value.Value, name string, v value.Value, strict bool) error

// GetValue implements COMPONENT DESIGN §4.6's GetValue(ref) dispatch.
func (s *Store) GetValue(ref Reference, getValueBase ValueGetter) (value.Value, error) {
	if ref.HasEnvBase {
		return s.GetBindingValue(ref.EnvBase, ref.Name, ref.Strict)
	}
	return getValueBase(ref.BaseValue, ref.Name)
}

// PutValue implements PutValue(ref, v).
func (s *Store) PutValue(ref Reference, v value.Value, setValueBase ValueSetter) error {
	if ref.HasEnvBase {
		return s.SetMutableBinding(ref.EnvBase, ref.Name, v, ref.Strict)
	}
	return setValueBase(ref.BaseValue, ref.Name, v, ref.Strict)
}
