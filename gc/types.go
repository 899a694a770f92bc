package gc

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/unicode/norm"
)

// ForeignType supplies marking and finalization for objects whose layout the
// collector does not know.
type ForeignType interface {
	// Mark enqueues every object obj references via ctx.Enqueue and returns
	// the number of young objects obj references. It runs at most once per
	// object per cycle and must not allocate.
	Mark(ctx *Context, obj *Object) uintptr

	// Finalize runs at most once, when obj was not reached by the cycle that
	// reclaims it, and only if Thread.EnableFinalizer was called for obj. It
	// must not store obj anywhere reachable.
	Finalize(obj *Object)
}

// ForeignFuncs adapts a pair of functions to ForeignType. Either may be nil.
type ForeignFuncs struct {
	MarkFunc     func(ctx *Context, obj *Object) uintptr
	FinalizeFunc func(obj *Object)
}

// Mark implements ForeignType.
func (f ForeignFuncs) Mark(ctx *Context, obj *Object) uintptr {
	if f.MarkFunc == nil {
		return 0
	}
	return f.MarkFunc(ctx, obj)
}

// Finalize implements ForeignType.
func (f ForeignFuncs) Finalize(obj *Object) {
	if f.FinalizeFunc != nil {
		f.FinalizeFunc(obj)
	}
}

// Type describes the objects of one registered type. Types are immutable
// after registration and live as long as their Registry.
type Type struct {
	Name        string
	Module      string
	Super       *Type
	Foreign     ForeignType // nil for native types
	HasPointers bool        // false: instances are marking leaves
	Large       bool        // true: instances are always allocated externally

	pointerWords int // native types: leading payload words holding references
	id           uint32
}

// QualifiedName returns "Module.Name".
func (t *Type) QualifiedName() string {
	if t.Module == "" {
		return t.Name
	}
	return t.Module + "." + t.Name
}

// IsForeign reports whether instances are marked by a ForeignType.
func (t *Type) IsForeign() bool { return t.Foreign != nil }

// PointerWords returns the number of reference slots a native instance is
// scanned for.
func (t *Type) PointerWords() int { return t.pointerWords }

// IsSubtype reports whether t is other or descends from it.
func (t *Type) IsSubtype(other *Type) bool {
	for s := t; s != nil; s = s.Super {
		if s == other {
			return true
		}
	}
	return false
}

func (t *Type) String() string { return t.QualifiedName() }

// Registry maps qualified names to types. Names are compared after NFC
// normalization, so visually identical names cannot register twice.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Type
	any    *Type
}

// NewRegistry returns a registry holding only the root type Any.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Type)}
	r.any = &Type{Name: "Any", Module: "Core", HasPointers: true, id: 0}
	r.byName[r.any.QualifiedName()] = r.any
	return r
}

// Any returns the root of the type hierarchy.
func (r *Registry) Any() *Type { return r.any }

// RegisterForeign creates a foreign type. super defaults to Any.
//
// Registering a name twice is a contract violation: the returned error wraps
// ErrDuplicateType and carries an assertion failure.
func (r *Registry) RegisterForeign(module, name string, super *Type, ft ForeignType, hasPointers, large bool) (*Type, error) {
	if ft == nil {
		return nil, errors.Wrapf(ErrInvalidType, "foreign type %s.%s has no ForeignType", module, name)
	}
	return r.register(&Type{
		Name:        name,
		Module:      module,
		Super:       super,
		Foreign:     ft,
		HasPointers: hasPointers,
		Large:       large,
	})
}

// RegisterNative creates a type scanned by the collector itself: the first
// pointerWords reference slots of each instance are traced.
func (r *Registry) RegisterNative(module, name string, super *Type, pointerWords int) (*Type, error) {
	if pointerWords < 0 {
		return nil, errors.Wrapf(ErrInvalidType, "native type %s.%s: %d pointer words", module, name, pointerWords)
	}
	return r.register(&Type{
		Name:         name,
		Module:       module,
		Super:        super,
		HasPointers:  pointerWords > 0,
		pointerWords: pointerWords,
	})
}

func (r *Registry) register(t *Type) (*Type, error) {
	t.Name = norm.NFC.String(t.Name)
	t.Module = norm.NFC.String(t.Module)
	if t.Name == "" {
		return nil, errors.Wrapf(ErrInvalidType, "empty type name in module %q", t.Module)
	}
	if t.Super == nil {
		t.Super = r.any
	}

	key := t.QualifiedName()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[key]; ok {
		return nil, errors.WithAssertionFailure(errors.Wrapf(ErrDuplicateType, "type %s", key))
	}
	t.id = uint32(len(r.byName))
	r.byName[key] = t
	return t, nil
}

// Lookup finds a type by module and name.
func (r *Registry) Lookup(module, name string) (*Type, bool) {
	key := (&Type{Module: norm.NFC.String(module), Name: norm.NFC.String(name)}).QualifiedName()
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[key]
	return t, ok
}

// Types returns every registered type ordered by registration.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	out := make([]*Type, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
