package value

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"unique"
)

// Key is a cheap, comparable handle for an interned value. Two Keys are
// equal iff their values are equal.
type Key struct {
	ID   uint64
	Type TypeID
}

func (k Key) String() string {
	return strconv.FormatUint(uint64(k.Type), 10) + ":" + strconv.FormatUint(k.ID, 10)
}

// Identifiable lets a value that is not comparable with == (or is expensive
// to compare) define its own identity.
type Identifiable interface {
	Identity() string
}

type valueKey struct {
	typ TypeID
	v   any
}

type identityKey struct {
	typ TypeID
	id  unique.Handle[string]
}

// Interner is a put-if-absent table from values to Keys.
//
// Identity is decided, in order, by Identifiable, by == for values whose
// dynamic type is comparable, and by the %#v rendering otherwise. Values
// that are not equal to themselves, such as NaN or structs holding one, are
// rendered too.
type Interner struct {
	types *Types

	mu         sync.Mutex
	next       uint64
	byValue    map[valueKey]uint64
	byIdentity map[identityKey]uint64
	objects    map[uint64]any
}

// NewInterner creates an interner that assigns type ids from types.
func NewInterner(types *Types) *Interner {
	return &Interner{
		types:      types,
		byValue:    make(map[valueKey]uint64),
		byIdentity: make(map[identityKey]uint64),
		objects:    make(map[uint64]any),
	}
}

// Types returns the type table backing the interner.
func (in *Interner) Types() *Types {
	return in.types
}

// Put interns obj under its dynamic type.
func (in *Interner) Put(obj any) Key {
	return in.PutAs(in.types.IDOf(obj), obj)
}

// PutAs interns obj under an explicit type, which is how interface-typed
// params are stored.
func (in *Interner) PutAs(t TypeID, obj any) Key {
	var (
		ik       identityKey
		byString bool
	)
	switch o := obj.(type) {
	case Identifiable:
		ik, byString = identityKey{typ: t, id: unique.Make(o.Identity())}, true
	default:
		if obj != nil && (!reflect.ValueOf(obj).Comparable() || !selfEqual(obj)) {
			ik, byString = identityKey{typ: t, id: unique.Make(fmt.Sprintf("%#v", obj))}, true
		}
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if byString {
		id, ok := in.byIdentity[ik]
		if !ok {
			id = in.store(obj)
			in.byIdentity[ik] = id
		}
		return Key{ID: id, Type: t}
	}

	vk := valueKey{typ: t, v: obj}
	id, ok := in.byValue[vk]
	if !ok {
		id = in.store(obj)
		in.byValue[vk] = id
	}
	return Key{ID: id, Type: t}
}

// selfEqual reports whether obj == obj. It is false only when obj holds a
// NaN somewhere.
func selfEqual(obj any) bool {
	other := obj
	return obj == other
}

func (in *Interner) store(obj any) uint64 {
	in.next++
	in.objects[in.next] = obj
	return in.next
}

// Get returns the object first interned under id.
func (in *Interner) Get(id uint64) (any, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	obj, ok := in.objects[id]
	return obj, ok
}

// Len returns the number of distinct interned values.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.objects)
}

// Wrap interns obj and returns its envelope.
func (in *Interner) Wrap(obj any) Value {
	return Value{key: in.Put(obj), obj: obj}
}

// WrapAs interns obj under t and returns its envelope.
func (in *Interner) WrapAs(t TypeID, obj any) Value {
	return Value{key: in.PutAs(t, obj), obj: obj}
}
