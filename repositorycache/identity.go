package repositorycache

import (
	"reflect"
)

// Tracking is an embeddable dirty flag. Entities embed it by value and call
// MarkDirty from their setters:
//
//	type Language struct {
//		repositorycache.Tracking `bun:"-" msgpack:"-" json:"-"`
//		ID int
//	}
//
// Copies decoded from a cache start clean.
type Tracking struct {
	dirty bool
}

func (t *Tracking) MarkDirty() {
	t.dirty = true
}

func (t *Tracking) IsDirty() bool {
	return t.dirty
}

func (t *Tracking) ResetDirty() {
	t.dirty = false
}

var identityFields = []string{"ID", "Id"}

// ReflectIdentity reads the ID (or Id) field of a struct or struct pointer
// and converts it to K. It reports false for nil pointers, non structs and
// fields that cannot be converted.
func ReflectIdentity[K comparable](e any) (K, bool) {
	var zero K

	v := reflect.ValueOf(e)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return zero, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return zero, false
	}

	target := reflect.TypeFor[K]()
	for _, name := range identityFields {
		field := v.FieldByName(name)
		if !field.IsValid() || !field.CanInterface() {
			continue
		}
		if field.Type() == target {
			return field.Interface().(K), true
		}
		if field.Type().ConvertibleTo(target) && field.Kind() == target.Kind() {
			return field.Convert(target).Interface().(K), true
		}
	}
	return zero, false
}

// IdentityFunc adapts ReflectIdentity to the accessor shape policies take.
// Entities without a readable id map to the zero K.
func IdentityFunc[K comparable, E any]() func(E) K {
	return func(e E) K {
		id, _ := ReflectIdentity[K](e)
		return id
	}
}
