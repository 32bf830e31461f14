package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// AllKey is the partition key holding a full-dataset entry or marker.
const AllKey = "all"

const entityPrefix = "e" + KeySeparator

// KeySerializer turns an entity identity into a stable key segment.
// Identities can be integers, strings or composite values; two distinct
// identities of the same type must never serialize to the same segment.
type KeySerializer interface {
	SerializeID(id any) string
}

// defaultKeySerializer implements KeySerializer using reflection. Composite
// identities (structs, arrays, maps) are rendered field by field with sorted
// map keys so the output is deterministic.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// EntityKey builds the partition key for a single entity.
func EntityKey(s KeySerializer, id any) string {
	return entityPrefix + s.SerializeID(id)
}

// IsEntityKey reports whether key was produced by EntityKey.
func IsEntityKey(key string) bool {
	return strings.HasPrefix(key, entityPrefix)
}

func (s defaultKeySerializer) SerializeID(id any) string {
	return s.value(reflect.ValueOf(id))
}

func (s defaultKeySerializer) value(rv reflect.Value) string {
	if !rv.IsValid() {
		return "nil"
	}

	switch rv.Kind() {
	case reflect.String:
		return strconv.Quote(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.value(rv.Elem())
	case reflect.Array:
		// [16]byte style identities (uuid.UUID) read best through Stringer
		if str, ok := stringer(rv); ok {
			return strconv.Quote(str)
		}
		return "[" + s.elems(rv) + "]"
	case reflect.Slice:
		if rv.IsNil() {
			return "nil"
		}
		return "[" + s.elems(rv) + "]"
	case reflect.Map:
		return s.mapValue(rv)
	case reflect.Struct:
		if str, ok := stringer(rv); ok {
			return strconv.Quote(str)
		}
		return s.structValue(rv)
	}

	return s.jsonFallback(rv)
}

func (s defaultKeySerializer) elems(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.value(rv.Index(i))
	}
	return strings.Join(parts, ",")
}

func (s defaultKeySerializer) mapValue(rv reflect.Value) string {
	if rv.IsNil() {
		return "nil"
	}
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.value(iter.Key())+"="+s.value(iter.Value()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

func (s defaultKeySerializer) structValue(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.value(rv.Field(i)))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (s defaultKeySerializer) jsonFallback(rv reflect.Value) string {
	if rv.CanInterface() {
		if data, err := json.Marshal(rv.Interface()); err == nil {
			return "json:" + string(data)
		}
	}
	return fmt.Sprintf("%s:%v", rv.Type(), rv)
}

func stringer(rv reflect.Value) (string, bool) {
	if !rv.CanInterface() {
		return "", false
	}
	if st, ok := rv.Interface().(fmt.Stringer); ok {
		return st.String(), true
	}
	return "", false
}
