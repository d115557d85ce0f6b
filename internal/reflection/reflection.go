// Package reflection provides internal helpers for turning arbitrary values
// into names and strings.
package reflection

import (
	"fmt"
	"reflect"
)

// TypeName returns the short type name of v, without package path.
// Pointers are dereferenced; nil yields "<nil>".
func TypeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}

// Flatten renders v as one or more strings for query and form encoding.
// Slices and arrays produce one entry per element, []byte is treated as a
// string, and nil produces a single empty value.
func Flatten(v any) []string {
	if v == nil {
		return []string{""}
	}
	switch x := v.(type) {
	case string:
		return []string{x}
	case []byte:
		return []string{string(x)}
	case []string:
		return append([]string(nil), x...)
	case fmt.Stringer:
		return []string{x.String()}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return []string{""}
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			out = append(out, scalar(rv.Index(i)))
		}
		return out
	default:
		return []string{scalar(rv)}
	}
}

func scalar(rv reflect.Value) string {
	if !rv.IsValid() {
		return ""
	}
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return ""
	}
	v := rv.Interface()
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return fmt.Sprint(rv.Interface())
}
