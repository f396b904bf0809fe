package protocol

import (
	"strings"

	"github.com/icza/s2prot"
)

// Fields is a decoded struct keyed by field name without the m_ prefix.
// Nested structs are Fields, s2prot.Struct or plain maps; arrays are []any.
type Fields map[string]any

func asFields(v any) (Fields, bool) {
	switch t := v.(type) {
	case Fields:
		return t, t != nil
	case s2prot.Struct:
		return Fields(t), t != nil
	case map[string]any:
		return Fields(t), t != nil
	}
	return nil, false
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// lookup walks path. Absent optionals decode to nil and count as missing.
func (f Fields) lookup(path []string) (any, bool) {
	if f == nil || len(path) == 0 {
		return nil, false
	}
	cur := f
	for i, name := range path {
		v, ok := cur[name]
		if !ok || v == nil {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		if cur, ok = asFields(v); !ok {
			return nil, false
		}
	}
	return nil, false
}

// Has reports whether path leads to a present value.
func (f Fields) Has(path ...string) bool {
	_, ok := f.lookup(path)
	return ok
}

// Int returns the integer at path.
func (f Fields) Int(path ...string) (int64, bool) {
	v, ok := f.lookup(path)
	if !ok {
		return 0, false
	}
	return asInt(v)
}

// String returns the blob at path with trailing NULs removed.
func (f Fields) String(path ...string) (string, bool) {
	v, ok := f.lookup(path)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return strings.TrimRight(s, "\x00"), true
	case []byte:
		return strings.TrimRight(string(s), "\x00"), true
	}
	return "", false
}

// Sub returns the struct at path.
func (f Fields) Sub(path ...string) (Fields, bool) {
	v, ok := f.lookup(path)
	if !ok {
		return nil, false
	}
	return asFields(v)
}

// List returns the array at path, nil when absent.
func (f Fields) List(path ...string) []any {
	v, ok := f.lookup(path)
	if !ok {
		return nil
	}
	switch l := v.(type) {
	case []any:
		return l
	case []Fields:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out
	case []s2prot.Struct:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out
	case []int64:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out
	}
	return nil
}

// Structs returns the array at path keeping only struct items.
func (f Fields) Structs(path ...string) []Fields {
	var out []Fields
	for _, item := range f.List(path...) {
		if s, ok := asFields(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// Ints returns the array at path as integers. ok is false when an item is
// not an integer.
func (f Fields) Ints(path ...string) ([]int64, bool) {
	items := f.List(path...)
	out := make([]int64, 0, len(items))
	for _, item := range items {
		n, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
