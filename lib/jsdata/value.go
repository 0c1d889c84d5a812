package jsdata

import (
	"fmt"
	"math"
	"strconv"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the value of missing properties and of `undefined`.
var Undefined = undefined{}

// Func is a host function callable from evaluated scripts. `this` is the
// object the function was looked up on, or Undefined for plain calls.
//
// Evaluated values are one of: nil, Undefined, bool, float64, string,
// []any, map[string]any, Func.
type Func func(this any, args []any) (any, error)

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case undefined:
		return "undefined"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case Func:
		return "function"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil, undefined:
		return false
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case string:
		return v != ""
	}
	return true
}

func toNumber(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case nil:
		return 0, nil
	case undefined:
		return math.NaN(), nil
	case string:
		if v == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return math.NaN(), nil
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %s to number", typeName(v))
}

// ToJSON converts an evaluated value into a JSON-compatible tree with the
// semantics of JSON.stringify: functions and undefined are dropped from
// objects, become null inside arrays, and non-finite numbers become null.
func ToJSON(v any) (any, error) {
	return toJSON(v, 0)
}

func toJSON(v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested too deeply (cyclic structure?)")
	}
	switch v := v.(type) {
	case nil, bool, string:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil
		}
		return v, nil
	case undefined, Func:
		return nil, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			converted, err := toJSON(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			switch elem.(type) {
			case undefined, Func:
				continue
			}
			converted, err := toJSON(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

// ObjectAssign copies the own properties of each source object onto target,
// sources that are not objects are ignored like in Object.assign.
func ObjectAssign(target map[string]any, sources ...any) map[string]any {
	for _, source := range sources {
		obj, ok := source.(map[string]any)
		if !ok {
			continue
		}
		for key, value := range obj {
			target[key] = value
		}
	}
	return target
}

// MergingObject returns an object whose named methods merge their first
// argument into the object and return it, so calls can be chained:
// `table.lessons({id: 1}).update({elected: true})`.
func MergingObject(methods ...string) map[string]any {
	obj := map[string]any{}
	merge := Func(func(this any, args []any) (any, error) {
		target, ok := this.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("method called on %s", typeName(this))
		}
		if len(args) > 0 {
			ObjectAssign(target, args[0])
		}
		return target, nil
	})
	for _, name := range methods {
		obj[name] = merge
	}
	return obj
}

// NoopObject returns an object whose named methods do nothing.
func NoopObject(methods ...string) map[string]any {
	obj := map[string]any{}
	noop := Func(func(this any, args []any) (any, error) {
		return Undefined, nil
	})
	for _, name := range methods {
		obj[name] = noop
	}
	return obj
}

// Returning is a host function that ignores its arguments and returns
// the value produced by `value`, which is invoked on every call.
func Returning(value func() any) Func {
	return func(this any, args []any) (any, error) {
		return value(), nil
	}
}
