// Package schema validates decoded JSON-like trees (the output of
// jsdata.Extract or encoding/json) against JSON Schema documents before they
// are turned into typed values.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const baseUrl = "mem://schemas/"

// Error describes the first place a tree deviates from its shape.
type Error struct {
	// Path is a json-path like location, `$` is the root.
	Path   string
	Reason string
	Value  any
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema: %s: %s (value %s)", e.Path, e.Reason, describe(e.Value))
}

func describe(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		if len(v) > 32 {
			v = v[:32] + "..."
		}
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		return fmt.Sprintf("array of %d", len(v))
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// Shape is a compiled JSON Schema.
type Shape struct {
	ref      string
	compiled *jsonschema.Schema
}

func (s *Shape) String() string { return s.ref }

// Set holds JSON Schema documents that may $ref each other by file name.
type Set struct {
	compiler *jsonschema.Compiler
}

// NewSet loads every .json file at the root of fsys.
func NewSet(fsys fs.FS) (*Set, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		buff, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		err = compiler.AddResource(baseUrl+name, bytes.NewReader(buff))
		if err != nil {
			return nil, fmt.Errorf("load schema %s: %w", name, err)
		}
	}
	return &Set{compiler: compiler}, nil
}

// Shape compiles ref, a file name of the set optionally followed by a json
// pointer fragment, ex. `eamis.json#/$defs/lesson`.
func (s *Set) Shape(ref string) (*Shape, error) {
	compiled, err := s.compiler.Compile(baseUrl + ref)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", ref, err)
	}
	return &Shape{ref: ref, compiled: compiled}, nil
}

// MustShape is Shape for package level declarations.
func (s *Set) MustShape(ref string) *Shape {
	shape, err := s.Shape(ref)
	if err != nil {
		panic(err)
	}
	return shape
}

// Validate checks tree against shape, returning a *Error for the violation
// at the earliest location in the tree.
func Validate(tree any, shape *Shape) error {
	err := shape.compiled.Validate(tree)
	if err == nil {
		return nil
	}
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("validate against %s: %w", shape.ref, err)
	}

	violations := leaves(validationErr, nil)
	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.InstanceLocation != b.InstanceLocation {
			return pointerLess(a.InstanceLocation, b.InstanceLocation)
		}
		return a.KeywordLocation < b.KeywordLocation
	})
	first := violations[0]
	path, value := locate(tree, first.InstanceLocation)
	return &Error{Path: path, Reason: first.Message, Value: value}
}

func leaves(err *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return append(out, err)
	}
	for _, cause := range err.Causes {
		out = leaves(cause, out)
	}
	return out
}

func tokens(pointer string) []string {
	if pointer == "" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	for i, part := range parts {
		unescaped, err := url.PathUnescape(part)
		if err == nil {
			part = unescaped
		}
		part = strings.ReplaceAll(part, "~1", "/")
		parts[i] = strings.ReplaceAll(part, "~0", "~")
	}
	return parts
}

// pointerLess orders instance locations the way their members appear,
// array indices compare numerically.
func pointerLess(a, b string) bool {
	left, right := tokens(a), tokens(b)
	for i := 0; i < len(left) && i < len(right); i++ {
		if left[i] == right[i] {
			continue
		}
		x, errX := strconv.Atoi(left[i])
		y, errY := strconv.Atoi(right[i])
		if errX == nil && errY == nil {
			return x < y
		}
		return left[i] < right[i]
	}
	return len(left) < len(right)
}

// locate turns a json pointer into a `$[0].key` style path and returns the
// value found there.
func locate(tree any, pointer string) (string, any) {
	path := "$"
	for _, token := range tokens(pointer) {
		switch node := tree.(type) {
		case []any:
			i, err := strconv.Atoi(token)
			if err == nil && i >= 0 && i < len(node) {
				path = fmt.Sprintf("%s[%d]", path, i)
				tree = node[i]
				continue
			}
		case map[string]any:
			path = memberPath(path, token)
			tree = node[token]
			continue
		}
		path = memberPath(path, token)
		tree = nil
	}
	return path, tree
}

func memberPath(path, key string) string {
	if key != "" && strings.IndexFunc(key, func(r rune) bool {
		return !(r == '_' || r == '$' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) < 0 {
		return path + "." + key
	}
	return path + "[" + strconv.Quote(key) + "]"
}
