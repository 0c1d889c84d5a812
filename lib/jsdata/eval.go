package jsdata

import (
	"fmt"
)

// EvalError is returned when a syntactically valid script fails while running.
type EvalError struct {
	Offset  int
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluation error at offset %d: %s", e.Offset, e.Message)
}

// globalAliases all refer to the global scope itself unless shadowed.
var globalAliases = map[string]bool{
	"window":     true,
	"self":       true,
	"globalThis": true,
}

type interpreter struct {
	globals map[string]any
	depth   int
}

func newInterpreter(setup Setup) *interpreter {
	globals := make(map[string]any, len(setup.Globals))
	for key, value := range setup.Globals {
		globals[key] = value
	}
	return &interpreter{globals: globals}
}

func evalErr(n node, format string, args ...any) error {
	return &EvalError{Offset: n.pos(), Message: fmt.Sprintf(format, args...)}
}

func (in *interpreter) run(program []node) error {
	for _, stmt := range program {
		switch stmt := stmt.(type) {
		case declNode:
			var value any = Undefined
			if stmt.value != nil {
				var err error
				value, err = in.eval(stmt.value)
				if err != nil {
					return err
				}
			} else if _, exists := in.globals[stmt.name]; exists {
				// `var x;` does not reset an existing binding
				continue
			}
			in.globals[stmt.name] = value
		case exprStmt:
			_, err := in.eval(stmt.expr)
			if err != nil {
				return err
			}
		default:
			return evalErr(stmt, "unsupported statement")
		}
	}
	return nil
}

func (in *interpreter) lookup(n identNode) (any, error) {
	value, ok := in.globals[n.name]
	if ok {
		return value, nil
	}
	if globalAliases[n.name] {
		return in.globals, nil
	}
	return nil, evalErr(n, "%s is not defined", n.name)
}

func (in *interpreter) eval(n node) (any, error) {
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > maxDepth {
		return nil, evalErr(n, "evaluation nested too deeply")
	}

	switch n := n.(type) {
	case literalNode:
		return n.value, nil
	case identNode:
		return in.lookup(n)
	case arrayNode:
		out := make([]any, len(n.elements))
		for i, elem := range n.elements {
			value, err := in.eval(elem)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	case objectNode:
		out := make(map[string]any, len(n.keys))
		for i, key := range n.keys {
			value, err := in.eval(n.values[i])
			if err != nil {
				return nil, err
			}
			out[key] = value
		}
		return out, nil
	case unaryNode:
		operand, err := in.eval(n.operand)
		if err != nil {
			return nil, err
		}
		switch n.operator {
		case "!":
			return !truthy(operand), nil
		case "+", "-":
			num, err := toNumber(operand)
			if err != nil {
				return nil, evalErr(n, "%s", err.Error())
			}
			if n.operator == "-" {
				return -num, nil
			}
			return num, nil
		}
		return nil, evalErr(n, "unsupported operator %q", n.operator)
	case memberNode:
		object, key, err := in.member(n)
		if err != nil {
			return nil, err
		}
		return in.get(n, object, key)
	case callNode:
		return in.call(n)
	case assignNode:
		value, err := in.eval(n.value)
		if err != nil {
			return nil, err
		}
		switch target := n.target.(type) {
		case identNode:
			if _, ok := in.globals[target.name]; !ok && globalAliases[target.name] {
				return nil, evalErr(n, "cannot reassign %s", target.name)
			}
			in.globals[target.name] = value
		case memberNode:
			object, key, err := in.member(target)
			if err != nil {
				return nil, err
			}
			obj, ok := object.(map[string]any)
			if !ok {
				return nil, evalErr(n, "cannot set property %q of %s", key, typeName(object))
			}
			obj[key] = value
		default:
			return nil, evalErr(n, "invalid assignment target")
		}
		return value, nil
	}
	return nil, evalErr(n, "unsupported expression")
}

// member evaluates the object and the property key of a member expression.
func (in *interpreter) member(n memberNode) (any, string, error) {
	object, err := in.eval(n.object)
	if err != nil {
		return nil, "", err
	}
	if n.computed == nil {
		return object, n.property, nil
	}
	keyValue, err := in.eval(n.computed)
	if err != nil {
		return nil, "", err
	}
	switch k := keyValue.(type) {
	case string:
		return object, k, nil
	case float64:
		return object, formatNumber(k), nil
	case bool:
		if k {
			return object, "true", nil
		}
		return object, "false", nil
	case nil:
		return object, "null", nil
	case undefined:
		return object, "undefined", nil
	}
	return nil, "", evalErr(n, "unsupported property key of type %s", typeName(keyValue))
}

func (in *interpreter) get(n node, object any, key string) (any, error) {
	switch obj := object.(type) {
	case map[string]any:
		value, ok := obj[key]
		if !ok {
			return Undefined, nil
		}
		return value, nil
	case []any:
		if key == "length" {
			return float64(len(obj)), nil
		}
		index, ok := arrayIndex(key)
		if !ok || index >= len(obj) {
			return Undefined, nil
		}
		return obj[index], nil
	case string:
		if key == "length" {
			return float64(len([]rune(obj))), nil
		}
		return Undefined, nil
	case nil, undefined:
		return nil, evalErr(n, "cannot read property %q of %s", key, typeName(object))
	}
	return Undefined, nil
}

func arrayIndex(key string) (int, bool) {
	if key == "" || len(key) > 9 {
		return 0, false
	}
	index := 0
	for _, c := range key {
		if c < '0' || c > '9' {
			return 0, false
		}
		index = index*10 + int(c-'0')
	}
	if len(key) > 1 && key[0] == '0' {
		return 0, false
	}
	return index, true
}

func (in *interpreter) call(n callNode) (any, error) {
	var this any = Undefined
	var callee any

	switch target := n.callee.(type) {
	case memberNode:
		object, key, err := in.member(target)
		if err != nil {
			return nil, err
		}
		callee, err = in.get(target, object, key)
		if err != nil {
			return nil, err
		}
		this = object
	default:
		var err error
		callee, err = in.eval(n.callee)
		if err != nil {
			return nil, err
		}
	}

	fn, ok := callee.(Func)
	if !ok {
		return nil, evalErr(n, "%s is not a function", typeName(callee))
	}

	args := make([]any, len(n.args))
	for i, arg := range n.args {
		value, err := in.eval(arg)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}

	result, err := fn(this, args)
	if err != nil {
		return nil, evalErr(n, "host function failed: %s", err.Error())
	}
	return result, nil
}
