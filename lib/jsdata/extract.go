// Package jsdata recovers data embedded in inline scripts by evaluating them
// with a small interpreter for a literal-construction subset of javascript.
//
// Supported: var/let/const declarations, assignments to variables and
// properties, object and array literals, string/number/boolean/null/undefined
// literals, unary -, + and !, property access and calls to host functions
// provided through Setup. The interpreter has no access to the network, the
// filesystem or the host process, scripts can only touch the values in Setup.
package jsdata

import (
	"errors"
	"fmt"
	"strings"
)

// Setup seeds the global scope before a script runs. It is typically used to
// stub browser globals the script expects to exist.
type Setup struct {
	Globals map[string]any
}

// ExtractionError wraps any failure to evaluate a script or to read back the
// requested variable, it keeps the offending source for debugging markup drift.
type ExtractionError struct {
	Variable string
	Source   string
	// Offset is the byte offset in Source the failure was detected at, -1 if unknown.
	Offset int
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("jsdata: extract %s: %s", e.Variable, e.Err.Error())
	}
	return fmt.Sprintf(
		"jsdata: extract %s: %s (near %q)",
		e.Variable, e.Err.Error(), e.Snippet(40),
	)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Snippet returns up to `radius` bytes of source on each side of Offset.
func (e *ExtractionError) Snippet(radius int) string {
	if e.Offset < 0 || e.Offset > len(e.Source) {
		return ""
	}
	start := max(0, e.Offset-radius)
	end := min(len(e.Source), e.Offset+radius)
	return strings.ToValidUTF8(e.Source[start:end], "")
}

func errorOffset(err error) int {
	var syntaxErr *SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Offset
	}
	return -1
}

// Extract evaluates source with the given setup and returns the final value
// of `variable` (an identifier optionally followed by `.property` segments)
// as a JSON-compatible tree.
func Extract(source, variable string, setup Setup) (any, error) {
	fail := func(err error) (any, error) {
		return nil, &ExtractionError{
			Variable: variable,
			Source:   source,
			Offset:   errorOffset(err),
			Err:      err,
		}
	}

	ref, err := parseReference(variable)
	if err != nil {
		return nil, &ExtractionError{
			Variable: variable,
			Source:   source,
			Offset:   -1,
			Err:      fmt.Errorf("invalid variable reference: %w", err),
		}
	}

	program, err := parseProgram(source)
	if err != nil {
		return fail(err)
	}

	in := newInterpreter(setup)
	err = in.run(program)
	if err != nil {
		return fail(err)
	}

	value, err := in.eval(ref)
	if err != nil {
		return nil, &ExtractionError{Variable: variable, Source: source, Offset: -1, Err: err}
	}
	if value == Undefined {
		return nil, &ExtractionError{
			Variable: variable,
			Source:   source,
			Offset:   -1,
			Err:      fmt.Errorf("%s is undefined after evaluation", variable),
		}
	}

	tree, err := ToJSON(value)
	if err != nil {
		return nil, &ExtractionError{Variable: variable, Source: source, Offset: -1, Err: err}
	}
	return tree, nil
}
