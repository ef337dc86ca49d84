package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Expression variables:
//
//	ok      whether the call succeeded
//	result  the call's result, as JSON
//	error   {kind, code, description, retry_after, migrate_to_chat_id}, empty on success
//	steps   results saved by earlier steps
//	users   seeded users by key
//	chats   seeded chats by key
//	bot     the bot's user
//	now     simulated unix time
//	response   what the bot did for a user action: {cause, calls, texts, buttons, error}
//	responses  one such summary per timer fired by an advance
//	last       the last message the bot sent
func newEnv() (*cel.Env, error) {
	dynMap := cel.MapType(cel.StringType, cel.DynType)
	return cel.NewEnv(
		cel.Variable("ok", cel.BoolType),
		cel.Variable("result", cel.DynType),
		cel.Variable("error", dynMap),
		cel.Variable("steps", dynMap),
		cel.Variable("users", dynMap),
		cel.Variable("chats", dynMap),
		cel.Variable("bot", dynMap),
		cel.Variable("now", cel.IntType),
		cel.Variable("response", dynMap),
		cel.Variable("responses", cel.ListType(cel.DynType)),
		cel.Variable("last", dynMap),
	)
}

type evaluator struct {
	env      *cel.Env
	programs map[string]cel.Program
}

func newEvaluator() (*evaluator, error) {
	env, err := newEnv()
	if err != nil {
		return nil, fmt.Errorf("expression environment: %w", err)
	}
	return &evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

func (e *evaluator) program(expr string) (cel.Program, error) {
	if p, ok := e.programs[expr]; ok {
		return p, nil
	}
	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	p, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	e.programs[expr] = p
	return p, nil
}

func (e *evaluator) eval(expr string, vars map[string]any) (ref.Val, error) {
	p, err := e.program(expr)
	if err != nil {
		return nil, err
	}
	out, _, err := p.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	return out, nil
}

// check evaluates a boolean expectation.
func (e *evaluator) check(expr string, vars map[string]any) (bool, error) {
	out, err := e.eval(expr, vars)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expectation %q is %s, not bool", expr, out.Type().TypeName())
	}
	return b, nil
}

var placeholderRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expand replaces ${expr} placeholders in params. A string that is exactly one
// placeholder takes the expression's value and type; placeholders inside longer
// strings are formatted in place.
func (e *evaluator) expand(v any, vars map[string]any) (any, error) {
	switch x := v.(type) {
	case string:
		if m := placeholderRe.FindStringSubmatch(x); m != nil && m[0] == x {
			out, err := e.eval(m[1], vars)
			if err != nil {
				return nil, err
			}
			return native(out)
		}
		var firstErr error
		s := placeholderRe.ReplaceAllStringFunc(x, func(ph string) string {
			out, err := e.eval(placeholderRe.FindStringSubmatch(ph)[1], vars)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return ph
			}
			return fmt.Sprint(out.Value())
		})
		return s, firstErr
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			ev, err := e.expand(val, vars)
			if err != nil {
				return nil, err
			}
			m[k] = ev
		}
		return m, nil
	case []any:
		l := make([]any, len(x))
		for i, val := range x {
			ev, err := e.expand(val, vars)
			if err != nil {
				return nil, err
			}
			l[i] = ev
		}
		return l, nil
	}
	return v, nil
}

func native(v ref.Val) (any, error) {
	switch v.(type) {
	case traits.Mapper:
		return v.ConvertToNative(reflect.TypeOf(map[string]any{}))
	case traits.Lister:
		return v.ConvertToNative(reflect.TypeOf([]any{}))
	}
	return v.Value(), nil
}

// toJSONValue turns a result into plain maps, lists and scalars with integral
// numbers as int64, the shape expressions see.
func toJSONValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out), nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeNumbers(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = normalizeNumbers(val)
		}
		return x
	}
	return v
}
