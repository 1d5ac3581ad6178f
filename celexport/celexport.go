// Package celexport renders a rule tree as the CEL expression consumed
// by the downstream rule engine, and type-checks that form against the
// event schema so nothing unparseable is ever persisted. It never
// evaluates anything; evaluation lives in the engine service.
package celexport

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/badgekit/badgerules/eventschema"
	"github.com/badgekit/badgerules/ruletree"
)

// Expression renders the boolean tree as a CEL expression. fields may be
// nil; it is only consulted to wrap timestamp literals.
func Expression(n ruletree.Node, fields ruletree.FieldTypes) (string, error) {
	switch t := n.(type) {
	case *ruletree.Condition:
		return conditionExpr(t, fields)
	case *ruletree.Group:
		if len(t.Children) == 0 {
			return "", fmt.Errorf("group has no children")
		}
		parts := make([]string, 0, len(t.Children))
		for _, child := range t.Children {
			expr, err := Expression(child, fields)
			if err != nil {
				return "", err
			}
			parts = append(parts, expr)
		}
		op := " && "
		if t.Operator == ruletree.LogicOr {
			op = " || "
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, op) + ")", nil
	default:
		return "", fmt.Errorf("unknown node kind %T", n)
	}
}

func conditionExpr(c *ruletree.Condition, fields ruletree.FieldTypes) (string, error) {
	f := c.Field
	isTimestamp := false
	if fields != nil {
		if ft, ok := fields.FieldType(c.Field); ok {
			isTimestamp = ft == ruletree.TypeTimestamp
		}
	}

	switch c.Operator {
	case ruletree.OpEq:
		v, err := literal(c.Value, isTimestamp)
		return fmt.Sprintf("%s == %s", f, v), err
	case ruletree.OpNeq:
		v, err := literal(c.Value, isTimestamp)
		return fmt.Sprintf("%s != %s", f, v), err
	case ruletree.OpGt:
		v, err := literal(c.Value, isTimestamp)
		return fmt.Sprintf("%s > %s", f, v), err
	case ruletree.OpGte:
		v, err := literal(c.Value, isTimestamp)
		return fmt.Sprintf("%s >= %s", f, v), err
	case ruletree.OpLt:
		v, err := literal(c.Value, isTimestamp)
		return fmt.Sprintf("%s < %s", f, v), err
	case ruletree.OpLte:
		v, err := literal(c.Value, isTimestamp)
		return fmt.Sprintf("%s <= %s", f, v), err
	case ruletree.OpIn, ruletree.OpNotIn:
		items, ok := c.Value.([]any)
		if !ok {
			return "", fmt.Errorf("operator %q requires an array value", c.Operator)
		}
		elems := make([]string, 0, len(items))
		for _, item := range items {
			v, err := literal(item, isTimestamp)
			if err != nil {
				return "", err
			}
			elems = append(elems, v)
		}
		expr := fmt.Sprintf("%s in [%s]", f, strings.Join(elems, ", "))
		if c.Operator == ruletree.OpNotIn {
			expr = "!(" + expr + ")"
		}
		return expr, nil
	case ruletree.OpContains:
		v, err := literal(c.Value, false)
		return fmt.Sprintf("%s.contains(%s)", f, v), err
	case ruletree.OpStartsWith:
		v, err := literal(c.Value, false)
		return fmt.Sprintf("%s.startsWith(%s)", f, v), err
	case ruletree.OpEndsWith:
		v, err := literal(c.Value, false)
		return fmt.Sprintf("%s.endsWith(%s)", f, v), err
	case ruletree.OpBetween:
		bounds, ok := c.Value.([]any)
		if !ok || len(bounds) != 2 {
			return "", fmt.Errorf("between requires exactly two bounds")
		}
		lo, err := literal(bounds[0], isTimestamp)
		if err != nil {
			return "", err
		}
		hi, err := literal(bounds[1], isTimestamp)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s >= %s && %s <= %s)", f, lo, f, hi), nil
	case ruletree.OpIsEmpty:
		return fmt.Sprintf("%s == null", f), nil
	case ruletree.OpIsNotEmpty:
		return fmt.Sprintf("%s != null", f), nil
	default:
		return "", fmt.Errorf("unknown operator %q", c.Operator)
	}
}

func literal(v any, isTimestamp bool) (string, error) {
	switch t := v.(type) {
	case string:
		if isTimestamp {
			return fmt.Sprintf("timestamp(%s)", strconv.Quote(t)), nil
		}
		return strconv.Quote(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case nil:
		return "", fmt.Errorf("missing literal value")
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

// Env builds a CEL environment declaring the top-level payload objects
// of a schema as dyn variables, mirroring how the engine service sets up
// its own environment.
func Env(schema eventschema.Schema) (*cel.Env, error) {
	roots := make(map[string]bool)
	for field := range schema {
		root, _, _ := strings.Cut(field, ".")
		roots[root] = true
	}

	names := make([]string, 0, len(roots))
	for name := range roots {
		names = append(names, name)
	}
	sort.Strings(names)

	var opts []cel.EnvOption
	for _, name := range names {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// Check renders the tree and compiles the result against the schema's
// environment. A rule that fails here would be rejected by the engine
// downstream, so the service refuses to store it.
func Check(n ruletree.Node, schema eventschema.Schema) error {
	expr, err := Expression(n, schema)
	if err != nil {
		return fmt.Errorf("failed to render expression: %w", err)
	}

	env, err := Env(schema)
	if err != nil {
		return err
	}

	_, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile error: %w", issues.Err())
	}
	return nil
}
