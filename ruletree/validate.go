package ruletree

import (
	"fmt"
	"time"
)

// DefaultMaxDepth bounds tree nesting to keep recursion and payload size
// in check. Editor usage observed so far stays under 5 levels.
const DefaultMaxDepth = 10

// ValidationError reports the first semantic violation found in a tree,
// depth-first and left-to-right, so the reported violation is stable for
// a given input.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule at %s: %s", e.Path, e.Message)
}

// Validator checks a tree's structural and semantic invariants.
// Fields may be nil for a structure-only pass (the canvas translator
// uses this before the caller re-validates against the event schema).
type Validator struct {
	Fields   FieldTypes
	MaxDepth int
}

// NewValidator returns a validator bound to a field-type registry with
// the default depth ceiling.
func NewValidator(fields FieldTypes) *Validator {
	return &Validator{Fields: fields, MaxDepth: DefaultMaxDepth}
}

// Validate walks the tree depth-first, left-to-right, and returns the
// first violation as a *ValidationError, or nil when the tree is valid.
// The input is never mutated.
func (v *Validator) Validate(n Node) error {
	maxDepth := v.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if n == nil {
		return &ValidationError{Path: "$", Message: "rule has no root node"}
	}
	return v.validateNode(n, "$", 1, maxDepth)
}

func (v *Validator) validateNode(n Node, path string, depth, maxDepth int) error {
	if depth > maxDepth {
		return &ValidationError{Path: path, Message: fmt.Sprintf("nesting depth exceeds maximum of %d", maxDepth)}
	}

	switch t := n.(type) {
	case *Condition:
		return v.validateCondition(t, path)
	case *Group:
		if t.Operator != LogicAnd && t.Operator != LogicOr {
			return &ValidationError{Path: path, Message: fmt.Sprintf("unknown group operator %q (must be AND or OR)", t.Operator)}
		}
		if len(t.Children) == 0 {
			return &ValidationError{Path: path, Message: "group must have at least one child"}
		}
		for i, child := range t.Children {
			if child == nil {
				return &ValidationError{Path: fmt.Sprintf("%s.children[%d]", path, i), Message: "nil child node"}
			}
			if err := v.validateNode(child, fmt.Sprintf("%s.children[%d]", path, i), depth+1, maxDepth); err != nil {
				return err
			}
		}
		return nil
	default:
		return &ValidationError{Path: path, Message: fmt.Sprintf("unknown node kind %T", n)}
	}
}

// operatorsByType lists which operators are compatible with each field
// type. isEmpty/isNotEmpty apply to every type (absence checks).
var operatorsByType = map[ScalarType]map[Operator]bool{
	TypeString: {
		OpEq: true, OpNeq: true, OpIn: true, OpNotIn: true,
		OpContains: true, OpStartsWith: true, OpEndsWith: true,
		OpIsEmpty: true, OpIsNotEmpty: true,
	},
	TypeNumber: {
		OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
		OpIn: true, OpNotIn: true, OpBetween: true,
		OpIsEmpty: true, OpIsNotEmpty: true,
	},
	TypeBool: {
		OpEq: true, OpNeq: true,
		OpIsEmpty: true, OpIsNotEmpty: true,
	},
	TypeTimestamp: {
		OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
		OpBetween: true,
		OpIsEmpty: true, OpIsNotEmpty: true,
	},
}

var knownOperators = map[Operator]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNotIn: true, OpContains: true, OpStartsWith: true,
	OpEndsWith: true, OpBetween: true, OpIsEmpty: true, OpIsNotEmpty: true,
}

func (v *Validator) validateCondition(c *Condition, path string) error {
	if c.Field == "" {
		return &ValidationError{Path: path, Message: "condition has no field"}
	}
	if !knownOperators[c.Operator] {
		return &ValidationError{Path: path, Message: fmt.Sprintf("unknown operator %q", c.Operator)}
	}

	var fieldType ScalarType
	haveType := false
	if v.Fields != nil {
		ft, ok := v.Fields.FieldType(c.Field)
		if !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("field %q is not part of the event schema", c.Field)}
		}
		if !operatorsByType[ft][c.Operator] {
			return &ValidationError{Path: path, Message: fmt.Sprintf("operator %q is not applicable to %s field %q", c.Operator, ft, c.Field)}
		}
		fieldType = ft
		haveType = true
	}

	return v.validateValue(c, path, fieldType, haveType)
}

func (v *Validator) validateValue(c *Condition, path string, ft ScalarType, haveType bool) error {
	switch c.Operator {
	case OpIsEmpty, OpIsNotEmpty:
		if c.Value != nil {
			return &ValidationError{Path: path, Message: fmt.Sprintf("operator %q takes no value", c.Operator)}
		}
		return nil

	case OpIn, OpNotIn:
		items, ok := c.Value.([]any)
		if !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("operator %q requires an array value", c.Operator)}
		}
		if len(items) == 0 {
			return &ValidationError{Path: path, Message: fmt.Sprintf("operator %q requires a non-empty array", c.Operator)}
		}
		for i, item := range items {
			if err := checkScalar(item, ft, haveType); err != nil {
				return &ValidationError{Path: path, Message: fmt.Sprintf("element %d of %q value: %v", i, c.Operator, err)}
			}
		}
		return nil

	case OpBetween:
		bounds, ok := c.Value.([]any)
		if !ok || len(bounds) != 2 {
			return &ValidationError{Path: path, Message: "between requires exactly two bounds [low, high]"}
		}
		for i, b := range bounds {
			if err := checkScalar(b, ft, haveType); err != nil {
				return &ValidationError{Path: path, Message: fmt.Sprintf("between bound %d: %v", i, err)}
			}
		}
		if !boundsOrdered(bounds[0], bounds[1]) {
			return &ValidationError{Path: path, Message: "between lower bound exceeds upper bound"}
		}
		return nil

	default:
		// Scalar comparison operators.
		if c.Value == nil {
			return &ValidationError{Path: path, Message: fmt.Sprintf("operator %q requires a value", c.Operator)}
		}
		if _, isSlice := c.Value.([]any); isSlice {
			return &ValidationError{Path: path, Message: fmt.Sprintf("operator %q requires a scalar value", c.Operator)}
		}
		// contains/startsWith/endsWith compare string content regardless
		// of declared type (the type check above already restricts them
		// to string fields when a registry is present).
		if c.Operator == OpContains || c.Operator == OpStartsWith || c.Operator == OpEndsWith {
			if _, ok := c.Value.(string); !ok {
				return &ValidationError{Path: path, Message: fmt.Sprintf("operator %q requires a string value", c.Operator)}
			}
			return nil
		}
		if err := checkScalar(c.Value, ft, haveType); err != nil {
			return &ValidationError{Path: path, Message: err.Error()}
		}
		return nil
	}
}

// checkScalar verifies a literal matches the declared field type. With no
// registry it only rejects non-scalar shapes.
func checkScalar(v any, ft ScalarType, haveType bool) error {
	if v == nil {
		return fmt.Errorf("value must not be null")
	}
	if _, isSlice := v.([]any); isSlice {
		return fmt.Errorf("value must be a scalar")
	}
	if _, isMap := v.(map[string]any); isMap {
		return fmt.Errorf("value must be a scalar")
	}
	if !haveType {
		return nil
	}
	switch ft {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("value %v is not a string", v)
		}
	case TypeNumber:
		if _, ok := toFloat64(v); !ok {
			return fmt.Errorf("value %v is not a number", v)
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("value %v is not a boolean", v)
		}
	case TypeTimestamp:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("value %v is not an RFC 3339 timestamp", v)
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("value %q is not an RFC 3339 timestamp", s)
		}
	}
	return nil
}

// boundsOrdered reports low <= high for numeric or timestamp bounds.
// Incomparable bound pairs are left to checkScalar to reject.
func boundsOrdered(low, high any) bool {
	if nl, nh, ok := asNumbers(low, high); ok {
		return nl <= nh
	}
	ls, lok := low.(string)
	hs, hok := high.(string)
	if lok && hok {
		lt, lerr := time.Parse(time.RFC3339, ls)
		ht, herr := time.Parse(time.RFC3339, hs)
		if lerr == nil && herr == nil {
			return !lt.After(ht)
		}
		return ls <= hs
	}
	return true
}
