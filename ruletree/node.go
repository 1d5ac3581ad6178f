// Package ruletree defines the canonical representation of a badge rule:
// a boolean expression tree of condition leaves combined by AND/OR groups.
// The tree is authored visually (see the canvas package), validated here,
// and serialized to JSON for the rule storage API. Evaluation against
// event payloads happens in the downstream rule engine, not here.
package ruletree

// Node is the tagged union of tree shapes: a *Condition leaf or a *Group
// internal node. The interface is sealed so traversals can type-switch
// exhaustively.
type Node interface {
	isNode()
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "notIn"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpBetween    Operator = "between"
	OpIsEmpty    Operator = "isEmpty"
	OpIsNotEmpty Operator = "isNotEmpty"
)

// LogicOp combines the children of a group.
type LogicOp string

const (
	LogicAnd LogicOp = "AND"
	LogicOr  LogicOp = "OR"
)

// Condition is a leaf predicate comparing a named field of the event
// payload against a value. Value's shape depends on Operator: a scalar
// for comparison operators, a two-element [low, high] slice for between,
// a non-empty slice for in/notIn, and nil for isEmpty/isNotEmpty.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Group combines one or more child nodes with AND or OR. A group with
// zero children is representable but rejected by Validate.
type Group struct {
	Operator LogicOp
	Children []Node
}

func (*Condition) isNode() {}
func (*Group) isNode()     {}

// ScalarType is the declared type of an event payload field, supplied by
// the event schema registry.
type ScalarType string

const (
	TypeString    ScalarType = "string"
	TypeNumber    ScalarType = "number"
	TypeBool      ScalarType = "bool"
	TypeTimestamp ScalarType = "timestamp"
)

// FieldTypes resolves a field name (dotted path into the event payload,
// e.g. "user.level") to its declared scalar type. The second return is
// false when the field is not part of the event schema.
type FieldTypes interface {
	FieldType(name string) (ScalarType, bool)
}

// ActionEffect identifies what a rule grants when its condition tree
// evaluates true.
type ActionEffect string

const (
	EffectGrantBadge   ActionEffect = "grant_badge"
	EffectGrantBenefit ActionEffect = "grant_benefit"
)

// Action is a post-match effect attached at the rule root. Actions sit
// outside the boolean tree; the canvas translator returns them alongside
// the tree.
type Action struct {
	Effect     ActionEffect `json:"effect"`
	TargetCode string       `json:"targetCode"`
}

// Depth returns the height of the tree: 1 for a bare condition,
// 1 + max child depth for a group. An empty group has depth 1.
func Depth(n Node) int {
	switch t := n.(type) {
	case *Condition:
		return 1
	case *Group:
		max := 0
		for _, c := range t.Children {
			if d := Depth(c); d > max {
				max = d
			}
		}
		return 1 + max
	default:
		return 0
	}
}

// CountConditions returns the number of condition leaves reachable from n.
func CountConditions(n Node) int {
	switch t := n.(type) {
	case *Condition:
		return 1
	case *Group:
		total := 0
		for _, c := range t.Children {
			total += CountConditions(c)
		}
		return total
	default:
		return 0
	}
}
