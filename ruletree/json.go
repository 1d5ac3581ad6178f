package ruletree

import (
	"encoding/json"
	"fmt"
)

// ParseError reports a malformed wire payload: invalid JSON, an unknown
// type discriminant, or a missing required field. Parsing is strict;
// nothing is silently defaulted.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Path, e.Message)
}

// Wire shapes:
//	Condition: {"type":"condition","field":...,"operator":...,"value":...}
//	Group:     {"type":"group","operator":"AND"|"OR","children":[...]}
type conditionWire struct {
	Type     string   `json:"type"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

type groupWire struct {
	Type     string  `json:"type"`
	Operator LogicOp `json:"operator"`
	Children []Node  `json:"children"`
}

// MarshalJSON encodes the condition with its "condition" discriminant.
// A nil value (isEmpty/isNotEmpty) is omitted.
func (c *Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(conditionWire{
		Type:     "condition",
		Field:    c.Field,
		Operator: c.Operator,
		Value:    c.Value,
	})
}

// MarshalJSON encodes the group with its "group" discriminant.
func (g *Group) MarshalJSON() ([]byte, error) {
	children := g.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(groupWire{
		Type:     "group",
		Operator: g.Operator,
		Children: children,
	})
}

// Marshal serializes a tree to its JSON wire form.
func Marshal(n Node) ([]byte, error) {
	if n == nil {
		return nil, &ParseError{Path: "$", Message: "nil node"}
	}
	return json.Marshal(n)
}

// Unmarshal parses a JSON wire payload into a tree. Unknown "type"
// discriminants and missing required fields yield a *ParseError.
// Group operator vocabulary and value shapes are checked by Validate,
// not here, so a structurally well-formed payload always parses.
func Unmarshal(data []byte) (Node, error) {
	return unmarshalNode(data, "$")
}

func unmarshalNode(data []byte, path string) (Node, error) {
	var probe struct {
		Type     *string            `json:"type"`
		Field    *string            `json:"field"`
		Operator *string            `json:"operator"`
		Value    json.RawMessage    `json:"value"`
		Children *[]json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("not a rule node object: %v", err)}
	}
	if probe.Type == nil {
		return nil, &ParseError{Path: path, Message: `missing "type" discriminant`}
	}

	switch *probe.Type {
	case "condition":
		if probe.Field == nil || *probe.Field == "" {
			return nil, &ParseError{Path: path, Message: `condition missing "field"`}
		}
		if probe.Operator == nil || *probe.Operator == "" {
			return nil, &ParseError{Path: path, Message: `condition missing "operator"`}
		}
		var value any
		if len(probe.Value) > 0 {
			if err := json.Unmarshal(probe.Value, &value); err != nil {
				return nil, &ParseError{Path: path, Message: fmt.Sprintf("malformed value: %v", err)}
			}
		}
		return &Condition{
			Field:    *probe.Field,
			Operator: Operator(*probe.Operator),
			Value:    value,
		}, nil

	case "group":
		if probe.Operator == nil || *probe.Operator == "" {
			return nil, &ParseError{Path: path, Message: `group missing "operator"`}
		}
		if probe.Children == nil {
			return nil, &ParseError{Path: path, Message: `group missing "children"`}
		}
		children := make([]Node, 0, len(*probe.Children))
		for i, raw := range *probe.Children {
			child, err := unmarshalNode(raw, fmt.Sprintf("%s.children[%d]", path, i))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return &Group{
			Operator: LogicOp(*probe.Operator),
			Children: children,
		}, nil

	default:
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("unknown node type %q", *probe.Type)}
	}
}
