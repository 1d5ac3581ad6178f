// Package canvas models the free-form node-and-edge graph a user builds
// in the visual rule editor, and converts it to and from the canonical
// rule tree. The graph is looser than the tree: it can contain
// disconnected nodes, dangling edges, and cycles, all of which the
// translator reports as a list so the editor can surface every problem
// at once.
package canvas

import "github.com/badgekit/badgerules/ruletree"

// Kind discriminates the node types the editor can place.
type Kind string

const (
	KindCondition Kind = "condition"
	KindCombiner  Kind = "combiner"
	KindAction    Kind = "action"
)

// Position holds canvas coordinates for a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the per-kind payload of a canvas node. Condition
// nodes use Field/Operator/Value, combiner nodes use Logic, action nodes
// use Effect/TargetCode.
type NodeData struct {
	Field    string                `json:"field,omitempty"`
	Operator ruletree.Operator     `json:"operator,omitempty"`
	Value    any                   `json:"value,omitempty"`
	Logic    ruletree.LogicOp      `json:"logic,omitempty"`
	Effect   ruletree.ActionEffect `json:"effect,omitempty"`
	Target   string                `json:"targetCode,omitempty"`
}

// Node is a single element on the canvas.
type Node struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge connects a child node's output to a parent combiner's input or to
// the terminal action node. Edge slice order is edge creation order; the
// translator preserves it as child order.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the editor-side intermediate representation of a rule.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
