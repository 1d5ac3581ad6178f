package canvas

import (
	"fmt"

	"github.com/badgekit/badgerules/ruletree"
)

// ToTree reduces a canvas graph to the canonical rule tree plus the
// action list attached at its root. The reduction runs in two phases:
// first an adjacency map is built from the edge list (reporting
// duplicate node IDs and dangling edges), then a backward depth-first
// walk from the action node(s) resolves combiners into groups and
// condition nodes into leaves, with a visited set guarding against
// cycles. Every problem is collected into a ConversionErrors list; the
// tree and actions are only returned when the list is empty.
//
// Field/operator typing against the event schema is the caller's
// concern; the structural tree invariants are checked here before
// returning success.
func ToTree(g Graph) (ruletree.Node, []ruletree.Action, error) {
	r := newReduction(g)
	tree, actions := r.run()
	if len(r.errs) > 0 {
		return nil, nil, r.errs
	}
	return tree, actions, nil
}

type reduction struct {
	graph    Graph
	nodes    map[string]*Node
	incoming map[string][]Edge // target node ID -> edges in creation order
	outgoing map[string]int    // source node ID -> edge count
	visited  map[string]bool
	errs     ConversionErrors
}

func newReduction(g Graph) *reduction {
	r := &reduction{
		graph:    g,
		nodes:    make(map[string]*Node, len(g.Nodes)),
		incoming: make(map[string][]Edge),
		outgoing: make(map[string]int),
		visited:  make(map[string]bool),
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, dup := r.nodes[n.ID]; dup {
			r.fail(&ConversionError{Kind: ErrDuplicateNode, NodeID: n.ID, Message: "node id appears more than once"})
			continue
		}
		r.nodes[n.ID] = n
	}

	for _, e := range g.Edges {
		src, srcOK := r.nodes[e.Source]
		tgt, tgtOK := r.nodes[e.Target]
		if !srcOK || !tgtOK {
			r.fail(&ConversionError{Kind: ErrDanglingEdge, EdgeID: e.ID, Message: "edge references a nonexistent node"})
			continue
		}
		if src.Kind == KindAction {
			r.fail(&ConversionError{Kind: ErrBadNodeData, EdgeID: e.ID, Message: "action node cannot feed another node"})
			continue
		}
		r.incoming[e.Target] = append(r.incoming[e.Target], e)
		// Feeding several actions from the root is fine; feeding several
		// combiners would need the node to appear twice in the tree.
		if tgt.Kind != KindAction {
			r.outgoing[e.Source]++
		}
	}

	return r
}

func (r *reduction) fail(e *ConversionError) {
	r.errs = append(r.errs, e)
}

func (r *reduction) run() (ruletree.Node, []ruletree.Action) {
	var actionNodes []*Node
	for i := range r.graph.Nodes {
		n := &r.graph.Nodes[i]
		if n.Kind == KindAction && r.nodes[n.ID] == n {
			actionNodes = append(actionNodes, n)
		}
	}

	if len(actionNodes) == 0 {
		r.fail(&ConversionError{Kind: ErrNoAction, Message: "no action configured: connect the rule to a grant action"})
		return nil, nil
	}

	// A node feeding more than one parent would have to appear twice in
	// the tree; reject the sharing explicitly instead of duplicating.
	for i := range r.graph.Nodes {
		n := &r.graph.Nodes[i]
		if r.outgoing[n.ID] > 1 {
			r.fail(&ConversionError{Kind: ErrNodeReused, NodeID: n.ID, Message: "node output is connected to more than one parent"})
		}
	}

	// Every action hangs off the root of the single condition tree.
	var rootID string
	actions := make([]ruletree.Action, 0, len(actionNodes))
	for _, an := range actionNodes {
		r.visited[an.ID] = true
		in := r.incoming[an.ID]
		switch {
		case len(in) == 0:
			r.fail(&ConversionError{Kind: ErrActionNoInput, NodeID: an.ID, Message: "action is not connected to a condition or combiner"})
			continue
		case len(in) > 1:
			r.fail(&ConversionError{Kind: ErrMultipleRoots, NodeID: an.ID, Message: "multiple independent graphs feed one action"})
			continue
		}
		if rootID == "" {
			rootID = in[0].Source
		} else if rootID != in[0].Source {
			r.fail(&ConversionError{Kind: ErrMultipleRoots, NodeID: an.ID, Message: "actions are attached to different roots"})
		}
		actions = append(actions, r.actionOf(an))
	}

	var tree ruletree.Node
	if rootID != "" {
		tree = r.resolve(rootID, map[string]bool{})
	}

	// Anything the backward walk never reached is floating on the canvas.
	for i := range r.graph.Nodes {
		n := &r.graph.Nodes[i]
		if r.nodes[n.ID] == n && !r.visited[n.ID] {
			r.fail(&ConversionError{Kind: ErrDisconnectedNode, NodeID: n.ID, Message: "node is not connected to the rule"})
		}
	}

	if len(r.errs) > 0 {
		return nil, nil
	}

	v := &ruletree.Validator{} // structure only; typing is the caller's pass
	if err := v.Validate(tree); err != nil {
		r.fail(&ConversionError{Kind: ErrInvalidTree, Message: err.Error()})
		return nil, nil
	}

	return tree, actions
}

func (r *reduction) actionOf(n *Node) ruletree.Action {
	if n.Data.Effect != ruletree.EffectGrantBadge && n.Data.Effect != ruletree.EffectGrantBenefit {
		r.fail(&ConversionError{Kind: ErrBadNodeData, NodeID: n.ID, Message: fmt.Sprintf("unknown action effect %q", n.Data.Effect)})
	}
	if n.Data.Target == "" {
		r.fail(&ConversionError{Kind: ErrBadNodeData, NodeID: n.ID, Message: "action has no target badge or benefit"})
	}
	return ruletree.Action{Effect: n.Data.Effect, TargetCode: n.Data.Target}
}

// resolve walks backward from a node, turning combiners into groups and
// condition nodes into leaves. onPath is the current recursion stack;
// revisiting a node already on it means the editor produced a cycle, so
// the walk stops there rather than recursing forever.
func (r *reduction) resolve(id string, onPath map[string]bool) ruletree.Node {
	if onPath[id] {
		r.fail(&ConversionError{Kind: ErrCycle, NodeID: id, Message: "cycle detected: node feeds into one of its own ancestors"})
		return nil
	}
	r.visited[id] = true

	n := r.nodes[id]
	switch n.Kind {
	case KindCondition:
		if len(r.incoming[id]) > 0 {
			r.fail(&ConversionError{Kind: ErrConditionInput, NodeID: id, Message: "condition node cannot have inputs"})
		}
		if n.Data.Field == "" || n.Data.Operator == "" {
			r.fail(&ConversionError{Kind: ErrBadNodeData, NodeID: id, Message: "condition node is not fully configured"})
		}
		return &ruletree.Condition{
			Field:    n.Data.Field,
			Operator: n.Data.Operator,
			Value:    n.Data.Value,
		}

	case KindCombiner:
		if n.Data.Logic != ruletree.LogicAnd && n.Data.Logic != ruletree.LogicOr {
			r.fail(&ConversionError{Kind: ErrBadNodeData, NodeID: id, Message: fmt.Sprintf("unknown combiner logic %q", n.Data.Logic)})
		}
		in := r.incoming[id]
		if len(in) == 0 {
			r.fail(&ConversionError{Kind: ErrCombinerNoInput, NodeID: id, Message: "combiner has no inputs"})
			return nil
		}
		onPath[id] = true
		children := make([]ruletree.Node, 0, len(in))
		for _, e := range in {
			if child := r.resolve(e.Source, onPath); child != nil {
				children = append(children, child)
			}
		}
		delete(onPath, id)
		return &ruletree.Group{Operator: n.Data.Logic, Children: children}

	case KindAction:
		r.fail(&ConversionError{Kind: ErrBadNodeData, NodeID: id, Message: "action node cannot be part of the condition tree"})
		return nil

	default:
		r.fail(&ConversionError{Kind: ErrBadNodeData, NodeID: id, Message: fmt.Sprintf("unknown node kind %q", n.Kind)})
		return nil
	}
}
