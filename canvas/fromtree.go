package canvas

import (
	"fmt"

	"github.com/badgekit/badgerules/ruletree"
)

// Layout spacing. The editor is free to move nodes afterwards; only
// connectivity carries meaning.
const (
	colGap = 260.0
	rowGap = 120.0
)

// FromTree lays an existing rule out on a canvas for editing: one node
// per tree node, one action node per action, and one edge per
// parent-child relationship. Leaves sit in the leftmost column, parents
// to their right, actions rightmost, with siblings distributed
// vertically. Node IDs and edge order are deterministic so that
// ToTree(FromTree(t)) reproduces a tree equal to t.
func FromTree(tree ruletree.Node, actions []ruletree.Action) Graph {
	l := &layouter{maxDepth: ruletree.Depth(tree) - 1}
	rootID, rootY := l.place(tree, 0)

	for i, a := range actions {
		id := l.nextID("action")
		l.nodes = append(l.nodes, Node{
			ID:   id,
			Kind: KindAction,
			Position: Position{
				X: float64(l.maxDepth+1) * colGap,
				Y: rootY + float64(i)*rowGap,
			},
			Data: NodeData{Effect: a.Effect, Target: a.TargetCode},
		})
		l.connect(rootID, id)
	}

	return Graph{Nodes: l.nodes, Edges: l.edges}
}

type layouter struct {
	nodes    []Node
	edges    []Edge
	maxDepth int
	nextLeaf int
	seq      int
}

func (l *layouter) nextID(kind string) string {
	l.seq++
	return fmt.Sprintf("%s-%d", kind, l.seq)
}

func (l *layouter) connect(source, target string) {
	l.edges = append(l.edges, Edge{
		ID:     fmt.Sprintf("edge-%d", len(l.edges)+1),
		Source: source,
		Target: target,
	})
}

// place materializes a tree node and its descendants, returning the
// canvas node ID and vertical center so parents can align themselves.
func (l *layouter) place(n ruletree.Node, depth int) (string, float64) {
	x := float64(l.maxDepth-depth) * colGap

	switch t := n.(type) {
	case *ruletree.Condition:
		y := float64(l.nextLeaf) * rowGap
		l.nextLeaf++
		id := l.nextID("cond")
		l.nodes = append(l.nodes, Node{
			ID:       id,
			Kind:     KindCondition,
			Position: Position{X: x, Y: y},
			Data:     NodeData{Field: t.Field, Operator: t.Operator, Value: t.Value},
		})
		return id, y

	case *ruletree.Group:
		id := l.nextID("comb")
		idx := len(l.nodes)
		l.nodes = append(l.nodes, Node{
			ID:       id,
			Kind:     KindCombiner,
			Position: Position{X: x},
			Data:     NodeData{Logic: t.Operator},
		})

		// Children connect in order so edge creation order preserves
		// child order through the round trip.
		first, last := 0.0, 0.0
		for i, child := range t.Children {
			childID, childY := l.place(child, depth+1)
			l.connect(childID, id)
			if i == 0 {
				first = childY
			}
			last = childY
		}
		y := (first + last) / 2
		l.nodes[idx].Position.Y = y
		return id, y

	default:
		return "", 0
	}
}
