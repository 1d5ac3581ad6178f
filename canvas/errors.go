package canvas

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a single canvas-to-tree conversion problem.
type ErrorKind string

const (
	ErrNoAction         ErrorKind = "no_action"
	ErrActionNoInput    ErrorKind = "action_without_input"
	ErrDanglingEdge     ErrorKind = "dangling_edge"
	ErrDisconnectedNode ErrorKind = "disconnected_node"
	ErrCycle            ErrorKind = "cycle_detected"
	ErrMultipleRoots    ErrorKind = "multiple_roots"
	ErrCombinerNoInput  ErrorKind = "combiner_without_input"
	ErrConditionInput   ErrorKind = "condition_with_input"
	ErrNodeReused       ErrorKind = "node_reused"
	ErrDuplicateNode    ErrorKind = "duplicate_node_id"
	ErrBadNodeData      ErrorKind = "invalid_node_data"
	ErrInvalidTree      ErrorKind = "invalid_tree"
)

// ConversionError is a single problem found while reducing a canvas
// graph to a rule tree. NodeID and EdgeID locate the offending element
// so the editor can highlight it.
type ConversionError struct {
	Kind    ErrorKind
	NodeID  string
	EdgeID  string
	Message string
}

func (e *ConversionError) Error() string {
	switch {
	case e.NodeID != "":
		return fmt.Sprintf("%s (node %s): %s", e.Kind, e.NodeID, e.Message)
	case e.EdgeID != "":
		return fmt.Sprintf("%s (edge %s): %s", e.Kind, e.EdgeID, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// ConversionErrors collects every problem found in one conversion pass.
// Unlike tree validation, which stops at the first violation, the editor
// wants the complete list so the user can fix everything in one round.
type ConversionErrors []*ConversionError

func (es ConversionErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether the list contains an error of the given kind.
func (es ConversionErrors) Has(kind ErrorKind) bool {
	for _, e := range es {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
