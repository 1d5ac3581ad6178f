package ruletree

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRoundTripSingleCondition(t *testing.T) {
	tree := &Condition{Field: "amount", Operator: OpGte, Value: 100}

	data, err := Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	if !Equal(tree, back) {
		t.Errorf("round trip changed the tree: %s", data)
	}
}

func TestRoundTripThreeLayerAlternating(t *testing.T) {
	// 3 group layers, breadth 2: 8 leaves, depth 4.
	tree := buildNestedRule(3, 2)

	if got := CountConditions(tree); got != 8 {
		t.Fatalf("CountConditions = %d, want 8", got)
	}
	if got := Depth(tree); got != 4 {
		t.Fatalf("Depth = %d, want 4", got)
	}

	data, err := Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if !Equal(tree, back) {
		t.Error("round trip changed the tree")
	}

	// Serialized form must be byte-stable across a second round trip.
	data2, err := Marshal(back)
	if err != nil {
		t.Fatalf("second Marshal() failed: %v", err)
	}
	if string(data) != string(data2) {
		t.Errorf("serialized form not stable:\nfirst:  %s\nsecond: %s", data, data2)
	}
}

func TestMarshalWireShape(t *testing.T) {
	tree := &Group{Operator: LogicOr, Children: []Node{
		&Condition{Field: "user.level", Operator: OpGt, Value: 5},
		&Condition{Field: "user.tier", Operator: OpIsNotEmpty},
	}}

	data, err := Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	if raw["type"] != "group" || raw["operator"] != "OR" {
		t.Errorf("unexpected group encoding: %s", data)
	}

	children, ok := raw["children"].([]any)
	if !ok || len(children) != 2 {
		t.Fatalf("expected 2 children, got %s", data)
	}

	second, ok := children[1].(map[string]any)
	if !ok {
		t.Fatalf("child is not an object: %s", data)
	}
	if _, hasValue := second["value"]; hasValue {
		t.Errorf("isNotEmpty condition should omit value: %s", data)
	}
}

func TestUnmarshalRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{{`},
		{"not an object", `[1, 2, 3]`},
		{"missing type", `{"field": "amount", "operator": "gte", "value": 1}`},
		{"unknown type", `{"type": "filter", "field": "amount", "operator": "gte", "value": 1}`},
		{"condition missing field", `{"type": "condition", "operator": "gte", "value": 1}`},
		{"condition missing operator", `{"type": "condition", "field": "amount", "value": 1}`},
		{"group missing operator", `{"type": "group", "children": []}`},
		{"group missing children", `{"type": "group", "operator": "AND"}`},
		{"bad nested child", `{"type": "group", "operator": "AND", "children": [{"type": "nope"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.input))
			if err == nil {
				t.Fatalf("Unmarshal(%s) should fail", tt.input)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("expected *ParseError, got %T: %v", err, err)
			}
		})
	}
}

func TestUnmarshalReportsNestedPath(t *testing.T) {
	input := `{"type": "group", "operator": "AND", "children": [
		{"type": "condition", "field": "a", "operator": "eq", "value": 1},
		{"type": "mystery"}
	]}`

	_, err := Unmarshal([]byte(input))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Path != "$.children[1]" {
		t.Errorf("ParseError.Path = %q, want %q", perr.Path, "$.children[1]")
	}
}

func TestUnmarshalEmptyGroupParsesButFailsValidation(t *testing.T) {
	// An empty children array is structurally fine; rejecting it is
	// Validate's job, not the parser's.
	node, err := Unmarshal([]byte(`{"type": "group", "operator": "AND", "children": []}`))
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	v := &Validator{}
	verr := v.Validate(node)
	if verr == nil {
		t.Fatal("empty group must fail validation")
	}
}

// genTree produces arbitrary valid trees for the round-trip property.
func genTree(depth int) gopter.Gen {
	leaf := gen.OneConstOf(
		Node(&Condition{Field: "amount", Operator: OpGte, Value: float64(100)}),
		Node(&Condition{Field: "user.tier", Operator: OpIn, Value: []any{"gold", "silver"}}),
		Node(&Condition{Field: "user.name", Operator: OpStartsWith, Value: "a"}),
		Node(&Condition{Field: "user.email", Operator: OpIsNotEmpty}),
		Node(&Condition{Field: "amount", Operator: OpBetween, Value: []any{float64(1), float64(10)}}),
	)
	if depth == 0 {
		return leaf
	}
	nodeType := reflect.TypeOf((*Node)(nil)).Elem()
	group := gen.SliceOfN(2, genTree(depth-1), nodeType).Map(func(children []Node) Node {
		return &Group{Operator: LogicOr, Children: children}
	})
	return gen.Weighted([]gen.WeightedGen{
		{Weight: 2, Gen: leaf},
		{Weight: 1, Gen: group},
	})
}

func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("deserialize(serialize(t)) == t for all valid trees", prop.ForAll(
		func(tree Node) bool {
			data, err := Marshal(tree)
			if err != nil {
				return false
			}
			back, err := Unmarshal(data)
			if err != nil {
				return false
			}
			return Equal(tree, back)
		},
		genTree(4),
	))

	properties.TestingRun(t)
}
