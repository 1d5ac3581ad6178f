package ruletree

// Equal reports structural equality of two trees. Numeric literals are
// compared by value rather than by Go type, since JSON round-tripping
// widens int values to float64.
func Equal(a, b Node) bool {
	switch at := a.(type) {
	case *Condition:
		bt, ok := b.(*Condition)
		if !ok {
			return false
		}
		return at.Field == bt.Field &&
			at.Operator == bt.Operator &&
			valueEqual(at.Value, bt.Value)
	case *Group:
		bt, ok := b.(*Group)
		if !ok {
			return false
		}
		if at.Operator != bt.Operator || len(at.Children) != len(bt.Children) {
			return false
		}
		for i := range at.Children {
			if !Equal(at.Children[i], bt.Children[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if as, aok := asSlice(a); aok {
		bs, bok := asSlice(b)
		if !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !valueEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return a == b
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// asNumbers converts both values to float64 when both are numeric.
// Handles float64/int/int64 mixing from JSON unmarshaling.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
