package cascade

import "fmt"

// Flag is a boolean OR cascade: true when any predicate holds, with
// short-circuit evaluation in declaration order.
func Flag[In any](name string, preds ...Predicate[In]) (*Cascade[In, bool], error) {
	b := Define[In, bool](name)
	for i, p := range preds {
		b.When(fmt.Sprintf("%s_%d", name, i+1), p, true)
	}
	return b.Otherwise(false).Build()
}

func Any(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

// All is true for an empty list.
func All(values ...bool) bool {
	for _, v := range values {
		if !v {
			return false
		}
	}
	return true
}
