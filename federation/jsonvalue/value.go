package jsonvalue

import "errors"

// MaxMergeDepth bounds deep_merge recursion. GraphQL responses are shallow
// in practice; a plan that nests deeper than this is treated as malformed
// (surfaced by callers as a PlanError, per the teacher's error taxonomy).
const MaxMergeDepth = 128

// ErrMergeDepthExceeded is returned by DeepMerge when MaxMergeDepth is hit.
var ErrMergeDepthExceeded = errors.New("jsonvalue: deep_merge exceeded max recursion depth")

// DeepMerge merges b into a and returns the result. Semantics (spec.md §3,
// §4.1):
//   - object ∪ object: keys merge; on a shared key, b's value wins unless
//     both sides are objects, in which case they recurse; a's key order is
//     preserved, keys only in b are appended in b's order.
//   - array ∪ array: merged index-wise up to max(len(a), len(b)); a shorter
//     array is padded with the other's trailing elements.
//   - any type mismatch (including either side being nil/scalar against an
//     object or array): b wins outright.
//
// DeepMerge does not mutate a or b; it returns a new value sharing unmerged
// substructure. Idempotent: DeepMerge(a, a) == a for all a.
func DeepMerge(a, b interface{}) (interface{}, error) {
	return deepMerge(a, b, 0)
}

func deepMerge(a, b interface{}, depth int) (interface{}, error) {
	if depth > MaxMergeDepth {
		return nil, ErrMergeDepthExceeded
	}

	aObj, aIsObj := a.(*Object)
	bObj, bIsObj := b.(*Object)
	if aIsObj && bIsObj {
		return mergeObjects(aObj, bObj, depth)
	}

	aArr, aIsArr := a.([]interface{})
	bArr, bIsArr := b.([]interface{})
	if aIsArr && bIsArr {
		return mergeArrays(aArr, bArr, depth)
	}

	// Type mismatch, or either side a scalar/nil: b wins outright.
	return b, nil
}

func mergeObjects(a, b *Object, depth int) (interface{}, error) {
	out := a.Clone()
	for _, k := range b.Keys() {
		bv, _ := b.Get(k)
		if av, exists := out.Get(k); exists {
			merged, err := deepMerge(av, bv, depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(k, merged)
		} else {
			out.Set(k, bv)
		}
	}
	return out, nil
}

func mergeArrays(a, b []interface{}, depth int) (interface{}, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		switch {
		case i < len(a) && i < len(b):
			merged, err := deepMerge(a[i], b[i], depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = merged
		case i < len(a):
			out[i] = a[i]
		default:
			out[i] = b[i]
		}
	}
	return out, nil
}
