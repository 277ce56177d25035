// Package wire models the numeric-attribute wire format. Instances arrive
// as JSON objects keyed by numeric attribute id; values are duck-typed:
// scalars, arrays (list and tuple ids), nested objects (aggregations), or
// base64 text. Any value may additionally be wrapped in a one-element list.
package wire

import "strconv"

// Instance is a wire entity: numeric attribute id (as text) to untyped value.
type Instance = map[string]any

// UnwrapSingleElement unwraps a one-element list to its element. Anything
// else, including longer lists and nil, passes through unchanged. Every
// aggregation access goes through this before structural checks.
func UnwrapSingleElement(v any) any {
	if list, ok := v.([]any); ok && len(list) == 1 {
		return list[0]
	}
	return v
}

// String reads a wire value as text after single-element unwrapping.
func String(v any) (string, bool) {
	s, ok := UnwrapSingleElement(v).(string)
	return s, ok
}

// Text reads a wire value as text after single-element unwrapping,
// rendering JSON numbers in decimal form. Versions and type discriminators
// are textual on the wire but some shapes deliver them as numbers.
func Text(v any) (string, bool) {
	switch t := UnwrapSingleElement(v).(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatInt(int64(t), 10), true
	default:
		return "", false
	}
}

// Map reads a wire value as an aggregation after single-element unwrapping.
func Map(v any) (Instance, bool) {
	m, ok := UnwrapSingleElement(v).(map[string]any)
	return m, ok
}

// TupleID reads a wire value as a (listId, elementId) pair. Tuple ids
// arrive as two-element string arrays.
func TupleID(v any) (listID, elementID string, ok bool) {
	list, isList := v.([]any)
	if !isList || len(list) != 2 {
		return "", "", false
	}
	l, lok := list[0].(string)
	e, eok := list[1].(string)
	if !lok || !eok {
		return "", "", false
	}
	return l, e, true
}
