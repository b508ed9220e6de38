// Package payload walks decoded upstream JSON values.
//
// Values are the closed set produced by encoding/json into an `any`:
// map[string]any, []any, string, float64, bool and nil. Anything else is
// treated as an opaque leaf.
package payload

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultMaxDepth bounds how far Walk descends into nested containers.
const DefaultMaxDepth = 32

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindOther
)

func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64, float32, int, int64, int32:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindOther
	}
}

// Node is one visited value. Key is the object key that led to it, empty
// for array elements and the root.
type Node struct {
	Key   string
	Value any
	Depth int
}

// Walk visits root and its descendants depth-first in document order, with
// object keys taken in sorted order. It uses an explicit stack; containers
// deeper than maxDepth are visited but not expanded. visit returns false to
// stop the walk.
func Walk(root any, maxDepth int, visit func(Node) bool) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	stack := []Node{{Value: root}}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			return
		}
		if n.Depth >= maxDepth {
			continue
		}
		switch v := n.Value.(type) {
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			// push reversed so the smallest key pops first
			for i := len(keys) - 1; i >= 0; i-- {
				stack = append(stack, Node{Key: keys[i], Value: v[keys[i]], Depth: n.Depth + 1})
			}
		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, Node{Value: v[i], Depth: n.Depth + 1})
			}
		}
	}
}

// Strings returns every string leaf under root in walk order.
func Strings(root any) []string {
	var out []string
	Walk(root, DefaultMaxDepth, func(n Node) bool {
		if s, ok := n.Value.(string); ok {
			out = append(out, s)
		}
		return true
	})
	return out
}

// FindString returns the first non-blank string stored under any of keys,
// trimmed. Numeric values are accepted and formatted without exponent.
func FindString(root any, keys ...string) (string, bool) {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	var found string
	Walk(root, DefaultMaxDepth, func(n Node) bool {
		if _, ok := want[n.Key]; !ok || n.Key == "" {
			return true
		}
		if s, ok := Scalar(n.Value); ok {
			found = s
			return false
		}
		return true
	})
	return found, found != ""
}

// Scalar renders a string or number leaf as trimmed text.
func Scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}
