// Package jsontree searches untyped JSON documents by key. Documents are
// treated as trees of tagged variants (object, array, scalar) backed by gjson,
// so no schema for the embedded payload is assumed.
package jsontree

import (
	"github.com/tidwall/gjson"
)

// Kind tags a node of the tree.
type Kind int

// Node kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// KindOf reports the variant tag of a node.
func KindOf(node gjson.Result) Kind {
	switch node.Type {
	case gjson.True, gjson.False:
		return KindBool
	case gjson.Number:
		return KindNumber
	case gjson.String:
		return KindString
	case gjson.JSON:
		if node.IsArray() {
			return KindArray
		}
		return KindObject
	default:
		return KindNull
	}
}

// Find walks doc depth-first and returns the first non-empty value stored
// under key. Within an object a direct hit shadows anything nested below
// that object; children are visited in document order. Invalid JSON yields
// no result.
func Find(doc []byte, key string) (gjson.Result, bool) {
	if len(doc) == 0 || !gjson.ValidBytes(doc) {
		return gjson.Result{}, false
	}
	return find(gjson.ParseBytes(doc), key)
}

// FindString is Find restricted to string hits.
func FindString(doc []byte, key string) (string, bool) {
	node, ok := Find(doc, key)
	if !ok || KindOf(node) != KindString {
		return "", false
	}
	return node.Str, true
}

// FindFirstString tries each key in order and returns the first string hit.
func FindFirstString(doc []byte, keys ...string) (string, string, bool) {
	for _, key := range keys {
		if value, ok := FindString(doc, key); ok {
			return value, key, true
		}
	}
	return "", "", false
}

func find(node gjson.Result, key string) (gjson.Result, bool) {
	switch KindOf(node) {
	case KindObject:
		if value, ok := directChild(node, key); ok {
			return value, truthy(value)
		}
		var (
			hit   gjson.Result
			found bool
		)
		node.ForEach(func(_, child gjson.Result) bool {
			hit, found = find(child, key)
			return !found
		})
		return hit, found
	case KindArray:
		var (
			hit   gjson.Result
			found bool
		)
		node.ForEach(func(_, child gjson.Result) bool {
			hit, found = find(child, key)
			return !found
		})
		return hit, found
	default:
		return gjson.Result{}, false
	}
}

// directChild looks up key without gjson path syntax so keys containing
// dots or wildcards match literally.
func directChild(node gjson.Result, key string) (gjson.Result, bool) {
	var (
		value gjson.Result
		found bool
	)
	node.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			value, found = v, true
		}
		return true
	})
	return value, found
}

func truthy(node gjson.Result) bool {
	switch KindOf(node) {
	case KindBool:
		return node.Bool()
	case KindNumber:
		return node.Num != 0
	case KindString:
		return node.Str != ""
	case KindArray:
		return len(node.Array()) > 0
	case KindObject:
		return len(node.Map()) > 0
	default:
		return false
	}
}
