// Package result holds decoded API responses and the legacy page merger.
//
// A Result is a closed variant over the three shapes a JSON body can take:
// an object, a list, or a bare primitive. Object and list results carry a
// copy of the HTTP response headers they arrived with.
package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
)

// Kind identifies the shape of a decoded body.
type Kind uint8

const (
	// KindObject is a JSON object.
	KindObject Kind = iota + 1

	// KindList is a JSON array.
	KindList

	// KindPrimitive is a string, number, boolean or null.
	KindPrimitive
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindList:
		return "list"
	case KindPrimitive:
		return "primitive"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ErrEmptyBody is returned by Decode for a body without any content.
var ErrEmptyBody = errors.New("empty response body")

// numbers are kept as json.Number so page ids and continuation values stay exact.
var decoder = sonic.Config{UseNumber: true}.Froze()

// Result is a decoded API response.
type Result struct {
	kind   Kind
	object map[string]any
	list   []any
	value  any

	// raw is the body an object result was decoded from. Go maps drop field
	// order, so Keys reads it back from here.
	raw []byte

	// Header is the response metadata. It is nil for primitive results.
	Header http.Header
}

// Decode parses body and classifies it.
func Decode(body []byte, header http.Header) (*Result, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	var v any
	if err := decoder.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	switch t := v.(type) {
	case map[string]any:
		r := NewObject(t, header)
		r.raw = body
		return r, nil
	case []any:
		return NewList(t, header), nil
	default:
		return &Result{kind: KindPrimitive, value: t}, nil
	}
}

// NewObject wraps an object payload.
func NewObject(obj map[string]any, header http.Header) *Result {
	if obj == nil {
		obj = map[string]any{}
	}
	return &Result{kind: KindObject, object: obj, Header: header.Clone()}
}

// NewList wraps a list payload.
func NewList(list []any, header http.Header) *Result {
	if list == nil {
		list = []any{}
	}
	return &Result{kind: KindList, list: list, Header: header.Clone()}
}

// Kind returns the payload shape.
func (r *Result) Kind() Kind { return r.kind }

// Object returns the object payload, or nil for other kinds.
func (r *Result) Object() map[string]any { return r.object }

// List returns the list payload, or nil for other kinds.
func (r *Result) List() []any { return r.list }

// Value returns the primitive payload, or nil for other kinds.
func (r *Result) Value() any { return r.value }

// Get returns a top-level field of an object result.
func (r *Result) Get(key string) (any, bool) {
	if r.kind != KindObject {
		return nil, false
	}
	v, ok := r.object[key]
	return v, ok
}

// Keys returns the field names of the object found at path, in the order
// the server sent them. Path elements are object keys (string) or list
// indexes (int). It returns nil if the order is unknown: the result was not
// built by Decode, or path does not lead to an object. Keys reflects the body
// as received, not later changes to the payload.
func (r *Result) Keys(path ...any) []string {
	if r.kind != KindObject || r.raw == nil {
		return nil
	}
	node, err := sonic.Get(r.raw, path...)
	if err != nil {
		return nil
	}
	if err := node.Load(); err != nil {
		return nil
	}
	it, err := node.Properties()
	if err != nil {
		return nil
	}
	keys := []string{}
	var pair ast.Pair
	for it.Next(&pair) {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Has reports whether an object result has a top-level field.
func (r *Result) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// ErrorInfo extracts the top-level error object, if any. A result for which
// ok is true must never be treated as a success.
func (r *Result) ErrorInfo() (code, info string, ok bool) {
	raw, present := r.Get("error")
	if !present {
		return "", "", false
	}
	obj, isObj := raw.(map[string]any)
	if !isObj {
		return "", fmt.Sprint(raw), true
	}
	code, _ = obj["code"].(string)
	info, _ = obj["info"].(string)
	return code, info, true
}

// Payload returns the underlying decoded value regardless of kind.
func (r *Result) Payload() any {
	switch r.kind {
	case KindObject:
		return r.object
	case KindList:
		return r.list
	default:
		return r.value
	}
}

// MarshalJSON encodes the payload without the headers.
func (r *Result) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(r.Payload())
}

// AsInt converts a decoded JSON number to int64.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
