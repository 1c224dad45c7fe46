package request

import (
	"fmt"
	"io"
	"slices"
)

// Params is an insertion-ordered mapping of API parameter names to values.
//
// Supported values:
//   - string, []byte and fmt.Stringer
//   - signed/unsigned integers and floats
//   - bool (true encodes as "1", false omits the parameter)
//   - nil (encodes as an empty value)
//   - slices of any of the above (the key is repeated once per element)
//   - File (multipart requests only)
type Params struct {
	keys   []string
	values map[string]any
}

// NewParams builds a parameter set from alternating key/value strings.
// A trailing key without a value is ignored.
func NewParams(pairs ...string) *Params {
	p := &Params{values: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Set(pairs[i], pairs[i+1])
	}
	return p
}

// Set adds or replaces a parameter. Replacing keeps the original position.
func (p *Params) Set(key string, value any) *Params {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Del removes key. Removing a missing key is a no-op.
func (p *Params) Del(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	p.keys = slices.DeleteFunc(p.keys, func(k string) bool { return k == key })
}

// Keys returns the parameter names in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return slices.Clone(p.keys)
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns an independent copy. Slice values are copied; File contents
// are shared since they are never mutated.
func (p *Params) Clone() *Params {
	c := &Params{
		keys:   slices.Clone(p.keys),
		values: make(map[string]any, len(p.values)),
	}
	for k, v := range p.values {
		c.values[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t)
	case []int:
		return slices.Clone(t)
	case []int64:
		return slices.Clone(t)
	case []any:
		return slices.Clone(t)
	case []byte:
		return slices.Clone(t)
	default:
		return v
	}
}

// File is a binary payload uploaded as a multipart form part.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// FileFrom reads r fully into a File named name.
func FileFrom(name string, r io.Reader) (File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, fmt.Errorf("read file %q: %w", name, err)
	}
	return File{Name: name, Content: data}, nil
}
