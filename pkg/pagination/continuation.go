package pagination

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Sternrassler/mwapi-client/pkg/request"
	"github.com/Sternrassler/mwapi-client/pkg/result"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Response keys carrying continuation state.
const (
	LegacyKey = "query-continue"
	ModernKey = "continue"
)

// generatorPrefix marks generator continuation keys such as "gapcontinue".
// Only keys of at least shortKeyLen characters are considered.
const generatorPrefix = "g"

// shortKeyLen separates the plain continuation keys ("imcontinue") from
// generator ones ("gimcontinue" and longer) during key selection.
const shortKeyLen = 11

var (
	// ErrMalformedContinuation is returned when a continuation section has an unexpected shape.
	ErrMalformedContinuation = errors.New("malformed continuation")

	// ErrNoContinuationKey is returned when a legacy continuation section holds no keys.
	ErrNoContinuationKey = errors.New("no continuation key")
)

var continuationPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mwapi_continuation_pages_total",
	Help: "Total continuation pages fetched by protocol",
}, []string{"protocol"})

// Executor runs one logical API call.
type Executor interface {
	Execute(ctx context.Context, req *request.Request) (*result.Result, error)
}

// Continuation is the continuation state of one response. It is either
// LegacyContinuation or ModernContinuation; a nil Continuation means the
// response is the last page.
type Continuation interface {
	protocol() string
}

// LegacyContinuation holds the deprecated query-continue section:
// outer key (query module) -> inner key (parameter) -> value.
type LegacyContinuation struct {
	Keys map[string]map[string]any

	// modules and params keep the order the server sent the keys in. They
	// are empty when the order is unknown.
	modules []string
	params  map[string][]string
}

// Select picks the pair to advance next, scanning keys in the order the
// server sent them. Without a known order it falls back to
// SelectContinuationKey.
func (c LegacyContinuation) Select() (outer, inner string, err error) {
	if len(c.modules) != len(c.Keys) {
		return SelectContinuationKey(c.Keys)
	}
	return selectKey(c.modules, func(module string) []string {
		if order, ok := c.params[module]; ok && len(order) == len(c.Keys[module]) {
			return order
		}
		return sortedKeys(c.Keys[module])
	})
}

func (LegacyContinuation) protocol() string { return "legacy" }

// ModernContinuation holds the continue section: parameter -> value.
type ModernContinuation struct {
	Params map[string]any
}

func (ModernContinuation) protocol() string { return "modern" }

// ContinuationOf extracts the continuation state of r. The modern section
// wins if a response carries both.
func ContinuationOf(r *result.Result) (Continuation, error) {
	if r == nil || r.Kind() != result.KindObject {
		return nil, nil
	}

	if raw, ok := r.Get(ModernKey); ok {
		params, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrMalformedContinuation, ModernKey, raw)
		}
		return ModernContinuation{Params: params}, nil
	}

	if raw, ok := r.Get(LegacyKey); ok {
		outer, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrMalformedContinuation, LegacyKey, raw)
		}
		if len(outer) == 0 {
			return nil, nil
		}
		keys := make(map[string]map[string]any, len(outer))
		for module, rawInner := range outer {
			inner, ok := rawInner.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s is %T", ErrMalformedContinuation, LegacyKey, module, rawInner)
			}
			keys[module] = inner
		}

		cont := LegacyContinuation{Keys: keys, modules: r.Keys(LegacyKey)}
		if len(cont.modules) > 0 {
			cont.params = make(map[string][]string, len(cont.modules))
			for _, module := range cont.modules {
				cont.params[module] = r.Keys(LegacyKey, module)
			}
		}
		return cont, nil
	}

	return nil, nil
}

// SelectContinuationKey picks the (outer, inner) pair to advance from a
// legacy continuation section. Keys are scanned in lexicographic order.
//
//   - One outer key with one inner key: that pair.
//   - One outer key with several inner keys: the first inner key shorter
//     than 11 characters, else the first inner key.
//   - Several outer keys: the first pair whose inner key is shorter than 11
//     characters, else the first outer key's first inner key.
func SelectContinuationKey(keys map[string]map[string]any) (outer, inner string, err error) {
	return selectKey(sortedKeys(keys), func(module string) []string {
		return sortedKeys(keys[module])
	})
}

func selectKey(outers []string, inners func(string) []string) (outer, inner string, err error) {
	if len(outers) == 0 {
		return "", "", ErrNoContinuationKey
	}

	for _, o := range outers {
		for _, i := range inners(o) {
			if len(i) < shortKeyLen {
				return o, i, nil
			}
		}
	}

	first := inners(outers[0])
	if len(first) == 0 {
		return "", "", fmt.Errorf("%w: %s has no inner keys", ErrNoContinuationKey, outers[0])
	}
	return outers[0], first[0], nil
}

// IsGeneratorKey reports whether a continuation parameter drives a generator.
func IsGeneratorKey(key string) bool {
	return len(key) >= shortKeyLen && strings.HasPrefix(key, generatorPrefix)
}

// continuationValue normalizes a continuation value for re-sending:
// integral numbers stay integers, everything else becomes text.
func continuationValue(v any) any {
	if n, ok := result.AsInt(v); ok {
		return n
	}
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
