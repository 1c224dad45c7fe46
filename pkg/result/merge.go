package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotQueryShape is returned when a merge operand lacks a "query" object.
	ErrNotQueryShape = errors.New("result is not a query result")

	// ErrUnsupportedShape is returned when per-page entries can not be deduplicated.
	ErrUnsupportedShape = errors.New("unsupported result shape for merge")
)

// Merge folds the data for one query type from page into aggregate, in place.
//
// A top-level list (query[queryType]) is appended without deduplication. Any
// other type is merged per page under query.pages: unseen pages are copied,
// pages lacking the property in page are left alone, and pages holding the
// property on both sides get the set union of their entries. Entries must be
// flat objects of scalar fields.
func Merge(queryType string, aggregate, page *Result) error {
	aggQuery, err := queryObject(aggregate)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	newQuery, err := queryObject(page)
	if err != nil {
		return fmt.Errorf("page: %w", err)
	}

	if raw, ok := newQuery[queryType]; ok {
		return mergeList(queryType, aggQuery, raw)
	}

	rawPages, ok := newQuery["pages"]
	if !ok {
		return nil
	}
	newPages, ok := rawPages.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: query.pages is %T", ErrUnsupportedShape, rawPages)
	}
	aggPages, ok := aggQuery["pages"].(map[string]any)
	if !ok {
		aggPages = make(map[string]any, len(newPages))
		aggQuery["pages"] = aggPages
	}

	for id, rawNew := range newPages {
		rawOld, seen := aggPages[id]
		if !seen {
			aggPages[id] = rawNew
			continue
		}
		newEntry, ok := rawNew.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: page %s is %T", ErrUnsupportedShape, id, rawNew)
		}
		newProp, ok := newEntry[queryType]
		if !ok {
			continue
		}
		oldEntry, ok := rawOld.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: page %s is %T", ErrUnsupportedShape, id, rawOld)
		}
		oldProp, ok := oldEntry[queryType]
		if !ok {
			oldEntry[queryType] = newProp
			continue
		}
		merged, err := unionEntries(oldProp, newProp)
		if err != nil {
			return fmt.Errorf("page %s %s: %w", id, queryType, err)
		}
		oldEntry[queryType] = merged
	}
	return nil
}

func mergeList(queryType string, aggQuery map[string]any, raw any) error {
	add, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%w: query.%s is %T", ErrUnsupportedShape, queryType, raw)
	}
	existing, present := aggQuery[queryType]
	if !present {
		aggQuery[queryType] = append([]any(nil), add...)
		return nil
	}
	old, ok := existing.([]any)
	if !ok {
		return fmt.Errorf("%w: aggregate query.%s is %T", ErrUnsupportedShape, queryType, existing)
	}
	aggQuery[queryType] = append(old, add...)
	return nil
}

func queryObject(r *Result) (map[string]any, error) {
	if r == nil || r.kind != KindObject {
		return nil, ErrNotQueryShape
	}
	q, ok := r.object["query"].(map[string]any)
	if !ok {
		return nil, ErrNotQueryShape
	}
	return q, nil
}

// unionEntries returns the distinct entries of old followed by the distinct
// entries of add that old does not already hold.
func unionEntries(old, add any) ([]any, error) {
	oldList, ok := old.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a list", ErrUnsupportedShape, old)
	}
	addList, ok := add.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a list", ErrUnsupportedShape, add)
	}

	seen := make(map[string]struct{}, len(oldList)+len(addList))
	out := make([]any, 0, len(oldList)+len(addList))
	for _, list := range [][]any{oldList, addList} {
		for _, entry := range list {
			key, err := entryKey(entry)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, entry)
		}
	}
	return out, nil
}

// entryKey renders a flat object as a canonical string: sorted field names,
// each value tagged with its type.
func entryKey(entry any) (string, error) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: entry is %T", ErrUnsupportedShape, entry)
	}
	fields := make([]string, 0, len(obj))
	for k := range obj {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var b strings.Builder
	for _, k := range fields {
		b.WriteString(fmt.Sprintf("%q:", k))
		switch v := obj[k].(type) {
		case nil:
			b.WriteString("n;")
		case string:
			b.WriteString(fmt.Sprintf("s%q;", v))
		case json.Number:
			b.WriteString(fmt.Sprintf("d%s;", v))
		case bool:
			b.WriteString(fmt.Sprintf("b%t;", v))
		case float64:
			b.WriteString(fmt.Sprintf("d%v;", v))
		default:
			return "", fmt.Errorf("%w: field %q holds %T", ErrUnsupportedShape, k, v)
		}
	}
	return b.String(), nil
}
