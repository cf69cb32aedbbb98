// Package jsondoc implements slash-pointer addressing over JSON-like value
// trees (map[string]any / []any / scalars). It backs both the mutable state
// store and the spec patch engine, which share the same path semantics:
// numeric segments index arrays, everything else keys objects, and writes
// create intermediate containers as needed.
package jsondoc

import (
	"strconv"
	"strings"
)

// Split turns "/a/b/0" into ["a","b","0"]. Empty and "/" paths yield nil.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Join builds a slash path from segments, always with a leading slash.
func Join(segs ...string) string {
	return "/" + strings.Join(segs, "/")
}

// Get resolves path inside doc. The second return is false when any
// segment fails to resolve.
func Get(doc any, path string) (any, bool) {
	return getIn(doc, Split(path))
}

func getIn(cur any, segs []string) (any, bool) {
	for _, seg := range segs {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at path inside doc and returns the updated root.
// Intermediate containers are created as needed: a numeric segment creates
// an array (padded with nils), anything else an object. A prefix holding a
// non-container value is overwritten rather than erroring; generation
// output is untrusted, so writes are lossy-but-safe by policy.
func Set(doc any, path string, value any) any {
	return setIn(doc, Split(path), value)
}

func setIn(cur any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	head, rest := segs[0], segs[1:]

	if m, ok := cur.(map[string]any); ok {
		m[head] = setIn(m[head], rest, value)
		return m
	}
	if idx, err := strconv.Atoi(head); err == nil && idx >= 0 {
		arr, _ := cur.([]any)
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		arr[idx] = setIn(arr[idx], rest, value)
		return arr
	}
	// Missing or non-container prefix: replace with a fresh object.
	m := map[string]any{}
	m[head] = setIn(nil, rest, value)
	return m
}

// Delete removes the value at path and returns the updated root.
// Missing keys are a silent no-op. Deleting an array element splices it out.
func Delete(doc any, path string) any {
	return deleteIn(doc, Split(path))
}

func deleteIn(cur any, segs []string) any {
	if len(segs) == 0 {
		return nil
	}
	head, rest := segs[0], segs[1:]

	switch c := cur.(type) {
	case map[string]any:
		if len(rest) == 0 {
			delete(c, head)
			return c
		}
		if _, ok := c[head]; ok {
			c[head] = deleteIn(c[head], rest)
		}
		return c
	case []any:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 || idx >= len(c) {
			return c
		}
		if len(rest) == 0 {
			return append(c[:idx], c[idx+1:]...)
		}
		c[idx] = deleteIn(c[idx], rest)
		return c
	default:
		return cur
	}
}

// DeepCopy clones a JSON-like value tree. Scalars are returned as-is.
func DeepCopy(v any) any {
	switch c := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, e := range c {
			out[k] = DeepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, e := range c {
			out[i] = DeepCopy(e)
		}
		return out
	default:
		return v
	}
}
