// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strconv"
	"strings"
)

// Document is a raw per-record document as returned by the detail service:
// a nested mapping whose values are strings, nested Documents (or plain
// map[string]any), or []any for repeated elements. Attributes converted
// from XML are keyed "@name" and element text is keyed "#text".
//
// Accessors never panic: a missing path, an unexpected shape, or a failed
// coercion reports "absent".
type Document map[string]any

// TextKey is the key holding an element's character data.
const TextKey = "#text"

// Lookup walks a dot-separated path ("expxml.Experiment.@acc"). When a
// step meets a list, the first element is used.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, step := range strings.Split(path, ".") {
		m, ok := asMap(first(cur))
		if !ok {
			return nil, false
		}
		cur, ok = m[step]
		if !ok {
			return nil, false
		}
	}
	return first(cur), true
}

// String returns the trimmed string at path. An element reached by the path
// yields its text content. Empty strings count as absent.
func (d Document) String(path string) (string, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		m, isMap := asMap(t)
		if !isMap {
			return "", false
		}
		text, isText := m[TextKey].(string)
		if !isText {
			return "", false
		}
		s = text
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Int returns the integer at path. present reports whether any value was
// found; ok reports whether it coerced to an integer.
func (d Document) Int(path string) (n int64, present, ok bool) {
	s, present := d.String(path)
	if !present {
		return 0, false, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, true, false
	}
	return n, true, true
}

// Map returns the nested mapping at path.
func (d Document) Map(path string) (map[string]any, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return nil, false
	}
	return asMap(v)
}

func first(v any) any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}
