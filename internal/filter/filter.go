// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter evaluates post-fetch predicates against Records.
// Predicates are validated once by Compile against the Record schema, so
// Admit never fails.
package filter

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/sra-fetch/pkg/types"
)

// Filter is a compiled conjunction of predicates. The zero value and a nil
// *Filter admit every record.
type Filter struct {
	preds []predicate
}

type predicate struct {
	field string
	kind  types.FieldKind
	op    types.Comparator

	// text holds the lowercased literal for text comparisons.
	text string
	set  map[string]bool
	num  float64
	nums []float64
	date time.Time
	re   *regexp.Regexp
}

// Compile validates preds and returns the Filter. Any invalid predicate is
// a *types.ConfigError.
func Compile(preds []types.Predicate) (*Filter, error) {
	f := &Filter{}
	for _, p := range preds {
		c, err := compile(p)
		if err != nil {
			return nil, err
		}
		f.preds = append(f.preds, c)
	}
	return f, nil
}

// Len returns the number of predicates.
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.preds)
}

// Admit reports whether r satisfies every predicate.
func (f *Filter) Admit(r types.Record) bool {
	if f == nil {
		return true
	}
	for _, p := range f.preds {
		if !p.admit(r) {
			return false
		}
	}
	return true
}

func compile(p types.Predicate) (predicate, error) {
	fail := func(format string, args ...any) (predicate, error) {
		return predicate{}, &types.ConfigError{Field: "filter " + p.Field, Reason: fmt.Sprintf(format, args...)}
	}

	kind, ok := types.FieldKinds[p.Field]
	if !ok {
		return fail("unknown field (known: %s)", strings.Join(types.Columns, ", "))
	}
	if !slices.Contains(types.Comparators, p.Op) {
		return fail("unknown comparator %q", p.Op)
	}

	c := predicate{field: p.Field, kind: kind, op: p.Op}
	if p.Op == types.OpIsNull {
		return c, nil
	}

	switch p.Op {
	case types.OpLess, types.OpGreater, types.OpLessEqual, types.OpGreaterEqual:
		if !kind.IsOrdered() {
			return fail("comparator %s needs a numeric or date field, got %s", p.Op, kind)
		}
	case types.OpContains, types.OpMatches:
		if kind != types.KindText && kind != types.KindList {
			return fail("comparator %s needs a text field, got %s", p.Op, kind)
		}
	}

	if p.Op == types.OpIn {
		values := p.Values
		if len(values) == 0 && p.Value != "" {
			values = splitList(p.Value)
		}
		if len(values) == 0 {
			return fail("comparator in needs at least one value")
		}
		if kind.IsOrdered() {
			for _, v := range values {
				n, err := c.literal(v)
				if err != nil {
					return fail("%v", err)
				}
				c.nums = append(c.nums, n)
			}
			return c, nil
		}
		c.set = make(map[string]bool, len(values))
		for _, v := range values {
			c.set[strings.ToLower(strings.TrimSpace(v))] = true
		}
		return c, nil
	}

	if strings.TrimSpace(p.Value) == "" {
		return fail("comparator %s needs a value", p.Op)
	}

	switch {
	case p.Op == types.OpMatches:
		re, err := regexp.Compile(p.Value)
		if err != nil {
			return fail("invalid regular expression: %v", err)
		}
		c.re = re
	case kind == types.KindDate:
		d, err := time.Parse(types.DateLayout, strings.TrimSpace(p.Value))
		if err != nil {
			return fail("invalid date %q, want YYYY-MM-DD", p.Value)
		}
		c.date = d
	case kind.IsOrdered():
		n, err := c.literal(p.Value)
		if err != nil {
			return fail("%v", err)
		}
		c.num = n
	default:
		c.text = strings.ToLower(strings.TrimSpace(p.Value))
	}
	return c, nil
}

// literal parses an ordered literal into the float form Admit compares. Dates
// become Unix seconds.
func (c predicate) literal(v string) (float64, error) {
	v = strings.TrimSpace(v)
	switch c.kind {
	case types.KindDate:
		d, err := time.Parse(types.DateLayout, v)
		if err != nil {
			return 0, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
		}
		return float64(d.Unix()), nil
	case types.KindInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", v)
		}
		return float64(n), nil
	default:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", v)
		}
		return n, nil
	}
}

func (c predicate) admit(r types.Record) bool {
	if c.op == types.OpIsNull {
		return r.IsNull(c.field)
	}
	if r.IsNull(c.field) {
		return false
	}

	switch c.kind {
	case types.KindText:
		v, _ := r.Text(c.field)
		return c.matchText(v)
	case types.KindList:
		return slices.ContainsFunc(r.TaxonomicLineage, c.matchText)
	case types.KindDate:
		d, _ := r.Date(c.field)
		if c.op == types.OpIn {
			return slices.Contains(c.nums, float64(d.Unix()))
		}
		return compare(c.op, d.Compare(c.date))
	default:
		n, _ := r.Number(c.field)
		if c.op == types.OpIn {
			return slices.Contains(c.nums, n)
		}
		switch {
		case n < c.num:
			return compare(c.op, -1)
		case n > c.num:
			return compare(c.op, 1)
		default:
			return compare(c.op, 0)
		}
	}
}

func (c predicate) matchText(v string) bool {
	switch c.op {
	case types.OpEqual:
		return strings.ToLower(v) == c.text
	case types.OpIn:
		return c.set[strings.ToLower(v)]
	case types.OpContains:
		return strings.Contains(strings.ToLower(v), c.text)
	case types.OpMatches:
		return c.re.MatchString(v)
	default:
		return false
	}
}

// compare maps a three-way comparison result through op.
func compare(op types.Comparator, cmp int) bool {
	switch op {
	case types.OpEqual:
		return cmp == 0
	case types.OpLess:
		return cmp < 0
	case types.OpGreater:
		return cmp > 0
	case types.OpLessEqual:
		return cmp <= 0
	case types.OpGreaterEqual:
		return cmp >= 0
	default:
		return false
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
