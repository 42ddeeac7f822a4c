// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"fmt"
	"strings"

	"github.com/pdiddy/sra-fetch/pkg/types"
)

// wordOps are the comparators spelled as words, matched with surrounding
// whitespace: "library_strategy in RNA-Seq,WGS".
var wordOps = []types.Comparator{types.OpIn, types.OpContains, types.OpMatches}

// ParsePredicate parses the command-line form of a predicate:
//
//	read_average>=100
//	library_layout = paired
//	library_strategy in RNA-Seq,WGS
//	title contains liver
//	published is_null
//
// The result is not validated against the Record schema; Compile does that.
func ParsePredicate(s string) (types.Predicate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.Predicate{}, &types.ConfigError{Field: "filter", Reason: "empty predicate"}
	}

	if field, ok := strings.CutSuffix(s, " "+string(types.OpIsNull)); ok {
		if field = strings.TrimSpace(field); !strings.ContainsAny(field, "<>= \t") {
			return types.Predicate{Field: field, Op: types.OpIsNull}, nil
		}
	}

	// The earliest operator wins, so values may contain the others
	// ("title contains cells in culture", "title = cells in culture").
	sym := strings.IndexAny(s, "<>=")
	at, word := -1, types.Comparator("")
	for _, op := range wordOps {
		if i := strings.Index(s, " "+string(op)+" "); i >= 0 && (at < 0 || i < at) {
			at, word = i, op
		}
	}
	if at >= 0 && (sym < 0 || at < sym) {
		p := types.Predicate{
			Field: strings.TrimSpace(s[:at]),
			Op:    word,
			Value: strings.TrimSpace(s[at+len(word)+2:]),
		}
		if word == types.OpIn {
			p.Values, p.Value = splitList(p.Value), ""
		}
		return p, nil
	}

	i := sym
	if i <= 0 {
		return types.Predicate{}, &types.ConfigError{
			Field:  "filter",
			Reason: fmt.Sprintf("cannot parse %q: want <field> <op> <value>", s),
		}
	}
	op := types.Comparator(s[i : i+1])
	if i+1 < len(s) && s[i+1] == '=' && op != types.OpEqual {
		op = types.Comparator(s[i : i+2])
	}
	return types.Predicate{
		Field: strings.TrimSpace(s[:i]),
		Op:    op,
		Value: strings.TrimSpace(s[i+len(op):]),
	}, nil
}

// ParsePredicates parses each expression in order.
func ParsePredicates(exprs []string) ([]types.Predicate, error) {
	out := make([]types.Predicate, 0, len(exprs))
	for _, e := range exprs {
		p, err := ParsePredicate(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Format renders p in the form ParsePredicate accepts.
func Format(p types.Predicate) string {
	switch p.Op {
	case types.OpIsNull:
		return p.Field + " " + string(p.Op)
	case types.OpIn:
		values := p.Values
		if len(values) == 0 {
			values = splitList(p.Value)
		}
		return p.Field + " in " + strings.Join(values, ",")
	case types.OpContains, types.OpMatches:
		return p.Field + " " + string(p.Op) + " " + p.Value
	default:
		return p.Field + string(p.Op) + p.Value
	}
}
