// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Comparator names a predicate comparison.
type Comparator string

const (
	OpEqual        Comparator = "="
	OpLess         Comparator = "<"
	OpGreater      Comparator = ">"
	OpLessEqual    Comparator = "<="
	OpGreaterEqual Comparator = ">="
	OpIn           Comparator = "in"
	OpContains     Comparator = "contains"
	OpMatches      Comparator = "matches"
	OpIsNull       Comparator = "is_null"
)

// Comparators lists every supported comparator.
var Comparators = []Comparator{
	OpEqual, OpLess, OpGreater, OpLessEqual, OpGreaterEqual,
	OpIn, OpContains, OpMatches, OpIsNull,
}

// Predicate is a single filter condition over a named Record field.
// Predicates in a filter set are combined with logical AND.
type Predicate struct {
	Field string     `json:"field" yaml:"field"`
	Op    Comparator `json:"op" yaml:"op"`

	// Value is the literal for single-valued comparators.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Values is the literal set for "in".
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Query is the user's search intent.
type Query struct {
	// Search is passed through verbatim to the remote search syntax
	// (e.g. `chicken[Organism] AND "strategy rna seq"[Properties]`).
	Search string `json:"search" yaml:"search"`

	// MaxRecords is the upper bound on identifiers considered.
	MaxRecords int `json:"max_records" yaml:"max_records"`

	// Filters are the post-fetch predicates.
	Filters []Predicate `json:"filters,omitempty" yaml:"filters,omitempty"`
}
