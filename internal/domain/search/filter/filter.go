package filter

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// Kind distinguishes the two shapes a facet filter can take.
type Kind string

const (
	// AnyOf matches documents carrying at least one of the selected values.
	AnyOf Kind = "any-of"
	// Range matches documents whose numeric field lies within inclusive bounds.
	Range Kind = "range"
)

// Value is the selection on a single facet.
// An any-of value holds a sorted set of unique, non-empty values.
// A range value holds at least one bound.
type Value struct {
	kind   Kind
	values []string
	min    *float64
	max    *float64
}

// NewAnyOf validates and creates an any-of selection.
// Empty strings and duplicates are dropped.
func NewAnyOf(values ...string) (Value, error) {
	set := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			set = append(set, v)
		}
	}
	sort.Strings(set)
	set = slices.Compact(set)
	if len(set) == 0 {
		return Value{}, fmt.Errorf("at least one filter value is required")
	}
	return Value{kind: AnyOf, values: set}, nil
}

// NewRange validates and creates a range selection with inclusive bounds.
func NewRange(minVal, maxVal *float64) (Value, error) {
	if minVal == nil && maxVal == nil {
		return Value{}, fmt.Errorf("at least one range boundary is required")
	}
	for _, b := range []*float64{minVal, maxVal} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return Value{}, fmt.Errorf("range boundary %g is not a finite number", *b)
		}
	}
	if minVal != nil && maxVal != nil && *minVal > *maxVal {
		return Value{}, fmt.Errorf("range min %g is greater than max %g", *minVal, *maxVal)
	}
	return Value{kind: Range, min: copyFloat(minVal), max: copyFloat(maxVal)}, nil
}

// Kind returns the selection shape.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool { return v.kind == "" }

// Values returns a copy of the selected values in ascending order.
func (v Value) Values() []string { return slices.Clone(v.values) }

// Contains reports whether value is selected.
func (v Value) Contains(value string) bool {
	_, ok := slices.BinarySearch(v.values, value)
	return ok
}

// Min returns the lower inclusive bound.
func (v Value) Min() *float64 { return copyFloat(v.min) }

// Max returns the upper inclusive bound.
func (v Value) Max() *float64 { return copyFloat(v.max) }

// With returns an any-of selection that also includes value.
func (v Value) With(value string) (Value, error) {
	if v.kind == Range {
		return Value{}, fmt.Errorf("cannot add value %q to a range filter", value)
	}
	return NewAnyOf(append(v.Values(), value)...)
}

// Without returns the selection minus value.
// ok is false when nothing remains and the filter should be dropped.
func (v Value) Without(value string) (rest Value, ok bool) {
	if v.kind != AnyOf {
		return Value{}, false
	}
	left := make([]string, 0, len(v.values))
	for _, s := range v.values {
		if s != value {
			left = append(left, s)
		}
	}
	if len(left) == 0 {
		return Value{}, false
	}
	return Value{kind: AnyOf, values: left}, true
}

// InRange reports whether x satisfies the range bounds.
func (v Value) InRange(x float64) bool {
	if v.min != nil && x < *v.min {
		return false
	}
	if v.max != nil && x > *v.max {
		return false
	}
	return true
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind &&
		slices.Equal(v.values, o.values) &&
		floatEqual(v.min, o.min) &&
		floatEqual(v.max, o.max)
}

func (v Value) String() string {
	if v.kind == Range {
		return fmt.Sprintf("[%s..%s]", boundString(v.min), boundString(v.max))
	}
	return fmt.Sprintf("%v", v.values)
}

func boundString(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%g", *f)
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
