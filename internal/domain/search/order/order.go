package order

import (
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Clause sorts results by one field.
type Clause struct {
	field     string
	direction Direction
}

// New validates and creates a sort clause.
func New(field string, dir Direction) (Clause, error) {
	if field == "" {
		return Clause{}, fmt.Errorf("sort field is required")
	}
	if dir != Asc && dir != Desc {
		return Clause{}, fmt.Errorf("invalid sort direction %q", dir)
	}
	return Clause{field: field, direction: dir}, nil
}

// Parse reads the "field:dir" form. A missing direction means ascending.
func Parse(s string) (Clause, error) {
	field, dir, found := strings.Cut(s, ":")
	if !found {
		dir = string(Asc)
	}
	return New(strings.TrimSpace(field), Direction(strings.ToLower(strings.TrimSpace(dir))))
}

// Field returns the sorted field.
func (c Clause) Field() string { return c.field }

// Direction returns the sort direction.
func (c Clause) Direction() Direction { return c.direction }

// String returns the "field:dir" form accepted by Parse.
func (c Clause) String() string { return c.field + ":" + string(c.direction) }

// Equal reports whether two clause lists are identical in order.
func Equal(a, b []Clause) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
