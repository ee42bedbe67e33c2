// Package predicate defines the backend-agnostic query handed to an
// executor: a boolean tree of column comparisons plus a sort clause and a
// pagination window.
//
// The tree is a description only. It MUST NOT know about SQL or any other
// storage engine; executors translate it.
package predicate

import (
	"fmt"
	"strings"

	"github.com/rubiojr/shelf/pkg/catalog"
)

// Node is a predicate tree node.
// The marker method prevents external types from implementing Node.
type Node interface {
	node()
	String() string
}

// Op is a leaf comparison.
type Op int

const (
	// OpEq is exact equality.
	OpEq Op = iota
	// OpContains is a case-insensitive substring match.
	OpContains
	// OpHas is array containment: the column's list holds Value.
	OpHas
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpContains:
		return "~"
	case OpHas:
		return "has"
	default:
		return "?"
	}
}

// Compare is a single column comparison.
type Compare struct {
	Column catalog.Column
	Op     Op
	Value  string
}

func (Compare) node() {}

func (c Compare) String() string {
	return fmt.Sprintf("%s %s %q", c.Column, c.Op, c.Value)
}

// Range is an inclusive range on a numeric or date column. A nil bound is
// open. Bounds are int for numeric columns and "YYYY-MM-DD" strings for
// date columns.
type Range struct {
	Column catalog.Column
	From   any
	To     any
}

func (Range) node() {}

func (r Range) String() string {
	from, to := "*", "*"
	if r.From != nil {
		from = fmt.Sprint(r.From)
	}
	if r.To != nil {
		to = fmt.Sprint(r.To)
	}
	return fmt.Sprintf("%s in [%s, %s]", r.Column, from, to)
}

// And matches when every term matches. An empty And matches everything.
type And struct {
	Terms []Node
}

func (And) node() {}

func (a And) String() string {
	if len(a.Terms) == 0 {
		return "TRUE"
	}
	return "(" + join(a.Terms, " AND ") + ")"
}

// Or matches when any term matches.
type Or struct {
	Terms []Node
}

func (Or) node() {}

func (o Or) String() string {
	return "(" + join(o.Terms, " OR ") + ")"
}

func join(terms []Node, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

// Eq builds an equality comparison.
func Eq(col catalog.Column, value string) Compare {
	return Compare{Column: col, Op: OpEq, Value: value}
}

// Contains builds a case-insensitive substring comparison.
func Contains(col catalog.Column, value string) Compare {
	return Compare{Column: col, Op: OpContains, Value: value}
}

// Has builds an array containment comparison.
func Has(col catalog.Column, value string) Compare {
	return Compare{Column: col, Op: OpHas, Value: value}
}

// AnyOf ORs the same comparison across several columns.
func AnyOf(op Op, value string, cols ...catalog.Column) Or {
	terms := make([]Node, len(cols))
	for i, c := range cols {
		terms[i] = Compare{Column: c, Op: op, Value: value}
	}
	return Or{Terms: terms}
}

// Sort is the ordering clause.
type Sort struct {
	Column    catalog.Column
	Direction catalog.Direction
}

// Query is a compiled query: the only thing an executor receives.
// It is a plain value; compile a new one instead of mutating it.
type Query struct {
	Where  And
	Sort   Sort
	Offset int
	Limit  int
}

func (q Query) String() string {
	return fmt.Sprintf("WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		q.Where, q.Sort.Column, q.Sort.Direction, q.Limit, q.Offset)
}

// Walk visits n and all its descendants depth-first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch v := n.(type) {
	case And:
		for _, t := range v.Terms {
			Walk(t, fn)
		}
	case Or:
		for _, t := range v.Terms {
			Walk(t, fn)
		}
	}
}
