// Package filter models the metadata filter applied to similarity search over
// float summary documents: a single boolean tree of predicates over a fixed
// set of attributes.
package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Combinator joins child nodes.
type Combinator string

const (
	And Combinator = "and"
	Or  Combinator = "or"
)

// Op is a predicate comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
	OpNin Op = "nin"
)

// IsRange reports whether the operator compares numerically.
func (o Op) IsRange() bool {
	return o == OpGt || o == OpGte || o == OpLt || o == OpLte
}

// IsSet reports whether the operator takes a list of values.
func (o Op) IsSet() bool {
	return o == OpIn || o == OpNin
}

// Predicate is a leaf comparison. Value holds a string, float64 or bool for
// scalar operators; Values holds the list for in/nin.
type Predicate struct {
	Attribute string
	Op        Op
	Value     any
	Values    []any
}

func (p Predicate) String() string {
	if p.Op.IsSet() {
		parts := make([]string, len(p.Values))
		for i, v := range p.Values {
			parts[i] = formatValue(v)
		}
		return fmt.Sprintf("%s %s [%s]", p.Attribute, p.Op, strings.Join(parts, ","))
	}
	return fmt.Sprintf("%s %s %s", p.Attribute, p.Op, formatValue(p.Value))
}

// Node is either a combinator with children or a single predicate.
type Node struct {
	Combinator Combinator
	Children   []*Node
	Predicate  *Predicate
}

// IsLeaf reports whether the node carries a predicate.
func (n *Node) IsLeaf() bool {
	return n != nil && n.Predicate != nil
}

func (n *Node) String() string {
	if n == nil {
		return ""
	}
	if n.IsLeaf() {
		return n.Predicate.String()
	}
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s(%s)", n.Combinator, strings.Join(parts, ", "))
}

// Expression is the whole filter. A nil Root is the empty filter.
type Expression struct {
	Root *Node
}

// Empty returns the filter that matches everything.
func Empty() Expression {
	return Expression{}
}

// IsEmpty reports whether the expression has no predicates.
func (e Expression) IsEmpty() bool {
	return e.Root == nil
}

func (e Expression) String() string {
	if e.IsEmpty() {
		return "<empty>"
	}
	return e.Root.String()
}

// Predicates returns every leaf in depth-first order.
func (e Expression) Predicates() []Predicate {
	var out []Predicate
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.IsLeaf() {
			out = append(out, *n.Predicate)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(e.Root)
	return out
}

// Attributes returns the distinct attribute names used, sorted.
func (e Expression) Attributes() []string {
	seen := make(map[string]struct{})
	for _, p := range e.Predicates() {
		seen[p.Attribute] = struct{}{}
	}
	attrs := make([]string, 0, len(seen))
	for a := range seen {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	return attrs
}

// Leaf builds a single-predicate node.
func Leaf(attribute string, op Op, value any) *Node {
	return &Node{Predicate: &Predicate{Attribute: attribute, Op: op, Value: value}}
}

// SetLeaf builds an in/nin node.
func SetLeaf(attribute string, op Op, values ...any) *Node {
	return &Node{Predicate: &Predicate{Attribute: attribute, Op: op, Values: values}}
}

// All joins nodes with AND, collapsing trivial cases.
func All(children ...*Node) *Node {
	return combine(And, children)
}

// Any joins nodes with OR, collapsing trivial cases.
func Any(children ...*Node) *Node {
	return combine(Or, children)
}

func combine(c Combinator, children []*Node) *Node {
	kept := make([]*Node, 0, len(children))
	for _, ch := range children {
		if ch != nil {
			kept = append(kept, ch)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &Node{Combinator: c, Children: kept}
	}
}
