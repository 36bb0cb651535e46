package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Rejection records a predicate or subtree that was dropped from a proposed filter.
type Rejection struct {
	Attribute string
	Reason    string
}

func (r Rejection) String() string {
	if r.Attribute == "" {
		return r.Reason
	}
	return r.Attribute + ": " + r.Reason
}

var operators = map[string]Op{
	"$eq": OpEq, "$ne": OpNe,
	"$gt": OpGt, "$gte": OpGte,
	"$lt": OpLt, "$lte": OpLte,
	"$in": OpIn, "$nin": OpNin,
}

// ParseJSON decodes a `where` document in the $and/$or/$eq dialect.
func ParseJSON(raw []byte) (Expression, []Rejection, error) {
	var where map[string]any
	if err := json.Unmarshal(raw, &where); err != nil {
		return Empty(), nil, fmt.Errorf("decode where filter: %w", err)
	}
	expr, rejected := Parse(where)
	return expr, rejected, nil
}

// Parse converts a decoded `where` document into an Expression. Malformed
// subtrees are dropped and reported; several top-level keys are folded into
// one AND so there is always a single root.
func Parse(where map[string]any) (Expression, []Rejection) {
	p := &parser{}
	root, ok := p.object(where)
	if !ok {
		return Empty(), p.rejected
	}
	return Expression{Root: root}, p.rejected
}

type parser struct {
	rejected []Rejection
}

func (p *parser) reject(attr, format string, args ...any) {
	p.rejected = append(p.rejected, Rejection{Attribute: attr, Reason: fmt.Sprintf(format, args...)})
}

// object parses a map node. ok=false means the node was malformed and dropped.
func (p *parser) object(m map[string]any) (*Node, bool) {
	if len(m) == 0 {
		return nil, true
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var nodes []*Node
	for _, key := range keys {
		value := m[key]
		switch strings.ToLower(key) {
		case "$and", "$or":
			node, ok := p.combinator(strings.ToLower(key), value)
			if !ok {
				continue
			}
			nodes = append(nodes, node)
		default:
			if strings.HasPrefix(key, "$") {
				p.reject("", "unknown combinator %q", key)
				continue
			}
			node, ok := p.predicate(key, value)
			if !ok {
				continue
			}
			nodes = append(nodes, node)
		}
	}
	if len(nodes) == 0 {
		return nil, false
	}
	return All(nodes...), true
}

func (p *parser) combinator(key string, value any) (*Node, bool) {
	items, ok := value.([]any)
	if !ok {
		p.reject("", "%s expects a list", key)
		return nil, false
	}

	children := make([]*Node, 0, len(items))
	for _, item := range items {
		m, isMap := item.(map[string]any)
		if !isMap {
			p.reject("", "%s item is not an object", key)
			if key == "$or" {
				return nil, false
			}
			continue
		}
		child, ok := p.object(m)
		if !ok || child == nil {
			// Dropping a branch of an OR would narrow it; drop the whole OR.
			if key == "$or" {
				p.reject("", "$or dropped because a branch was rejected")
				return nil, false
			}
			continue
		}
		children = append(children, child)
	}

	if key == "$or" {
		return Any(children...), len(children) > 0
	}
	return All(children...), len(children) > 0
}

func (p *parser) predicate(key string, value any) (*Node, bool) {
	attr := Canonical(key)
	switch v := value.(type) {
	case string, float64, bool:
		return Leaf(attr, OpEq, v), true
	case map[string]any:
		if len(v) == 0 {
			p.reject(attr, "empty operator object")
			return nil, false
		}
		opKeys := make([]string, 0, len(v))
		for k := range v {
			opKeys = append(opKeys, k)
		}
		sort.Strings(opKeys)

		// {"$gte": 1, "$lte": 5} is read as an AND of two predicates.
		var leaves []*Node
		for _, k := range opKeys {
			op, known := operators[strings.ToLower(k)]
			if !known {
				p.reject(attr, "unknown operator %q", k)
				return nil, false
			}
			if op.IsSet() {
				list, isList := v[k].([]any)
				if !isList || len(list) == 0 {
					p.reject(attr, "%s expects a non-empty list", k)
					return nil, false
				}
				leaves = append(leaves, SetLeaf(attr, op, list...))
				continue
			}
			switch v[k].(type) {
			case string, float64, bool:
				leaves = append(leaves, Leaf(attr, op, v[k]))
			default:
				p.reject(attr, "%s expects a scalar", k)
				return nil, false
			}
		}
		return All(leaves...), true
	default:
		p.reject(attr, "unsupported value %v", value)
		return nil, false
	}
}

// Reduce validates every predicate against the allow-list, the no-temporal
// rule, its value kind, and evidence in text. Failing predicates are dropped;
// an OR that loses a branch is dropped entirely so the result is never
// narrower than the proposal.
func Reduce(expr Expression, text string) (Expression, []Rejection) {
	var rejected []Rejection
	var reduce func(n *Node) *Node
	reduce = func(n *Node) *Node {
		if n == nil {
			return nil
		}
		if n.IsLeaf() {
			pred, reason := checkPredicate(*n.Predicate, text)
			if reason != "" {
				rejected = append(rejected, Rejection{Attribute: n.Predicate.Attribute, Reason: reason})
				return nil
			}
			return &Node{Predicate: &pred}
		}

		kids := make([]*Node, 0, len(n.Children))
		for _, c := range n.Children {
			r := reduce(c)
			if r == nil {
				if n.Combinator == Or {
					rejected = append(rejected, Rejection{Reason: "or dropped because a branch was rejected"})
					return nil
				}
				continue
			}
			kids = append(kids, r)
		}
		if n.Combinator == Or {
			return Any(kids...)
		}
		return All(kids...)
	}
	return Expression{Root: reduce(expr.Root)}, rejected
}

// checkPredicate returns the normalised predicate, or a rejection reason.
func checkPredicate(p Predicate, text string) (Predicate, string) {
	p.Attribute = Canonical(p.Attribute)
	if IsTemporal(p) {
		return p, "temporal predicates are not allowed"
	}
	attr, ok := attributes[p.Attribute]
	if !ok {
		return p, "attribute not in allow-list"
	}

	switch attr.kind {
	case KindFlag:
		if p.Op != OpEq && p.Op != OpNe {
			return p, fmt.Sprintf("flag does not support %s", p.Op)
		}
		b, ok := asBool(p.Value)
		if !ok {
			return p, "flag value must be boolean"
		}
		p.Value = b
	case KindNumber:
		if p.Op.IsRange() {
			f, ok := asNumber(p.Value)
			if !ok {
				return p, fmt.Sprintf("%s needs a number", p.Op)
			}
			p.Value = f
		}
	case KindText:
		if p.Op.IsRange() {
			return p, fmt.Sprintf("text attribute does not support %s", p.Op)
		}
	}

	if !Evidenced(p, text) {
		return p, "attribute not evidenced in question"
	}
	return p, ""
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// formatValue renders a predicate value the way it is stored in metadata.
func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// FormatValue is the exported form used by SQL compilation.
func FormatValue(v any) string {
	return formatValue(v)
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}
