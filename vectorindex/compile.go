package vectorindex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"floatchat/filter"

	"github.com/lib/pq"
)

// compiler turns a filter expression into a SQL predicate over the metadata
// JSONB column. Placeholders continue from the supplied offset.
type compiler struct {
	args []any
	next int
}

// Compile returns the SQL predicate and its arguments. Placeholders start at
// $firstArg. An empty expression compiles to "TRUE".
func Compile(expr filter.Expression, firstArg int) (string, []any, error) {
	if expr.IsEmpty() {
		return "TRUE", nil, nil
	}
	c := &compiler{next: firstArg}
	sql, err := c.node(expr.Root)
	if err != nil {
		return "", nil, err
	}
	return sql, c.args, nil
}

func (c *compiler) placeholder(v any) string {
	c.args = append(c.args, v)
	p := fmt.Sprintf("$%d", c.next)
	c.next++
	return p
}

func (c *compiler) node(n *filter.Node) (string, error) {
	if n.IsLeaf() {
		return c.predicate(*n.Predicate)
	}
	parts := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		s, err := c.node(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	joiner := " AND "
	if n.Combinator == filter.Or {
		joiner = " OR "
	}
	return "(" + strings.Join(parts, joiner) + ")", nil
}

func jsonKey(attr string) string {
	return "'" + strings.ReplaceAll(attr, "'", "''") + "'"
}

func (c *compiler) predicate(p filter.Predicate) (string, error) {
	kind, ok := filter.KindOf(p.Attribute)
	if !ok {
		return "", fmt.Errorf("attribute %q is not filterable", p.Attribute)
	}
	key := jsonKey(p.Attribute)
	text := "metadata->>" + key
	number := "(" + text + ")::double precision"

	switch p.Op {
	case filter.OpEq, filter.OpNe:
		var cond string
		if p.Attribute == "REGIONS_VISITED" {
			// stored as a joined list; equality means "includes"
			cond = fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", text, c.placeholder(filter.FormatValue(p.Value)))
		} else {
			doc, err := json.Marshal(map[string]any{p.Attribute: containmentValue(kind, p.Value)})
			if err != nil {
				return "", fmt.Errorf("marshal containment filter: %w", err)
			}
			cond = fmt.Sprintf("metadata @> %s::jsonb", c.placeholder(string(doc)))
		}
		if p.Op == filter.OpNe {
			return "NOT (" + cond + ")", nil
		}
		return cond, nil

	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		sym := map[filter.Op]string{filter.OpGt: ">", filter.OpGte: ">=", filter.OpLt: "<", filter.OpLte: "<="}[p.Op]
		return fmt.Sprintf("%s %s %s", number, sym, c.placeholder(p.Value)), nil

	case filter.OpIn, filter.OpNin:
		var cond string
		if kind == filter.KindNumber {
			nums := make([]float64, 0, len(p.Values))
			for _, v := range p.Values {
				f, err := strconv.ParseFloat(filter.FormatValue(v), 64)
				if err != nil {
					return "", fmt.Errorf("%s %s: non-numeric value %v", p.Attribute, p.Op, v)
				}
				nums = append(nums, f)
			}
			cond = fmt.Sprintf("%s = ANY(%s::double precision[])", number, c.placeholder(pq.Array(nums)))
		} else {
			strs := make([]string, 0, len(p.Values))
			for _, v := range p.Values {
				strs = append(strs, filter.FormatValue(v))
			}
			cond = fmt.Sprintf("%s = ANY(%s::text[])", text, c.placeholder(pq.Array(strs)))
		}
		if p.Op == filter.OpNin {
			return "COALESCE(NOT (" + cond + "), TRUE)", nil
		}
		return cond, nil
	}
	return "", fmt.Errorf("unsupported operator %q", p.Op)
}

// containmentValue coerces numeric ids given as strings so jsonb containment
// compares numbers with numbers.
func containmentValue(kind filter.Kind, v any) any {
	if kind != filter.KindNumber {
		return v
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return v
}
