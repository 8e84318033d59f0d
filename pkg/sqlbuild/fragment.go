package sqlbuild

import (
	"slices"
	"strings"
)

// Select is an immutable SELECT fragment. Each With* method returns a copy.
type Select struct {
	columns []Stmt
	from    Stmt
	alias   string
	joins   []Stmt
	where   []Stmt
	groupBy []string
	having  []Stmt
}

// NewSelect returns a fragment selecting from source.
func NewSelect(from Stmt, alias string) Select {
	return Select{from: from, alias: alias}
}

// Alias returns the fragment's source alias.
func (s Select) Alias() string { return s.alias }

// WithColumns returns a copy with columns appended.
func (s Select) WithColumns(cols ...Stmt) Select {
	s.columns = append(slices.Clip(s.columns), cols...)
	return s
}

// WithJoin returns a copy with a join clause appended.
func (s Select) WithJoin(join Stmt) Select {
	s.joins = append(slices.Clip(s.joins), join)
	return s
}

// WithWhere returns a copy with predicates appended. Empty predicates are skipped.
func (s Select) WithWhere(preds ...Stmt) Select {
	s.where = appendNonEmpty(slices.Clip(s.where), preds)
	return s
}

// WithGroupBy returns a copy with grouping columns appended.
func (s Select) WithGroupBy(cols ...string) Select {
	s.groupBy = append(slices.Clip(s.groupBy), cols...)
	return s
}

// WithHaving returns a copy with HAVING predicates appended.
func (s Select) WithHaving(preds ...Stmt) Select {
	s.having = appendNonEmpty(slices.Clip(s.having), preds)
	return s
}

func appendNonEmpty(dst []Stmt, src []Stmt) []Stmt {
	for _, p := range src {
		if !p.IsEmpty() {
			dst = append(dst, p)
		}
	}
	return dst
}

// Render returns the fragment as a statement.
func (s Select) Render() Stmt {
	from := s.from
	if s.alias != "" {
		from = Concat(from, TableAlias(s.alias))
	}

	parts := []Stmt{
		Text("SELECT "),
		Join(", ", s.columns...),
		Text(" FROM "),
		from,
	}
	for _, j := range s.joins {
		parts = append(parts, Text(" "), j)
	}
	if len(s.where) > 0 {
		parts = append(parts, Text(" WHERE "), Join(" AND ", s.where...))
	}
	if len(s.groupBy) > 0 {
		parts = append(parts, Text(" GROUP BY "+strings.Join(s.groupBy, ", ")))
	}
	if len(s.having) > 0 {
		parts = append(parts, Text(" HAVING "), Join(" AND ", s.having...))
	}
	return Concat(parts...)
}
