// Package sqlbuild provides immutable SQL fragments with parameter slots.
//
// Statements are composed from literal text and named parameter slots.
// Slots carry their bound value and are resolved to a dialect's placeholder
// syntax in a single final pass, so composition order never affects which
// value a placeholder receives.
package sqlbuild

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

// Param is a named parameter slot and its bound value.
type Param struct {
	Name  string
	Value any
}

type part struct {
	text string
	slot *Param
	// alias is a table alias; its keyword depends on the dialect.
	alias string
}

// Stmt is an immutable sequence of SQL text and parameter slots.
// The zero value is an empty statement.
type Stmt struct {
	parts []part
}

// Text returns a statement holding literal SQL.
func Text(s string) Stmt {
	if s == "" {
		return Stmt{}
	}
	return Stmt{parts: []part{{text: s}}}
}

// Textf returns a statement holding formatted literal SQL.
func Textf(format string, args ...any) Stmt {
	return Text(fmt.Sprintf(format, args...))
}

// Slot returns a statement holding a single parameter slot.
func Slot(name string, value any) Stmt {
	return Stmt{parts: []part{{slot: &Param{Name: name, Value: value}}}}
}

// TableAlias returns " AS alias", rendered without AS for dialects that
// reject the keyword on table aliases.
func TableAlias(alias string) Stmt {
	if alias == "" {
		return Stmt{}
	}
	return Stmt{parts: []part{{alias: alias}}}
}

// Concat returns the statements joined without separators.
func Concat(stmts ...Stmt) Stmt {
	n := 0
	for _, s := range stmts {
		n += len(s.parts)
	}
	parts := make([]part, 0, n)
	for _, s := range stmts {
		parts = append(parts, s.parts...)
	}
	return Stmt{parts: parts}
}

// Join returns the non-empty statements joined by sep.
func Join(sep string, stmts ...Stmt) Stmt {
	out := make([]Stmt, 0, len(stmts)*2)
	for _, s := range stmts {
		if s.IsEmpty() {
			continue
		}
		if len(out) > 0 {
			out = append(out, Text(sep))
		}
		out = append(out, s)
	}
	return Concat(out...)
}

// IsEmpty reports whether the statement has no text and no slots.
func (s Stmt) IsEmpty() bool {
	for _, p := range s.parts {
		if p.slot != nil || p.text != "" || p.alias != "" {
			return false
		}
	}
	return true
}

// Params returns the distinct parameters in order of first appearance.
func (s Stmt) Params() []Param {
	seen := make(map[string]bool)
	var out []Param
	for _, p := range s.parts {
		if p.slot == nil || seen[p.slot.Name] {
			continue
		}
		seen[p.slot.Name] = true
		out = append(out, *p.slot)
	}
	return out
}

// String renders the statement with slots shown as {{name}}.
// It is meant for logs and guards, never for execution.
func (s Stmt) String() string {
	var sb strings.Builder
	for _, p := range s.parts {
		if p.slot != nil {
			sb.WriteString("{{" + p.slot.Name + "}}")
			continue
		}
		if p.alias != "" {
			sb.WriteString(" AS " + p.alias)
			continue
		}
		sb.WriteString(p.text)
	}
	return sb.String()
}

// Rendered is a statement resolved for one dialect.
type Rendered struct {
	SQL string
	// Params lists each distinct parameter once, in order of first appearance.
	Params []core.QueryParameter
	// Args are the driver arguments matching the placeholders in SQL.
	Args []any
}

// Resolve renders the statement for d, replacing every slot with the
// dialect's placeholder and collecting the matching driver arguments.
// A name bound to two different values is an error.
func (s Stmt) Resolve(d *dialect.Dialect) (Rendered, error) {
	if d == nil {
		return Rendered{}, dialect.ErrDialectRequired
	}

	var (
		sb       strings.Builder
		out      Rendered
		ordinals = make(map[string]int)
		values   = make(map[string]any)
	)

	for _, p := range s.parts {
		if p.alias != "" {
			if d.OmitTableAliasAs {
				sb.WriteString(" " + p.alias)
			} else {
				sb.WriteString(" AS " + p.alias)
			}
			continue
		}
		if p.slot == nil {
			sb.WriteString(p.text)
			continue
		}

		name := p.slot.Name
		ordinal, seen := ordinals[name]
		if seen {
			if !reflect.DeepEqual(values[name], p.slot.Value) {
				return Rendered{}, fmt.Errorf("parameter %q bound to conflicting values", name)
			}
		} else {
			ordinal = len(ordinals) + 1
			ordinals[name] = ordinal
			values[name] = p.slot.Value
			out.Params = append(out.Params, core.QueryParameter{Name: name, Value: p.slot.Value})
			switch d.Placeholder {
			case core.PlaceholderDollar:
				out.Args = append(out.Args, p.slot.Value)
			case core.PlaceholderAtName, core.PlaceholderColonName:
				out.Args = append(out.Args, sql.Named(name, p.slot.Value))
			}
		}
		if d.Placeholder == core.PlaceholderQuestion {
			out.Args = append(out.Args, p.slot.Value)
		}
		sb.WriteString(d.ParamName(name, ordinal))
	}

	out.SQL = sb.String()
	return out, nil
}
