// Package dialect provides SQL dialect syntax for the query compiler.
//
// This package contains the public contract for dialect definitions used by
// the clause builders, the panel compiler and the cohort preparers. Concrete
// dialect implementations are registered from pkg/dialects/*/ packages.
package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/cohortsql/pkg/core"
)

// ErrUnsupported is returned when a dialect lacks a requested feature.
var ErrUnsupported = errors.New("not supported by dialect")

// DateAddFunc renders date arithmetic. unit is the native unit keyword.
type DateAddFunc func(unit string, amount int, date string) string

// ConvertFunc renders a conversion of value to the native type name.
type ConvertFunc func(typeName, value string) string

// DeclareFunc renders a variable declaration. name is the bare variable name.
type DeclareFunc func(name, typeName, value string) string

// Dialect represents a SQL dialect: static configuration plus the syntax
// functions that vary between databases. A Dialect is immutable once built.
type Dialect struct {
	core.DialectConfig

	timeUnits map[core.DateIncrementType]string
	dateAdd   DateAddFunc
	convert   ConvertFunc
	declare   DeclareFunc
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	cfg := d.DialectConfig
	cfg.Types = make(map[core.ColumnType]string, len(d.Types))
	for k, v := range d.Types {
		cfg.Types[k] = v
	}
	return &cfg
}

// GetName returns the dialect name.
func (d *Dialect) GetName() string {
	return d.Name
}

// Now returns the expression for the current timestamp.
func (d *Dialect) Now() string {
	return d.DialectConfig.Now
}

// ToSQLTime returns the native keyword for a relative date unit.
func (d *Dialect) ToSQLTime(unit core.DateIncrementType) (string, error) {
	if !unit.IsUnit() {
		return "", fmt.Errorf("%s: %s is not a date unit", d.Name, unit)
	}
	kw, ok := d.timeUnits[unit]
	if !ok {
		return "", fmt.Errorf("%s: date unit %s: %w", d.Name, unit, ErrUnsupported)
	}
	return kw, nil
}

// DateAdd returns date shifted by amount units.
func (d *Dialect) DateAdd(unit core.DateIncrementType, amount int, date string) (string, error) {
	kw, err := d.ToSQLTime(unit)
	if err != nil {
		return "", err
	}
	return d.dateAdd(kw, amount, date), nil
}

// ToSQLType returns the native type name for an abstract column type.
func (d *Dialect) ToSQLType(t core.ColumnType) (string, error) {
	name, ok := d.Types[t]
	if !ok {
		return "", fmt.Errorf("%s: column type %s: %w", d.Name, t, ErrUnsupported)
	}
	return name, nil
}

// Convert returns value converted to the native type for t.
func (d *Dialect) Convert(t core.ColumnType, value string) (string, error) {
	name, err := d.ToSQLType(t)
	if err != nil {
		return "", err
	}
	return d.convert(name, value), nil
}

// DeclareParam returns a variable declaration statement.
func (d *Dialect) DeclareParam(name string, t core.ColumnType, value string) (string, error) {
	if d.declare == nil {
		return "", fmt.Errorf("%s: parameter declarations: %w", d.Name, ErrUnsupported)
	}
	typeName, err := d.ToSQLType(t)
	if err != nil {
		return "", err
	}
	return d.declare(name, typeName, value), nil
}

// Intersect returns the set intersection keyword.
func (d *Dialect) Intersect() (string, error) {
	if d.DialectConfig.Intersect == "" {
		return "", fmt.Errorf("%s: INTERSECT: %w", d.Name, ErrUnsupported)
	}
	return d.DialectConfig.Intersect, nil
}

// Except returns the set difference keyword.
func (d *Dialect) Except() (string, error) {
	if d.DialectConfig.Except == "" {
		return "", fmt.Errorf("%s: EXCEPT: %w", d.Name, ErrUnsupported)
	}
	return d.DialectConfig.Except, nil
}

// ParamName returns the placeholder for a named parameter.
// ordinal is the 1-based position used by positional styles.
func (d *Dialect) ParamName(name string, ordinal int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(ordinal)
	case core.PlaceholderAtName:
		return "@" + name
	case core.PlaceholderColonName:
		return ":" + name
	default: // PlaceholderQuestion
		return "?"
	}
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// ---------- Builder ----------

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// standardTimeUnits are the unit keywords shared by most dialects.
var standardTimeUnits = map[core.DateIncrementType]string{
	core.DateMinute: "MINUTE",
	core.DateHour:   "HOUR",
	core.DateDay:    "DAY",
	core.DateWeek:   "WEEK",
	core.DateMonth:  "MONTH",
	core.DateYear:   "YEAR",
}

// NewDialect creates a dialect builder with ANSI defaults.
func NewDialect(name string) *Builder {
	return New(&core.DialectConfig{
		Name: name,
		Identifiers: core.IdentifierConfig{
			Quote:    `"`,
			QuoteEnd: `"`,
			Escape:   `""`,
		},
		Now:       "CURRENT_TIMESTAMP",
		Intersect: "INTERSECT",
		Except:    "EXCEPT",
	})
}

// New creates a dialect builder from a static configuration.
func New(cfg *core.DialectConfig) *Builder {
	d := &Dialect{
		DialectConfig: *cfg,
		timeUnits:     make(map[core.DateIncrementType]string, len(standardTimeUnits)),
		dateAdd:       FunctionDateAdd,
		convert:       CastConvert,
	}
	d.Types = make(map[core.ColumnType]string, len(cfg.Types))
	for k, v := range cfg.Types {
		d.Types[k] = v
	}
	for k, v := range standardTimeUnits {
		d.timeUnits[k] = v
	}
	return &Builder{dialect: d}
}

// PlaceholderStyle sets the parameter placeholder style.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// Now sets the current timestamp expression.
func (b *Builder) Now(expr string) *Builder {
	b.dialect.DialectConfig.Now = expr
	return b
}

// SetOperators sets the intersect and except keywords. Empty disables one.
func (b *Builder) SetOperators(intersect, except string) *Builder {
	b.dialect.DialectConfig.Intersect = intersect
	b.dialect.DialectConfig.Except = except
	return b
}

// Type sets the native name for a column type.
func (b *Builder) Type(t core.ColumnType, name string) *Builder {
	b.dialect.Types[t] = name
	return b
}

// TimeUnit overrides the keyword for a date unit.
func (b *Builder) TimeUnit(unit core.DateIncrementType, keyword string) *Builder {
	b.dialect.timeUnits[unit] = keyword
	return b
}

// DateAdd sets the date arithmetic renderer.
func (b *Builder) DateAdd(fn DateAddFunc) *Builder {
	b.dialect.dateAdd = fn
	return b
}

// Convert sets the type conversion renderer.
func (b *Builder) Convert(fn ConvertFunc) *Builder {
	b.dialect.convert = fn
	return b
}

// DeclareParam sets the variable declaration renderer.
func (b *Builder) DeclareParam(fn DeclareFunc) *Builder {
	b.dialect.declare = fn
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}

// ---------- Shared renderers ----------

// FunctionDateAdd renders DATEADD(unit, amount, date).
func FunctionDateAdd(unit string, amount int, date string) string {
	return fmt.Sprintf("DATEADD(%s, %d, %s)", unit, amount, date)
}

// IntervalDateAdd renders date + INTERVAL 'amount' unit.
func IntervalDateAdd(unit string, amount int, date string) string {
	return fmt.Sprintf("%s + INTERVAL '%d' %s", date, amount, unit)
}

// CastConvert renders CAST(value AS type).
func CastConvert(typeName, value string) string {
	return fmt.Sprintf("CAST(%s AS %s)", value, typeName)
}

// QuotedIntervalDateAdd renders date + INTERVAL 'amount unit'.
func QuotedIntervalDateAdd(unit string, amount int, date string) string {
	return fmt.Sprintf("%s + INTERVAL '%d %s'", date, amount, unit)
}
