package core

// DialectConfig holds the static configuration for a SQL dialect.
// It holds data only, no handler functions.
//
// The runtime behavior (date arithmetic, casts, parameter declarations)
// lives in pkg/dialect.Dialect, which embeds this config.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "tsql", "postgres")
	Name string

	// Identifiers defines quoting rules
	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("dbo" for SQL Server, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// Now is the expression returning the current timestamp.
	Now string

	// Intersect and Except are the set operator keywords. An empty value
	// means the dialect does not support the operator.
	Intersect string
	Except    string

	// OmitTableAliasAs drops AS before table aliases (Oracle rejects it).
	OmitTableAliasAs bool

	// Types maps the abstract column types to native type names.
	Types map[ColumnType]string
}

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
	// PlaceholderAtName uses @name for parameters (SQL Server, BigQuery).
	PlaceholderAtName
	// PlaceholderColonName uses :name for parameters (Oracle).
	PlaceholderColonName
)

// String returns the string representation of PlaceholderStyle.
func (p PlaceholderStyle) String() string {
	switch p {
	case PlaceholderQuestion:
		return "?"
	case PlaceholderDollar:
		return "$n"
	case PlaceholderAtName:
		return "@name"
	case PlaceholderColonName:
		return ":name"
	default:
		return "unknown"
	}
}

// Named reports whether parameters are referenced by name rather than position.
func (p PlaceholderStyle) Named() bool {
	return p == PlaceholderAtName || p == PlaceholderColonName
}

// IdentifierConfig defines how identifiers are quoted.
type IdentifierConfig struct {
	Quote    string // Quote character: ", `, [
	QuoteEnd string // End quote character (usually same as Quote, ] for [)
	Escape   string // Escape sequence: "", ``, ]]
}

// ColumnType is the abstract type of a declared or converted value.
type ColumnType int

const (
	ColumnString ColumnType = iota
	ColumnInteger
	ColumnDecimal
	ColumnDate
	ColumnBoolean
	ColumnGUID
)

// String returns the string representation of ColumnType.
func (c ColumnType) String() string {
	switch c {
	case ColumnString:
		return "string"
	case ColumnInteger:
		return "integer"
	case ColumnDecimal:
		return "decimal"
	case ColumnDate:
		return "date"
	case ColumnBoolean:
		return "boolean"
	case ColumnGUID:
		return "guid"
	default:
		return "unknown"
	}
}
