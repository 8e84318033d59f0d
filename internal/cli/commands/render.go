package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/cohortsql/internal/cli/config"
	"github.com/leapstack-labs/cohortsql/internal/dataset"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
)

// Data formats accepted by --format.
const (
	formatTable    = "table"
	formatJSON     = "json"
	formatCSV      = "csv"
	formatMarkdown = "md"
)

// dataFormat returns the format rows are rendered in: the --format flag if
// given, otherwise the one matching the global output mode.
func dataFormat(flag, output string) string {
	if flag != "" {
		return flag
	}
	if output == config.OutputJSON {
		return formatJSON
	}
	return formatTable
}

// renderRows writes cols and rows in format.
func renderRows(w io.Writer, cols []string, rows [][]any, format string) error {
	switch format {
	case formatJSON:
		results := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			m := make(map[string]any, len(cols))
			for i, col := range cols {
				m[col] = row[i]
			}
			results = append(results, m)
		}
		return renderJSON(w, results)
	case formatCSV:
		return renderCSV(w, cols, rows)
	case formatMarkdown, "markdown":
		return renderMarkdown(w, cols, rows)
	case formatTable, "":
		return renderTable(w, cols, rows)
	default:
		return fmt.Errorf("unknown format %q (expected table, json, csv or md)", format)
	}
}

func renderTable(w io.Writer, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i := range cols {
			row[i] = formatValue(r[i])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderCSV(w io.Writer, cols []string, rows [][]any) error {
	_, _ = fmt.Fprintln(w, strings.Join(cols, ","))

	for _, r := range rows {
		values := make([]string, len(cols))
		for i := range cols {
			values[i] = escapeCSV(formatValue(r[i]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, r := range rows {
		values := make([]string, len(cols))
		for i := range cols {
			values[i] = formatValue(r[i])
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// parameterJSON is one bound parameter in JSON output.
type parameterJSON struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func parametersJSON(params []core.QueryParameter) []parameterJSON {
	out := make([]parameterJSON, len(params))
	for i, p := range params {
		out[i] = parameterJSON{Name: p.Name, Value: p.Value}
	}
	return out
}

// renderParameters writes params as a table after compiled SQL.
func renderParameters(w io.Writer, params []core.QueryParameter) {
	if len(params) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Parameter", "Value"})
	for _, p := range params {
		t.AppendRow(table.Row{p.Name, formatValue(p.Value)})
	}
	_, _ = fmt.Fprintln(w)
	t.Render()
}

// executionJSON is an ExecutionContext in JSON output.
type executionJSON struct {
	Shape      string                 `json:"shape"`
	QueryID    string                 `json:"query_id"`
	Prelude    []string               `json:"prelude"`
	SQL        string                 `json:"sql"`
	Epilogue   []string               `json:"epilogue"`
	Parameters []parameterJSON        `json:"parameters"`
	Fields     []schema.FieldSelector `json:"fields,omitempty"`
}

// renderExecution writes a compiled extract: its prelude, query and
// epilogue as a runnable script in text mode, or one JSON object.
func renderExecution(w io.Writer, ec dataset.ExecutionContext, output string) error {
	if output == config.OutputJSON {
		out := executionJSON{
			Shape:      ec.Shape.String(),
			QueryID:    ec.QueryContext.QueryID.String(),
			Prelude:    nonNil(ec.QueryPrelude),
			SQL:        ec.CompiledQuery,
			Epilogue:   nonNil(ec.QueryEpilogue),
			Parameters: parametersJSON(ec.Parameters),
			Fields:     ec.FieldSelectors,
		}
		return renderJSON(w, out)
	}

	if len(ec.QueryPrelude) > 0 {
		_, _ = fmt.Fprintln(w, "-- cohort prelude")
		for _, stmt := range ec.QueryPrelude {
			_, _ = fmt.Fprintf(w, "%s;\n", stmt)
		}
		_, _ = fmt.Fprintln(w)
	}
	_, _ = fmt.Fprintf(w, "%s;\n", ec.CompiledQuery)
	if len(ec.QueryEpilogue) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "-- cohort epilogue")
		for _, stmt := range ec.QueryEpilogue {
			_, _ = fmt.Fprintf(w, "%s;\n", stmt)
		}
	}
	renderParameters(w, ec.Parameters)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
