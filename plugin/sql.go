package plugin

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/tool"
)

// DefaultMaxRows caps SQL plugin results when max_rows is unset.
const DefaultMaxRows = 100

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// SQL runs a parameterized query. Placeholders of the form {name} are bound
// as driver arguments from the call arguments, never interpolated.
type SQL struct {
	base
	db      *sql.DB
	query   string
	names   []string
	maxRows int
}

// NewSQL builds a SQL plugin over an open database.
func NewSQL(def Definition, db *sql.DB) (*SQL, error) {
	if def.Kind == "" {
		def.Kind = KindSQL
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	query, names := compileQuery(def.Query, def.Driver)
	if err := checkDeclared(def, names); err != nil {
		return nil, err
	}
	if len(def.Parameters) == 0 && len(names) > 0 {
		def.Parameters = placeholderSchema(names)
	}
	maxRows := def.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &SQL{
		base:    base{def: def, selector: SearchTerms(def.SearchTerms...)},
		db:      db,
		query:   query,
		names:   names,
		maxRows: maxRows,
	}, nil
}

// compileQuery rewrites {name} placeholders into the driver's bind syntax
// and returns the argument names in bind order.
func compileQuery(q, driver string) (string, []string) {
	var names []string
	numbered := driver == "postgres" || driver == "pgx"
	out := placeholderPattern.ReplaceAllStringFunc(q, func(m string) string {
		names = append(names, placeholderPattern.FindStringSubmatch(m)[1])
		if numbered {
			return fmt.Sprintf("$%d", len(names))
		}
		return "?"
	})
	return out, names
}

// Invoke implements tool.Plugin.
func (s *SQL) Invoke(ctx context.Context, args map[string]any) (any, error) {
	binds := make([]any, 0, len(s.names))
	for _, n := range s.names {
		v, ok := args[n]
		if !ok {
			return nil, tool.NewToolError(s.def.Name, fmt.Sprintf("missing argument %q", n), tool.CodeValidation)
		}
		binds = append(binds, v)
	}

	rows, err := s.db.QueryContext(ctx, s.query, binds...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, 0)
	truncated := false
	for rows.Next() {
		if len(result) == s.maxRows {
			truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return map[string]any{
		"columns":   cols,
		"rows":      result,
		"truncated": truncated,
	}, nil
}

// Close releases the database handle.
func (s *SQL) Close() error { return s.db.Close() }

// Query returns the compiled query text.
func (s *SQL) Query() string { return s.query }

// placeholderSchema declares every placeholder as a required string.
func placeholderSchema(names []string) map[string]any {
	props := make(map[string]any, len(names))
	required := make([]any, 0, len(names))
	for _, n := range names {
		if _, seen := props[n]; seen {
			continue
		}
		props[n] = map[string]any{"type": "string"}
		required = append(required, n)
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

// checkDeclared rejects placeholders missing from an explicit parameter schema.
func checkDeclared(def Definition, names []string) error {
	if len(def.Parameters) == 0 {
		return nil
	}
	props, _ := def.Parameters["properties"].(map[string]any)
	missing := make([]string, 0)
	for _, n := range names {
		if _, ok := props[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return core.Errorf(core.ErrConfiguration, "plugin.validate", "plugin %q: query placeholders not declared in parameters: %s", def.Name, strings.Join(missing, ", "))
	}
	return nil
}
