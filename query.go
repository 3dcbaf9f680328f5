package gsheets

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	_ "modernc.org/sqlite"
)

// Matches identifiers following FROM or JOIN: either a double-quoted
// worksheet title or a bare identifier. Subqueries don't match (the next
// token is a parenthesis), which is what we want.
var tableNamePattern = regexp.MustCompile(`(?i)\b(?:from|join)\s+(?:"([^"]+)"|([A-Za-z_][A-Za-z0-9_]*))`)

// referencedTables extracts the worksheet titles a SQL statement reads
// from, in order of first appearance. Quoted titles may contain spaces;
// bare identifiers follow the usual rules.
func referencedTables(query string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range tableNamePattern.FindAllStringSubmatch(query, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Query runs a SQL statement over the spreadsheet's worksheets. Each
// worksheet referenced after FROM or JOIN is read (through the same cache
// and TTL path as Read), loaded into an in-memory SQLite database under its
// title, and the statement is executed against it. Quote titles containing
// spaces: SELECT * FROM "Example 1" LIMIT 10.
//
// In service-account mode table names select worksheets by title. In public
// mode the export endpoint cannot address tabs by title, so every
// referenced name is served from the configured worksheet.
func (c *Connection) Query(ctx context.Context, query string, opts ...Option) (*Table, error) {
	names := referencedTables(query)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: query references no worksheet", ErrBadData)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: opening query engine: %v", ErrBadData, err)
	}
	defer db.Close()

	public := c.ReadOnly()
	for _, name := range names {
		readOpts := opts
		if !public {
			readOpts = append(append([]Option{}, opts...), WithWorksheet(name))
		}
		t, err := c.Read(ctx, readOpts...)
		if err != nil {
			return nil, err
		}
		if err := loadTable(ctx, db, name, t); err != nil {
			return nil, err
		}
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadData, err)
	}
	defer rows.Close()

	return scanTable(rows)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// loadTable materialises a Table as a SQLite table named after the
// worksheet, with REAL columns for numeric data and TEXT otherwise.
func loadTable(ctx context.Context, db *sql.DB, name string, t *Table) error {
	if t.NumCols() == 0 {
		return fmt.Errorf("%w: worksheet %q is empty", ErrBadData, name)
	}

	cols := make([]string, t.NumCols())
	placeholders := make([]string, t.NumCols())
	for i, col := range t.Columns {
		sqlType := "TEXT"
		if t.Types[i] == TypeNumber {
			sqlType = "REAL"
		}
		cols[i] = quoteIdent(col) + " " + sqlType
		placeholders[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("%w: %v", ErrBadData, err)
	}

	if t.NumRows() == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadData, err)
	}
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %v", ErrBadData, err)
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: %v", ErrBadData, err)
		}
	}
	return tx.Commit()
}

// scanTable converts a SQL result set back into a Table. SQLite is
// dynamically typed, so column types are inferred from the values: a column
// whose every non-NULL cell is numeric becomes TypeNumber, everything else
// TypeString.
func scanTable(rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadData, err)
	}

	var data [][]any
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadData, err)
		}
		for i, cell := range cells {
			cells[i] = normalizeSQLValue(cell)
		}
		data = append(data, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadData, err)
	}

	types := make([]ColumnType, len(cols))
	for i := range cols {
		types[i] = resultColumnType(data, i)
	}
	// Uniform column representation: stringify numbers sitting in columns
	// that came back mixed.
	for _, row := range data {
		for i, cell := range row {
			if types[i] == TypeString {
				if f, ok := cell.(float64); ok {
					row[i] = cast.ToString(f)
				}
			}
		}
	}

	return &Table{Columns: cols, Types: types, Rows: data}, nil
}

func normalizeSQLValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case int64:
		return float64(val)
	case float64:
		return val
	case []byte:
		return string(val)
	case string:
		return val
	case bool:
		if val {
			return float64(1)
		}
		return float64(0)
	default:
		return cast.ToString(val)
	}
}

func resultColumnType(data [][]any, col int) ColumnType {
	sawNumber := false
	for _, row := range data {
		switch row[col].(type) {
		case nil:
		case float64:
			sawNumber = true
		default:
			return TypeString
		}
	}
	if sawNumber {
		return TypeNumber
	}
	return TypeString
}
