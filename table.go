package gsheets

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cast"
)

// ColumnType describes the decoded type of a table column.
type ColumnType int

const (
	// TypeString columns hold string cells.
	TypeString ColumnType = iota
	// TypeNumber columns hold float64 cells.
	TypeNumber
)

// String returns a human-readable type name.
func (t ColumnType) String() string {
	if t == TypeNumber {
		return "number"
	}
	return "string"
}

// Table is a rows-by-typed-columns view of a worksheet. Cells are string,
// float64, or nil for missing values, according to the column type. Every
// row has exactly len(Columns) cells.
//
// Tables are plain values with no reference back to the connection that
// produced them.
type Table struct {
	Columns []string
	Types   []ColumnType
	Rows    [][]any
}

// NumRows returns the number of data rows (excluding the header).
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// validate checks the Table invariants before encoding: at least one
// column, unique column names, rectangular rows.
func (t *Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table has no columns", ErrBadData)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, name := range t.Columns {
		if seen[name] {
			return fmt.Errorf("%w: duplicate column %q", ErrBadData, name)
		}
		seen[name] = true
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrBadData, i, len(row), len(t.Columns))
		}
	}
	return nil
}

type decodeOptions struct {
	header  bool
	usecols []int
}

// decodeGrid converts a raw cell grid into a Table. The first row becomes
// the column names when header is set. Rows shorter than the widest row are
// padded with empty cells; empty cells decode to nil. usecols keeps only
// the named zero-based column indices, in grid order regardless of the
// order they were requested in.
//
// A column becomes numeric only when every non-empty cell in it parses as a
// number; otherwise the whole column stays string-typed. Mixed columns are
// never split.
func decodeGrid(grid [][]string, opts decodeOptions) (*Table, error) {
	grid = trimTrailingBlank(grid)
	if len(grid) == 0 {
		return &Table{}, nil
	}

	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}

	keep, err := keptColumns(opts.usecols, width)
	if err != nil {
		return nil, err
	}

	var names []string
	var dataRows [][]string
	if opts.header {
		names = columnNames(grid[0], keep)
		dataRows = grid[1:]
	} else {
		names = make([]string, len(keep))
		for i, col := range keep {
			names[i] = strconv.Itoa(col)
		}
		dataRows = grid
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrBadData, name)
		}
		seen[name] = true
	}

	// Project the kept columns, padding short rows.
	cells := make([][]string, len(dataRows))
	for i, row := range dataRows {
		projected := make([]string, len(keep))
		for j, col := range keep {
			if col < len(row) {
				projected[j] = row[col]
			}
		}
		cells[i] = projected
	}

	types := make([]ColumnType, len(keep))
	for j := range keep {
		types[j] = inferColumnType(cells, j)
	}

	rows := make([][]any, len(cells))
	for i, row := range cells {
		typed := make([]any, len(row))
		for j, cell := range row {
			typed[j] = typeCell(cell, types[j])
		}
		rows[i] = typed
	}

	return &Table{Columns: names, Types: types, Rows: rows}, nil
}

// keptColumns normalises a usecols set: deduplicated, grid order, bounds
// checked. nil keeps every column.
func keptColumns(usecols []int, width int) ([]int, error) {
	if usecols == nil {
		keep := make([]int, width)
		for i := range keep {
			keep[i] = i
		}
		return keep, nil
	}

	seen := make(map[int]bool, len(usecols))
	keep := make([]int, 0, len(usecols))
	for _, col := range usecols {
		if col < 0 || col >= width {
			return nil, fmt.Errorf("%w: column index %d out of range (grid has %d columns)", ErrBadData, col, width)
		}
		if !seen[col] {
			seen[col] = true
			keep = append(keep, col)
		}
	}
	sort.Ints(keep)
	return keep, nil
}

func columnNames(headerRow []string, keep []int) []string {
	names := make([]string, len(keep))
	for i, col := range keep {
		var name string
		if col < len(headerRow) {
			name = headerRow[col]
		}
		if name == "" {
			name = fmt.Sprintf("col_%d", col)
		}
		names[i] = name
	}
	return names
}

func inferColumnType(cells [][]string, col int) ColumnType {
	nonEmpty := false
	for _, row := range cells {
		cell := row[col]
		if cell == "" {
			continue
		}
		nonEmpty = true
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return TypeString
		}
	}
	if !nonEmpty {
		return TypeString
	}
	return TypeNumber
}

func typeCell(cell string, t ColumnType) any {
	if cell == "" {
		return nil
	}
	if t == TypeNumber {
		f, err := strconv.ParseFloat(cell, 64)
		if err == nil {
			return f
		}
	}
	return cell
}

func trimTrailingBlank(grid [][]string) [][]string {
	end := len(grid)
	for end > 0 && blankRow(grid[end-1]) {
		end--
	}
	return grid[:end]
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

// encodeUpdate produces the value grid for a bulk range update: the header
// row rebuilt from Columns followed by the data rows. The grid spans exactly
// the table's own rectangle; it never pads out to a previous, larger write,
// so callers replacing a longer worksheet should Clear first.
func encodeUpdate(t *Table) ([][]any, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	grid := make([][]any, 0, len(t.Rows)+1)
	header := make([]any, len(t.Columns))
	for i, name := range t.Columns {
		header[i] = name
	}
	grid = append(grid, header)

	rows, err := encodeAppend(t)
	if err != nil {
		return nil, err
	}
	return append(grid, rows...), nil
}

// encodeAppend produces the data rows without the header, for values.append.
func encodeAppend(t *Table) ([][]any, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		out := make([]any, len(row))
		for j, cell := range row {
			out[j] = encodeCell(cell)
		}
		rows[i] = out
	}
	return rows, nil
}

// encodeCell maps a typed cell to a sheets value. nil (NA) becomes the
// empty string; numbers pass through so RAW input keeps them numeric.
func encodeCell(cell any) any {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return v
	default:
		return cast.ToString(v)
	}
}
