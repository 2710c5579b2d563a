// Package datasource supplies the ordered rows of string cells that a run
// fills into the form. Sources are read fully on open; rows are then served
// by index.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

// ErrOutOfRange is wrapped in a RowError when a row index does not exist.
var ErrOutOfRange = errors.New("row index out of range")

// Provider is an ordered, random-access source of data rows.
type Provider interface {
	// Len is the number of rows.
	Len() int
	// Width is the number of columns every row is padded to.
	Width() int
	// Row returns row i with trimmed cells. A failure is reported as *RowError.
	Row(ctx context.Context, i int) (schemas.DataRow, error)
}

// RowError reports a row that could not be read. The run skips such rows.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Open picks a provider by file extension.
func Open(path string) (Provider, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		p, err := OpenXLSX(path, "")
		if err != nil {
			return nil, err
		}
		return p, nil
	case ".csv", ".tsv", ".txt":
		p, err := OpenCSV(path)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported data source %q: expected .xlsx or .csv", path)
	}
}

// table holds rows already loaded into memory.
type table struct {
	rows  [][]string
	width int
}

func newTable(raw [][]string) table {
	t := table{rows: make([][]string, 0, len(raw))}
	for _, r := range raw {
		if len(r) > t.width {
			t.width = len(r)
		}
	}
	for _, r := range raw {
		cells := make([]string, t.width)
		for i, c := range r {
			cells[i] = strings.TrimSpace(c)
		}
		t.rows = append(t.rows, cells)
	}
	return t
}

func (t *table) Len() int   { return len(t.rows) }
func (t *table) Width() int { return t.width }

func (t *table) Row(ctx context.Context, i int) (schemas.DataRow, error) {
	if err := ctx.Err(); err != nil {
		return schemas.DataRow{}, err
	}
	if i < 0 || i >= len(t.rows) {
		return schemas.DataRow{}, &RowError{Index: i, Err: ErrOutOfRange}
	}
	cells := make([]string, len(t.rows[i]))
	copy(cells, t.rows[i])
	return schemas.DataRow{Index: i, Cells: cells, Width: t.width}, nil
}

// MemoryProvider serves rows held in memory.
type MemoryProvider struct {
	table
	mu       sync.Mutex
	failures map[int]error
	reads    map[int]int
}

// NewMemory builds a provider from literal rows. Rows are padded to the widest one.
func NewMemory(rows [][]string) *MemoryProvider {
	return &MemoryProvider{
		table:    newTable(rows),
		failures: make(map[int]error),
		reads:    make(map[int]int),
	}
}

// FailRow makes every read of row i fail with err.
func (m *MemoryProvider) FailRow(i int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[i] = err
}

// Reads reports how many times row i has been requested.
func (m *MemoryProvider) Reads(i int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[i]
}

func (m *MemoryProvider) Row(ctx context.Context, i int) (schemas.DataRow, error) {
	m.mu.Lock()
	m.reads[i]++
	err := m.failures[i]
	m.mu.Unlock()
	if err != nil {
		return schemas.DataRow{}, &RowError{Index: i, Err: err}
	}
	return m.table.Row(ctx, i)
}
