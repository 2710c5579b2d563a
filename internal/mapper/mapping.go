// Package mapper decides which data column, if any, each recorded action feeds.
package mapper

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy selects how a mapping is built.
type Strategy string

const (
	// StrategyPositional maps action i to column i.
	StrategyPositional Strategy = "positional"
	// StrategyPlaceholder discovers the mapping from placeholder tokens on the first row.
	StrategyPlaceholder Strategy = "placeholder"
	// StrategySlots maps actions through saved field slots.
	StrategySlots Strategy = "slots"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPositional, StrategyPlaceholder, StrategySlots:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown mapping strategy %q", s)
}

// Mapping assigns data columns to action indices. Unmapped actions are
// clicked during replay but never receive a value.
type Mapping struct {
	columns map[int]int
}

// NewMapping returns an empty mapping.
func NewMapping() Mapping {
	return Mapping{columns: make(map[int]int)}
}

// Positional maps each of the n actions to the column with the same index.
func Positional(n int) Mapping {
	m := NewMapping()
	for i := 0; i < n; i++ {
		m.columns[i] = i
	}
	return m
}

// Set maps action i to column col.
func (m *Mapping) Set(i, col int) {
	if m.columns == nil {
		m.columns = make(map[int]int)
	}
	m.columns[i] = col
}

// Lookup returns the column for action i.
func (m Mapping) Lookup(i int) (int, bool) {
	col, ok := m.columns[i]
	return col, ok
}

// Len is the number of mapped actions.
func (m Mapping) Len() int { return len(m.columns) }

// Indices returns the mapped action indices in ascending order.
func (m Mapping) Indices() []int {
	out := make([]int, 0, len(m.columns))
	for i := range m.columns {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Equal reports whether both mappings make the same assignments.
func (m Mapping) Equal(o Mapping) bool {
	if len(m.columns) != len(o.columns) {
		return false
	}
	for i, col := range m.columns {
		if other, ok := o.columns[i]; !ok || other != col {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (m Mapping) Clone() Mapping {
	c := NewMapping()
	for i, col := range m.columns {
		c.columns[i] = col
	}
	return c
}

func (m Mapping) String() string {
	parts := make([]string, 0, len(m.columns))
	for _, i := range m.Indices() {
		parts = append(parts, fmt.Sprintf("%d→%d", i, m.columns[i]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
