package replay

import (
	"fmt"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

// RunMode decides which rows a run visits.
type RunMode interface {
	Kind() schemas.RunModeKind
	// first returns the starting row for a source of n rows.
	first(n int) (int, error)
	// next returns the row after i, whether the pass wrapped, and false when the run is over.
	next(i, n int) (next int, wrapped bool, ok bool)
}

// Bounded visits Count rows from Start once. A zero Count runs to the last row.
type Bounded struct {
	Start int
	Count int
}

func (Bounded) Kind() schemas.RunModeKind { return schemas.ModeBounded }

func (b Bounded) first(n int) (int, error) {
	if err := checkStart(b.Start, n); err != nil {
		return 0, err
	}
	if b.Count < 0 {
		return 0, fmt.Errorf("row count must not be negative, got %d", b.Count)
	}
	return b.Start, nil
}

func (b Bounded) next(i, n int) (int, bool, bool) {
	end := n
	if b.Count > 0 && b.Start+b.Count < n {
		end = b.Start + b.Count
	}
	if i+1 >= end {
		return 0, false, false
	}
	return i + 1, false, true
}

// Continuous visits rows from Start to the end, then wraps to row 0 forever.
type Continuous struct {
	Start int
}

func (Continuous) Kind() schemas.RunModeKind { return schemas.ModeContinuous }

func (c Continuous) first(n int) (int, error) {
	return c.Start, checkStart(c.Start, n)
}

func (Continuous) next(i, n int) (int, bool, bool) {
	if i+1 >= n {
		return 0, true, true
	}
	return i + 1, false, true
}

func checkStart(start, n int) error {
	if n == 0 {
		return fmt.Errorf("data source has no rows")
	}
	if start < 0 || start >= n {
		return fmt.Errorf("start row %d out of range [0, %d)", start, n)
	}
	return nil
}

// ModeFor builds the run mode named by kind.
func ModeFor(kind string, start int) (RunMode, error) {
	switch schemas.RunModeKind(kind) {
	case schemas.ModeBounded, "":
		return Bounded{Start: start}, nil
	case schemas.ModeContinuous:
		return Continuous{Start: start}, nil
	}
	return nil, fmt.Errorf("unknown run mode %q", kind)
}
