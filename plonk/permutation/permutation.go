// Package permutation implements the copy-constraint (equality) argument: a
// grand-product protocol proving that arbitrary cells across the table hold
// equal values, without revealing which cells correspond.
//
// The lifecycle is a one-way pipeline: an Argument declares the
// participating columns; an Assembly accumulates and validates the copy
// constraints recorded during circuit synthesis; key generation compiles
// the assembly into a ProvingKey (the permutation polynomials, in three
// cached representations) and a VerifyingKey (one commitment per column).
// The assembly is consumed by compilation and never read afterwards.
package permutation

import (
	"errors"
	"fmt"

	"github.com/consensys/plonkish/plonk"
)

// ErrColumnNotInPermutation is returned when a copy constraint names a
// column the argument was not configured with.
var ErrColumnNotInPermutation = errors.New("column is not in the permutation argument")

// ErrBoundsFailure is returned when a copy constraint names a row outside
// the declared table size.
var ErrBoundsFailure = errors.New("row index is out of bounds")

// Argument is the description of a permutation argument: the ordered set of
// columns participating in it. Order matters, as it determines the layout
// of the permutation polynomials; a column may be added at most once.
type Argument struct {
	columns []plonk.Column
}

// NewArgument builds a permutation argument over the given columns,
// dropping duplicates while preserving first-seen order.
func NewArgument(columns ...plonk.Column) *Argument {
	a := &Argument{}
	for _, c := range columns {
		a.AddColumn(c)
	}
	return a
}

// AddColumn adds a column to the argument. Adding a column twice is a
// no-op.
func (a *Argument) AddColumn(column plonk.Column) {
	if a.indexOf(column) >= 0 {
		return
	}
	a.columns = append(a.columns, column)
}

// Columns returns the columns participating in the argument, in insertion
// order.
func (a *Argument) Columns() []plonk.Column {
	return a.columns
}

// NbColumns returns the number of participating columns.
func (a *Argument) NbColumns() int { return len(a.columns) }

// RequiredDegree returns the minimum circuit degree required by the
// permutation argument, regardless of how many columns participate.
//
// The argument packs as many column checks as fit into one gate of this
// degree rather than raising the degree with the column count:
//
//	degree 2: l_0(X) * (1 - z(X)) = 0
//
//	(1 - (l_last(X) + l_blind(X))) * (
//	  z(wX) prod_i (p_i(X) + beta s_i(X) + gamma)
//	- z(X)  prod_i (p_i(X) + delta^i beta X + gamma))
//
// chained across chunks with l_0(X) * (z(X) - z'(w^last X)) = 0, and closed
// with the degree 3 boundary constraint
//
//	l_last(X) * (z(X)^2 - z(X)) = 0
//
// which allows the last value to be zero so the argument stays perfectly
// complete.
func (a *Argument) RequiredDegree() int {
	return 3
}

func (a *Argument) indexOf(column plonk.Column) int {
	for i, c := range a.columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Cell is a (column, row) position in the table.
type Cell struct {
	Column plonk.Column
	Row    int
}

// Copy is an unordered pair of cells asserted equal.
type Copy struct {
	Left, Right Cell
}

// Assembly records the copy constraints of one circuit instantiation during
// key generation. It is built once, consumed exactly once by BuildKeys, and
// never mutated after compilation. Copy constraints are validated on every
// insertion; compilation itself cannot fail on malformed input.
type Assembly struct {
	n       int
	columns []plonk.Column
	copies  []Copy
}

// NewAssembly builds an assembly for a table of n rows over the argument's
// columns.
func NewAssembly(n int, argument *Argument) *Assembly {
	return &Assembly{
		n:       n,
		columns: argument.Columns(),
	}
}

// Copy records the copy constraint (leftColumn, leftRow) ==
// (rightColumn, rightRow). Both columns must belong to the argument and
// both rows must be within the table, otherwise the constraint is rejected
// with enough context to locate the offending synthesis call.
func (a *Assembly) Copy(leftColumn plonk.Column, leftRow int, rightColumn plonk.Column, rightRow int) error {
	if a.columnIndex(leftColumn) < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotInPermutation, leftColumn)
	}
	if a.columnIndex(rightColumn) < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotInPermutation, rightColumn)
	}
	if leftRow < 0 || leftRow >= a.n {
		return fmt.Errorf("%w: row %d, table size %d", ErrBoundsFailure, leftRow, a.n)
	}
	if rightRow < 0 || rightRow >= a.n {
		return fmt.Errorf("%w: row %d, table size %d", ErrBoundsFailure, rightRow, a.n)
	}
	a.copies = append(a.copies, Copy{
		Left:  Cell{Column: leftColumn, Row: leftRow},
		Right: Cell{Column: rightColumn, Row: rightRow},
	})
	return nil
}

// Copies returns the copy constraints recorded so far.
func (a *Assembly) Copies() []Copy { return a.copies }

// NbRows returns the declared table size.
func (a *Assembly) NbRows() int { return a.n }

func (a *Assembly) columnIndex(column plonk.Column) int {
	for i, c := range a.columns {
		if c == column {
			return i
		}
	}
	return -1
}
