// Package lookup describes lookup arguments: assertions that a tuple of
// input expressions appears among the rows of a tuple of table expressions.
// Only the argument description and its degree contribution live here; the
// grand-product machinery is the backend's concern.
package lookup

import (
	"github.com/consensys/plonkish/plonk"
)

// ArgumentMid is a lookup argument over mid-level expressions, as emitted by
// the frontend.
type ArgumentMid struct {
	Name             string
	InputExpressions []plonk.ExpressionMid
	TableExpressions []plonk.ExpressionMid
}

// RequiredDegree returns the minimum circuit degree required by this lookup
// argument. The product constraint
//
//	(1 - (l_last + l_blind)) * (z(wX)(a'(X)+beta)(s'(X)+gamma) - z(X)(a(X)+beta)(s(X)+gamma))
//
// has degree 2 + input_degree + table_degree, and the boundary constraints
// keep the floor at 4.
func (a *ArgumentMid) RequiredDegree() int {
	inputDegree := 1
	for _, e := range a.InputExpressions {
		inputDegree = max(inputDegree, e.Degree())
	}
	tableDegree := 1
	for _, e := range a.TableExpressions {
		tableDegree = max(tableDegree, e.Degree())
	}
	return max(4, 2+inputDegree+tableDegree)
}

// Argument is a lookup argument over indexed expressions, produced by the
// query collector.
type Argument struct {
	Name             string
	InputExpressions []plonk.Expression
	TableExpressions []plonk.Expression
}

// RequiredDegree returns the minimum circuit degree required by this lookup
// argument; see ArgumentMid.RequiredDegree.
func (a *Argument) RequiredDegree() int {
	inputDegree := 1
	for _, e := range a.InputExpressions {
		inputDegree = max(inputDegree, e.Degree())
	}
	tableDegree := 1
	for _, e := range a.TableExpressions {
		tableDegree = max(tableDegree, e.Degree())
	}
	return max(4, 2+inputDegree+tableDegree)
}
