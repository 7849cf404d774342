// Package shuffle describes shuffle arguments: assertions that a tuple of
// input expressions is a permutation of the rows of a tuple of shuffle
// expressions. Only the argument description and its degree contribution
// live here.
package shuffle

import (
	"github.com/consensys/plonkish/plonk"
)

// ArgumentMid is a shuffle argument over mid-level expressions, as emitted
// by the frontend.
type ArgumentMid struct {
	Name               string
	InputExpressions   []plonk.ExpressionMid
	ShuffleExpressions []plonk.ExpressionMid
}

// RequiredDegree returns the minimum circuit degree required by this shuffle
// argument. The product constraint
//
//	(1 - (l_last + l_blind)) * (z(wX)(s(X)+gamma) - z(X)(a(X)+gamma))
//
// has degree 2 + max(input_degree, shuffle_degree).
func (a *ArgumentMid) RequiredDegree() int {
	inputDegree := 1
	for _, e := range a.InputExpressions {
		inputDegree = max(inputDegree, e.Degree())
	}
	shuffleDegree := 1
	for _, e := range a.ShuffleExpressions {
		shuffleDegree = max(shuffleDegree, e.Degree())
	}
	return max(2+inputDegree, 2+shuffleDegree)
}

// Argument is a shuffle argument over indexed expressions, produced by the
// query collector.
type Argument struct {
	Name               string
	InputExpressions   []plonk.Expression
	ShuffleExpressions []plonk.Expression
}

// RequiredDegree returns the minimum circuit degree required by this shuffle
// argument; see ArgumentMid.RequiredDegree.
func (a *Argument) RequiredDegree() int {
	inputDegree := 1
	for _, e := range a.InputExpressions {
		inputDegree = max(inputDegree, e.Degree())
	}
	shuffleDegree := 1
	for _, e := range a.ShuffleExpressions {
		shuffleDegree = max(shuffleDegree, e.Degree())
	}
	return max(2+inputDegree, 2+shuffleDegree)
}
