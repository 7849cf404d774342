package plonk

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ExpressionMid is a polynomial identity over raw column queries, as emitted
// by the circuit frontend before query indexing. It is isomorphic to
// Expression except that query leaves carry only (column index, rotation
// [, phase]); the dense query index is assigned by the query collector when
// the system is compiled.
//
// Like Expression, mid-level expressions are immutable values.
type ExpressionMid interface {
	// Degree of the expression as a polynomial in the column queries.
	Degree() int

	isExpressionMid()
}

// FixedQueryMid is a query of a fixed column at a relative row offset.
type FixedQueryMid struct {
	ColumnIndex int
	Rotation    Rotation
}

func (q *FixedQueryMid) Degree() int      { return 1 }
func (q *FixedQueryMid) isExpressionMid() {}

// AdviceQueryMid is a query of an advice column at a relative row offset.
type AdviceQueryMid struct {
	ColumnIndex int
	Rotation    Rotation
	Phase       Phase
}

func (q *AdviceQueryMid) Degree() int      { return 1 }
func (q *AdviceQueryMid) isExpressionMid() {}

// InstanceQueryMid is a query of an instance column at a relative row offset.
type InstanceQueryMid struct {
	ColumnIndex int
	Rotation    Rotation
}

func (q *InstanceQueryMid) Degree() int      { return 1 }
func (q *InstanceQueryMid) isExpressionMid() {}

// NegatedMid is the negation of a mid-level polynomial.
type NegatedMid struct {
	Elem ExpressionMid
}

func (n *NegatedMid) Degree() int      { return n.Elem.Degree() }
func (n *NegatedMid) isExpressionMid() {}

// SumMid is the sum of two mid-level polynomials.
type SumMid struct {
	A, B ExpressionMid
}

func (s *SumMid) Degree() int      { return max(s.A.Degree(), s.B.Degree()) }
func (s *SumMid) isExpressionMid() {}

// ProductMid is the product of two mid-level polynomials.
type ProductMid struct {
	A, B ExpressionMid
}

func (p *ProductMid) Degree() int      { return p.A.Degree() + p.B.Degree() }
func (p *ProductMid) isExpressionMid() {}

// ScaledMid is a mid-level polynomial multiplied by a scalar.
type ScaledMid struct {
	Elem  ExpressionMid
	Coeff fr.Element
}

func (s *ScaledMid) Degree() int      { return s.Elem.Degree() }
func (s *ScaledMid) isExpressionMid() {}

// NegMid negates a mid-level expression.
func NegMid(e ExpressionMid) ExpressionMid { return &NegatedMid{Elem: e} }

// AddMid sums two mid-level expressions.
func AddMid(a, b ExpressionMid) ExpressionMid { return &SumMid{A: a, B: b} }

// SubMid subtracts b from a, as the sum of a and the negation of b.
func SubMid(a, b ExpressionMid) ExpressionMid { return &SumMid{A: a, B: NegMid(b)} }

// MulMid multiplies two mid-level expressions.
func MulMid(a, b ExpressionMid) ExpressionMid { return &ProductMid{A: a, B: b} }

// ScaleMid multiplies a mid-level expression by a scalar.
func ScaleMid(e ExpressionMid, coeff fr.Element) ExpressionMid {
	return &ScaledMid{Elem: e, Coeff: coeff}
}

// SquareMid squares a mid-level expression.
func SquareMid(e ExpressionMid) ExpressionMid { return &ProductMid{A: e, B: e} }

// SumOfMid folds a sequence of mid-level expressions by repeated addition.
// The empty sequence folds to the additive identity.
func SumOfMid(exprs ...ExpressionMid) ExpressionMid {
	if len(exprs) == 0 {
		var zero fr.Element
		return &Constant{Value: zero}
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = AddMid(acc, e)
	}
	return acc
}

// ProductOfMid folds a sequence of mid-level expressions by repeated
// multiplication. The empty sequence folds to the multiplicative identity.
func ProductOfMid(exprs ...ExpressionMid) ExpressionMid {
	if len(exprs) == 0 {
		return &Constant{Value: fr.One()}
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = MulMid(acc, e)
	}
	return acc
}

// ToMid converts an indexed expression back to its mid-level form, dropping
// the dense query indices. The conversion is lossless for consensus
// purposes: the index is a rebuildable cache key, not semantic data.
func ToMid(e Expression) ExpressionMid {
	switch n := e.(type) {
	case *Constant:
		return n
	case *FixedQuery:
		return &FixedQueryMid{ColumnIndex: n.ColumnIndex, Rotation: n.Rotation}
	case *AdviceQuery:
		return &AdviceQueryMid{ColumnIndex: n.ColumnIndex, Rotation: n.Rotation, Phase: n.Phase}
	case *InstanceQuery:
		return &InstanceQueryMid{ColumnIndex: n.ColumnIndex, Rotation: n.Rotation}
	case *Challenge:
		return n
	case *Negated:
		return &NegatedMid{Elem: ToMid(n.Elem)}
	case *Sum:
		return &SumMid{A: ToMid(n.A), B: ToMid(n.B)}
	case *Product:
		return &ProductMid{A: ToMid(n.A), B: ToMid(n.B)}
	case *Scaled:
		return &ScaledMid{Elem: ToMid(n.Elem), Coeff: n.Coeff}
	default:
		panic(fmt.Sprintf("unknown expression node %T", e))
	}
}
