package plonk

import (
	"fmt"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Expression is a low-degree polynomial identity over indexed column
// queries, challenges and constants. It is the post-query-indexing form:
// every query leaf carries the dense index assigned by the query collector,
// so a backend can address the flat query tables directly.
//
// Expressions are immutable values; the arithmetic constructors build new
// nodes and never mutate operands, so sharing a sub-expression across two
// parents is safe and expected.
type Expression interface {
	// Degree of the expression as a polynomial in the column queries. This
	// bounds the evaluation-domain extension needed to represent the
	// identity without aliasing.
	Degree() int
	// Complexity approximates the computational cost of evaluating the
	// expression. It only influences evaluation order, never correctness.
	Complexity() int

	writeIdentifier(sb *strings.Builder)
	isExpression()
}

// Constant is a constant polynomial. It appears in both the mid-level and
// the indexed expression trees.
type Constant struct {
	Value fr.Element
}

// NewConstant builds a constant expression node.
func NewConstant(v fr.Element) *Constant { return &Constant{Value: v} }

func (c *Constant) Degree() int     { return 0 }
func (c *Constant) Complexity() int { return 0 }

func (c *Constant) writeIdentifier(sb *strings.Builder) {
	sb.WriteString(c.Value.String())
}

func (c *Constant) isExpression()    {}
func (c *Constant) isExpressionMid() {}

// FixedQuery is a query of a fixed column at a relative row offset, carrying
// the dense index into the fixed query table.
type FixedQuery struct {
	QueryIndex  int
	ColumnIndex int
	Rotation    Rotation
}

func (q *FixedQuery) Degree() int     { return 1 }
func (q *FixedQuery) Complexity() int { return 1 }

func (q *FixedQuery) writeIdentifier(sb *strings.Builder) {
	fmt.Fprintf(sb, "fixed[%d][%d]", q.ColumnIndex, q.Rotation)
}

func (q *FixedQuery) isExpression() {}

// AdviceQuery is a query of an advice column at a relative row offset,
// carrying the dense index into the advice query table.
type AdviceQuery struct {
	QueryIndex  int
	ColumnIndex int
	Rotation    Rotation
	Phase       Phase
}

func (q *AdviceQuery) Degree() int     { return 1 }
func (q *AdviceQuery) Complexity() int { return 1 }

func (q *AdviceQuery) writeIdentifier(sb *strings.Builder) {
	fmt.Fprintf(sb, "advice[%d][%d]", q.ColumnIndex, q.Rotation)
}

func (q *AdviceQuery) isExpression() {}

// InstanceQuery is a query of an instance column at a relative row offset,
// carrying the dense index into the instance query table.
type InstanceQuery struct {
	QueryIndex  int
	ColumnIndex int
	Rotation    Rotation
}

func (q *InstanceQuery) Degree() int     { return 1 }
func (q *InstanceQuery) Complexity() int { return 1 }

func (q *InstanceQuery) writeIdentifier(sb *strings.Builder) {
	fmt.Fprintf(sb, "instance[%d][%d]", q.ColumnIndex, q.Rotation)
}

func (q *InstanceQuery) isExpression() {}

// Challenge is a challenge squeezed from the transcript after the advice
// columns of its phase have been committed. It appears as a leaf in both
// expression trees.
type Challenge struct {
	Index int
	Phase Phase
}

func (c *Challenge) Degree() int     { return 0 }
func (c *Challenge) Complexity() int { return 0 }

func (c *Challenge) writeIdentifier(sb *strings.Builder) {
	fmt.Fprintf(sb, "challenge[%d]", c.Index)
}

func (c *Challenge) isExpression()    {}
func (c *Challenge) isExpressionMid() {}

// Expr returns the challenge as a mid-level expression leaf.
func (c *Challenge) Expr() ExpressionMid { return c }

// Negated is the negation of a polynomial.
type Negated struct {
	Elem Expression
}

func (n *Negated) Degree() int     { return n.Elem.Degree() }
func (n *Negated) Complexity() int { return n.Elem.Complexity() + 5 }

func (n *Negated) writeIdentifier(sb *strings.Builder) {
	sb.WriteString("(-")
	n.Elem.writeIdentifier(sb)
	sb.WriteByte(')')
}

func (n *Negated) isExpression() {}

// Sum is the sum of two polynomials.
type Sum struct {
	A, B Expression
}

func (s *Sum) Degree() int {
	return max(s.A.Degree(), s.B.Degree())
}

func (s *Sum) Complexity() int { return s.A.Complexity() + s.B.Complexity() + 15 }

func (s *Sum) writeIdentifier(sb *strings.Builder) {
	sb.WriteByte('(')
	s.A.writeIdentifier(sb)
	sb.WriteByte('+')
	s.B.writeIdentifier(sb)
	sb.WriteByte(')')
}

func (s *Sum) isExpression() {}

// Product is the product of two polynomials.
type Product struct {
	A, B Expression
}

func (p *Product) Degree() int     { return p.A.Degree() + p.B.Degree() }
func (p *Product) Complexity() int { return p.A.Complexity() + p.B.Complexity() + 30 }

func (p *Product) writeIdentifier(sb *strings.Builder) {
	sb.WriteByte('(')
	p.A.writeIdentifier(sb)
	sb.WriteByte('*')
	p.B.writeIdentifier(sb)
	sb.WriteByte(')')
}

func (p *Product) isExpression() {}

// Scaled is a polynomial multiplied by a scalar.
type Scaled struct {
	Elem  Expression
	Coeff fr.Element
}

func (s *Scaled) Degree() int     { return s.Elem.Degree() }
func (s *Scaled) Complexity() int { return s.Elem.Complexity() + 30 }

func (s *Scaled) writeIdentifier(sb *strings.Builder) {
	s.Elem.writeIdentifier(sb)
	sb.WriteByte('*')
	sb.WriteString(s.Coeff.String())
}

func (s *Scaled) isExpression() {}

// Identifier returns a canonical textual serialization of the expression,
// used to recognize repeated sub-expressions. Two expressions with the same
// identifier compute the same function of their inputs; the converse does
// not hold, as the identifier is sensitive to operand order (a+b and b+a
// differ).
func Identifier(e Expression) string {
	var sb strings.Builder
	e.writeIdentifier(&sb)
	return sb.String()
}

// Neg negates an expression.
func Neg(e Expression) Expression { return &Negated{Elem: e} }

// Add sums two expressions.
func Add(a, b Expression) Expression { return &Sum{A: a, B: b} }

// Sub subtracts b from a, as the sum of a and the negation of b.
func Sub(a, b Expression) Expression { return &Sum{A: a, B: Neg(b)} }

// Mul multiplies two expressions.
func Mul(a, b Expression) Expression { return &Product{A: a, B: b} }

// Scale multiplies an expression by a scalar.
func Scale(e Expression, coeff fr.Element) Expression {
	return &Scaled{Elem: e, Coeff: coeff}
}

// Square squares an expression. Both factors share the same node.
func Square(e Expression) Expression { return &Product{A: e, B: e} }

// SumOf folds a sequence of expressions by repeated addition. The empty
// sequence folds to the additive identity.
func SumOf(exprs ...Expression) Expression {
	if len(exprs) == 0 {
		var zero fr.Element
		return &Constant{Value: zero}
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = Add(acc, e)
	}
	return acc
}

// ProductOf folds a sequence of expressions by repeated multiplication. The
// empty sequence folds to the multiplicative identity.
func ProductOf(exprs ...Expression) Expression {
	if len(exprs) == 0 {
		return &Constant{Value: fr.One()}
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = Mul(acc, e)
	}
	return acc
}

// Evaluator supplies one combinator per expression variant for a structural
// fold over an indexed expression. Children are always reduced before their
// parent's combinator runs.
type Evaluator[T any] struct {
	Constant  func(fr.Element) T
	Fixed     func(*FixedQuery) T
	Advice    func(*AdviceQuery) T
	Instance  func(*InstanceQuery) T
	Challenge func(*Challenge) T
	Negated   func(T) T
	Sum       func(T, T) T
	Product   func(T, T) T
	Scaled    func(T, fr.Element) T
}

// Evaluate folds the expression post-order using the provided combinators.
// It is the single mechanism for interpreting an expression, whether over
// concrete field values or symbolically.
func Evaluate[T any](e Expression, ev *Evaluator[T]) T {
	switch n := e.(type) {
	case *Constant:
		return ev.Constant(n.Value)
	case *FixedQuery:
		return ev.Fixed(n)
	case *AdviceQuery:
		return ev.Advice(n)
	case *InstanceQuery:
		return ev.Instance(n)
	case *Challenge:
		return ev.Challenge(n)
	case *Negated:
		return ev.Negated(Evaluate(n.Elem, ev))
	case *Sum:
		return ev.Sum(Evaluate(n.A, ev), Evaluate(n.B, ev))
	case *Product:
		return ev.Product(Evaluate(n.A, ev), Evaluate(n.B, ev))
	case *Scaled:
		return ev.Scaled(Evaluate(n.Elem, ev), n.Coeff)
	default:
		panic(fmt.Sprintf("unknown expression node %T", e))
	}
}

// EvaluateLazy is Evaluate with a short-circuit on products: the cheaper
// operand (by Complexity) is evaluated first, and if its result equals the
// zero sentinel the expensive operand is skipped. This pays off in domains
// where zero is common, e.g. a disabled gate whose selector vanishes and
// whose other operand may be expensive or undefined off-support.
//
// The sentinel must be meaningful for the interpretation T: callers folding
// symbolically (where no natural zero exists) must supply a sentinel that
// never matches, or use Evaluate.
func EvaluateLazy[T comparable](e Expression, ev *Evaluator[T], zero T) T {
	switch n := e.(type) {
	case *Product:
		a, b := n.A, n.B
		if a.Complexity() > b.Complexity() {
			a, b = b, a
		}
		va := EvaluateLazy(a, ev, zero)
		if va == zero {
			return va
		}
		return ev.Product(va, EvaluateLazy(b, ev, zero))
	case *Negated:
		return ev.Negated(EvaluateLazy(n.Elem, ev, zero))
	case *Sum:
		return ev.Sum(EvaluateLazy(n.A, ev, zero), EvaluateLazy(n.B, ev, zero))
	case *Scaled:
		return ev.Scaled(EvaluateLazy(n.Elem, ev, zero), n.Coeff)
	default:
		return Evaluate(e, ev)
	}
}
