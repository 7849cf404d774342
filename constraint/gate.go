package constraint

import (
	"github.com/consensys/plonkish/plonk"
)

// Constraint is an individual named polynomial constraint, as produced by a
// circuit frontend.
type Constraint struct {
	Name string
	Poly plonk.ExpressionMid
}

// WithSelector returns the constraints with each polynomial multiplied by
// the selector at construction time. A disabled gate, whose selector
// evaluates to zero, degenerates every constraint to the identically-zero
// identity.
func WithSelector(selector plonk.ExpressionMid, constraints []Constraint) []Constraint {
	out := make([]Constraint, len(constraints))
	for i, c := range constraints {
		out[i] = Constraint{
			Name: c.Name,
			Poly: plonk.MulMid(selector, c.Poly),
		}
	}
	return out
}

// GateMid is a single named polynomial identity in the mid-level system.
// Frontends flatten a multi-constraint gate into one GateMid per
// sub-constraint, naming each one "gate:constraint".
type GateMid struct {
	Name string
	Poly plonk.ExpressionMid
}

// Gate is a named group of indexed polynomial constraints in the compiled
// constraint system.
type Gate struct {
	name            string
	constraintNames []string
	polys           []plonk.Expression
}

// Name returns the gate name.
func (g *Gate) Name() string { return g.name }

// ConstraintName returns the name of the constraint at the given index, or
// the empty string if unnamed.
func (g *Gate) ConstraintName(constraintIndex int) string {
	return g.constraintNames[constraintIndex]
}

// Polynomials returns the constraints of this gate.
func (g *Gate) Polynomials() []plonk.Expression { return g.polys }
