// Package constraint holds the constraint system of a circuit: its column
// counts, gates, lookup, shuffle and permutation arguments, in two forms.
// SystemMid is the frontend output, with expressions over raw column
// references; Compile runs the query collector over it and produces a
// System whose expressions address dense per-kind query tables.
package constraint

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/plonkish/plonk"
	"github.com/consensys/plonkish/plonk/lookup"
	"github.com/consensys/plonkish/plonk/permutation"
	"github.com/consensys/plonkish/plonk/shuffle"
)

// VirtualCell is a (column, rotation) pair: one entry of a query table.
type VirtualCell struct {
	Column   plonk.Column
	Rotation plonk.Rotation
}

func (v VirtualCell) String() string {
	return fmt.Sprintf("%s@%d", v.Column, v.Rotation)
}

// SystemMid is the constraint system as emitted by a circuit frontend,
// before query indexing. It is plain data: the frontend fills the fields,
// Compile consumes them.
type SystemMid struct {
	NbFixedColumns    int
	NbAdviceColumns   int
	NbInstanceColumns int
	NbChallenges      int

	// AdvicePhases holds one phase per advice column; ChallengePhases one
	// per challenge.
	AdvicePhases    []plonk.Phase
	ChallengePhases []plonk.Phase

	// UnblindedAdvice lists advice columns the frontend promises not to
	// blind, so their assignments stay deterministic across proofs.
	UnblindedAdvice []int

	Gates       []GateMid
	Permutation *permutation.Argument
	Lookups     []lookup.ArgumentMid
	Shuffles    []shuffle.ArgumentMid

	// Annotations carries human-readable column names for debugging; it
	// never reaches the serialized form.
	Annotations map[plonk.Column]string

	// MinimumDegree pins a floor on the circuit degree; zero means no
	// floor.
	MinimumDegree int
}

// NewSystemMid returns an empty constraint system ready to be filled by a
// frontend.
func NewSystemMid() *SystemMid {
	return &SystemMid{
		Permutation: permutation.NewArgument(),
		Annotations: make(map[plonk.Column]string),
	}
}

// AnnotateColumn attaches a debug name to a column.
func (m *SystemMid) AnnotateColumn(column plonk.Column, name string) {
	if m.Annotations == nil {
		m.Annotations = make(map[plonk.Column]string)
	}
	m.Annotations[column] = name
}

// queryCollector deduplicates column queries into dense per-kind tables,
// assigning indices in first-seen order.
type queryCollector struct {
	advice   map[VirtualCell]int
	instance map[VirtualCell]int
	fixed    map[VirtualCell]int

	adviceQueries   []VirtualCell
	instanceQueries []VirtualCell
	fixedQueries    []VirtualCell

	// queries per advice column, for the blinding-factor count
	numAdviceQueries []int
}

func newQueryCollector(nbAdviceColumns int) *queryCollector {
	return &queryCollector{
		advice:           make(map[VirtualCell]int),
		instance:         make(map[VirtualCell]int),
		fixed:            make(map[VirtualCell]int),
		numAdviceQueries: make([]int, nbAdviceColumns),
	}
}

func (qc *queryCollector) addFixed(columnIndex int, at plonk.Rotation) int {
	cell := VirtualCell{Column: plonk.NewColumn(columnIndex, plonk.AnyFixed()), Rotation: at}
	if idx, ok := qc.fixed[cell]; ok {
		return idx
	}
	idx := len(qc.fixedQueries)
	qc.fixed[cell] = idx
	qc.fixedQueries = append(qc.fixedQueries, cell)
	return idx
}

func (qc *queryCollector) addAdvice(columnIndex int, at plonk.Rotation, phase plonk.Phase) int {
	cell := VirtualCell{Column: plonk.NewColumn(columnIndex, plonk.AnyAdviceInPhase(phase)), Rotation: at}
	if idx, ok := qc.advice[cell]; ok {
		return idx
	}
	idx := len(qc.adviceQueries)
	qc.advice[cell] = idx
	qc.adviceQueries = append(qc.adviceQueries, cell)
	qc.numAdviceQueries[columnIndex]++
	return idx
}

func (qc *queryCollector) addInstance(columnIndex int, at plonk.Rotation) int {
	cell := VirtualCell{Column: plonk.NewColumn(columnIndex, plonk.AnyInstance()), Rotation: at}
	if idx, ok := qc.instance[cell]; ok {
		return idx
	}
	idx := len(qc.instanceQueries)
	qc.instance[cell] = idx
	qc.instanceQueries = append(qc.instanceQueries, cell)
	return idx
}

// index rewrites a mid-level expression into its indexed form, registering
// every query leaf it encounters.
func (qc *queryCollector) index(e plonk.ExpressionMid) plonk.Expression {
	switch n := e.(type) {
	case *plonk.Constant:
		return n
	case *plonk.FixedQueryMid:
		return &plonk.FixedQuery{
			QueryIndex:  qc.addFixed(n.ColumnIndex, n.Rotation),
			ColumnIndex: n.ColumnIndex,
			Rotation:    n.Rotation,
		}
	case *plonk.AdviceQueryMid:
		return &plonk.AdviceQuery{
			QueryIndex:  qc.addAdvice(n.ColumnIndex, n.Rotation, n.Phase),
			ColumnIndex: n.ColumnIndex,
			Rotation:    n.Rotation,
			Phase:       n.Phase,
		}
	case *plonk.InstanceQueryMid:
		return &plonk.InstanceQuery{
			QueryIndex:  qc.addInstance(n.ColumnIndex, n.Rotation),
			ColumnIndex: n.ColumnIndex,
			Rotation:    n.Rotation,
		}
	case *plonk.Challenge:
		return n
	case *plonk.NegatedMid:
		return plonk.Neg(qc.index(n.Elem))
	case *plonk.SumMid:
		return plonk.Add(qc.index(n.A), qc.index(n.B))
	case *plonk.ProductMid:
		return plonk.Mul(qc.index(n.A), qc.index(n.B))
	case *plonk.ScaledMid:
		return plonk.Scale(qc.index(n.Elem), n.Coeff)
	default:
		panic(fmt.Sprintf("unknown expression node %T", e))
	}
}

// System is the compiled constraint system: every expression leaf carries a
// dense index into one of the three query tables, and the derived
// quantities the prover and verifier agree on (degree, blinding factors,
// minimum table size) are computed here and nowhere else.
type System struct {
	nbFixedColumns    int
	nbAdviceColumns   int
	nbInstanceColumns int
	nbChallenges      int

	advicePhases    []plonk.Phase
	challengePhases []plonk.Phase
	unblindedAdvice []int

	gates []Gate

	adviceQueries    []VirtualCell
	instanceQueries  []VirtualCell
	fixedQueries     []VirtualCell
	numAdviceQueries []int

	adviceQueryIndex   map[VirtualCell]int
	instanceQueryIndex map[VirtualCell]int
	fixedQueryIndex    map[VirtualCell]int

	permutation *permutation.Argument
	lookups     []lookup.Argument
	shuffles    []shuffle.Argument

	annotations   map[plonk.Column]string
	minimumDegree int
}

// Compile runs the query collector over the system and returns its indexed
// form. Queries are collected in a fixed order: gate polynomials first,
// then lookup inputs and tables, then shuffle inputs and shuffles, then one
// current-row query per permutation column. The order is consensus-critical
// as it determines the query table layouts.
func (m *SystemMid) Compile() *System {
	qc := newQueryCollector(m.NbAdviceColumns)

	gates := make([]Gate, len(m.Gates))
	for i, g := range m.Gates {
		gates[i] = Gate{
			name:            g.Name,
			constraintNames: []string{""},
			polys:           []plonk.Expression{qc.index(g.Poly)},
		}
	}

	lookups := make([]lookup.Argument, len(m.Lookups))
	for i, l := range m.Lookups {
		lookups[i] = lookup.Argument{
			Name:             l.Name,
			InputExpressions: indexAll(qc, l.InputExpressions),
			TableExpressions: indexAll(qc, l.TableExpressions),
		}
	}

	shuffles := make([]shuffle.Argument, len(m.Shuffles))
	for i, s := range m.Shuffles {
		shuffles[i] = shuffle.Argument{
			Name:               s.Name,
			InputExpressions:   indexAll(qc, s.InputExpressions),
			ShuffleExpressions: indexAll(qc, s.ShuffleExpressions),
		}
	}

	perm := m.Permutation
	if perm == nil {
		perm = permutation.NewArgument()
	}
	for _, c := range perm.Columns() {
		qc.index(c.Cur())
	}

	return &System{
		nbFixedColumns:     m.NbFixedColumns,
		nbAdviceColumns:    m.NbAdviceColumns,
		nbInstanceColumns:  m.NbInstanceColumns,
		nbChallenges:       m.NbChallenges,
		advicePhases:       m.AdvicePhases,
		challengePhases:    m.ChallengePhases,
		unblindedAdvice:    m.UnblindedAdvice,
		gates:              gates,
		adviceQueries:      qc.adviceQueries,
		instanceQueries:    qc.instanceQueries,
		fixedQueries:       qc.fixedQueries,
		numAdviceQueries:   qc.numAdviceQueries,
		adviceQueryIndex:   qc.advice,
		instanceQueryIndex: qc.instance,
		fixedQueryIndex:    qc.fixed,
		permutation:        perm,
		lookups:            lookups,
		shuffles:           shuffles,
		annotations:        m.Annotations,
		minimumDegree:      m.MinimumDegree,
	}
}

func indexAll(qc *queryCollector, exprs []plonk.ExpressionMid) []plonk.Expression {
	out := make([]plonk.Expression, len(exprs))
	for i, e := range exprs {
		out[i] = qc.index(e)
	}
	return out
}

// NbFixedColumns returns the number of fixed columns.
func (cs *System) NbFixedColumns() int { return cs.nbFixedColumns }

// NbAdviceColumns returns the number of advice columns.
func (cs *System) NbAdviceColumns() int { return cs.nbAdviceColumns }

// NbInstanceColumns returns the number of instance columns.
func (cs *System) NbInstanceColumns() int { return cs.nbInstanceColumns }

// NbChallenges returns the number of challenges.
func (cs *System) NbChallenges() int { return cs.nbChallenges }

// AdvicePhases returns the phase of each advice column.
func (cs *System) AdvicePhases() []plonk.Phase { return cs.advicePhases }

// ChallengePhases returns the phase of each challenge.
func (cs *System) ChallengePhases() []plonk.Phase { return cs.challengePhases }

// UnblindedAdvice returns the indices of advice columns the frontend
// declared unblinded.
func (cs *System) UnblindedAdvice() []int { return cs.unblindedAdvice }

// Gates returns the compiled gates.
func (cs *System) Gates() []Gate { return cs.gates }

// FixedQueries returns the fixed query table, in collection order.
func (cs *System) FixedQueries() []VirtualCell { return cs.fixedQueries }

// AdviceQueries returns the advice query table, in collection order.
func (cs *System) AdviceQueries() []VirtualCell { return cs.adviceQueries }

// InstanceQueries returns the instance query table, in collection order.
func (cs *System) InstanceQueries() []VirtualCell { return cs.instanceQueries }

// NumAdviceQueries returns the number of distinct queries per advice
// column.
func (cs *System) NumAdviceQueries() []int { return cs.numAdviceQueries }

// Permutation returns the permutation argument.
func (cs *System) Permutation() *permutation.Argument { return cs.permutation }

// Lookups returns the compiled lookup arguments.
func (cs *System) Lookups() []lookup.Argument { return cs.lookups }

// Shuffles returns the compiled shuffle arguments.
func (cs *System) Shuffles() []shuffle.Argument { return cs.shuffles }

// Annotation returns the debug name of a column, if any.
func (cs *System) Annotation(column plonk.Column) (string, bool) {
	name, ok := cs.annotations[column]
	return name, ok
}

// FixedQueryIndex returns the dense index of the given fixed query. It
// panics if the query was not collected: the compiled system queries every
// cell its expressions reference, so a miss is a programming error.
func (cs *System) FixedQueryIndex(column plonk.FixedColumn, at plonk.Rotation) int {
	cell := VirtualCell{Column: column.Column(), Rotation: at}
	idx, ok := cs.fixedQueryIndex[cell]
	if !ok {
		panic(fmt.Sprintf("no fixed query for %s", cell))
	}
	return idx
}

// AdviceQueryIndex returns the dense index of the given advice query,
// panicking if the query was not collected.
func (cs *System) AdviceQueryIndex(column plonk.AdviceColumn, at plonk.Rotation) int {
	cell := VirtualCell{Column: column.Column(), Rotation: at}
	idx, ok := cs.adviceQueryIndex[cell]
	if !ok {
		panic(fmt.Sprintf("no advice query for %s", cell))
	}
	return idx
}

// InstanceQueryIndex returns the dense index of the given instance query,
// panicking if the query was not collected.
func (cs *System) InstanceQueryIndex(column plonk.InstanceColumn, at plonk.Rotation) int {
	cell := VirtualCell{Column: column.Column(), Rotation: at}
	idx, ok := cs.instanceQueryIndex[cell]
	if !ok {
		panic(fmt.Sprintf("no instance query for %s", cell))
	}
	return idx
}

// AnyQueryIndex returns the dense index of the given query within the
// query table of the column's kind, panicking if the query was not
// collected.
func (cs *System) AnyQueryIndex(column plonk.Column, at plonk.Rotation) int {
	cell := VirtualCell{Column: column, Rotation: at}
	var (
		idx int
		ok  bool
	)
	switch {
	case column.Kind().IsFixed():
		idx, ok = cs.fixedQueryIndex[cell]
	case column.Kind().IsAdvice():
		idx, ok = cs.adviceQueryIndex[cell]
	default:
		idx, ok = cs.instanceQueryIndex[cell]
	}
	if !ok {
		panic(fmt.Sprintf("no query for %s", cell))
	}
	return idx
}

// MinimumDegree returns the declared degree floor, or zero if none.
func (cs *System) MinimumDegree() int { return cs.minimumDegree }

// Degree returns the circuit degree: the maximum degree demanded by any
// gate or argument, at least the declared floor, and at least 1.
func (cs *System) Degree() int {
	degree := cs.permutation.RequiredDegree()
	for i := range cs.lookups {
		degree = max(degree, cs.lookups[i].RequiredDegree())
	}
	for i := range cs.shuffles {
		degree = max(degree, cs.shuffles[i].RequiredDegree())
	}
	for i := range cs.gates {
		for _, p := range cs.gates[i].polys {
			degree = max(degree, p.Degree())
		}
	}
	return max(degree, cs.minimumDegree, 1)
}

// BlindingFactors returns the number of table rows consumed by blinding.
// Every distinct query of an advice column exposes one evaluation of its
// polynomial, each of which must be masked by an independent blinding row;
// on top of those, one row absorbs the random polynomial of the vanishing
// argument and one row is reserved for l_last.
func (cs *System) BlindingFactors() int {
	factors := 0
	for _, n := range cs.numAdviceQueries {
		factors = max(factors, n)
	}
	// never fewer than the permutation argument needs
	factors = max(factors, 3)
	factors++
	return factors + 1
}

// MinimumRows returns the smallest table size that leaves at least one
// usable row after blinding: the blinding rows, plus one row for l_last's
// pole, plus two so the usable region is non-degenerate.
func (cs *System) MinimumRows() int {
	return cs.BlindingFactors() + 3
}

// PermutationChunkSize returns the number of permutation columns checked
// per grand-product polynomial: the circuit degree less the two factors
// consumed by the active-row gate and by z itself.
func (cs *System) PermutationChunkSize() int {
	return cs.Degree() - 2
}

// DomainSizes returns the cardinality of the base evaluation domain for a
// table of at least nbRows rows, and of the extended domain on which
// degree-Degree() identities evaluate without aliasing. Both are powers of
// two; the base size also accommodates the blinding rows.
func (cs *System) DomainSizes(nbRows int) (uint64, uint64) {
	n := ecc.NextPowerOfTwo(uint64(max(nbRows, cs.MinimumRows())))
	extended := ecc.NextPowerOfTwo(n * uint64(cs.Degree()-1))
	return n, extended
}

// Phases returns every phase the circuit uses, first phase onward, in
// order.
func (cs *System) Phases() []plonk.Phase {
	last := plonk.FirstPhase()
	for _, p := range cs.advicePhases {
		if p.Cmp(last) > 0 {
			last = p
		}
	}
	for _, p := range cs.challengePhases {
		if p.Cmp(last) > 0 {
			last = p
		}
	}
	all := []plonk.Phase{plonk.FirstPhase(), plonk.SecondPhase(), plonk.ThirdPhase()}
	var out []plonk.Phase
	for _, p := range all {
		if p.Cmp(last) <= 0 {
			out = append(out, p)
		}
	}
	return out
}
