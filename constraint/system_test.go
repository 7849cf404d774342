package constraint

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/plonkish/plonk"
	"github.com/consensys/plonkish/plonk/lookup"
	"github.com/consensys/plonkish/plonk/shuffle"
	"github.com/stretchr/testify/require"
)

// testSystem builds a small multiplication circuit: one selector, two
// advice columns, one instance column, a range lookup on the first advice
// column, and equality enabled on both advice columns.
func testSystem() *SystemMid {
	selector := plonk.NewFixedColumn(0)
	table := plonk.NewFixedColumn(1)
	a0 := plonk.NewAdviceColumn(0, plonk.FirstPhase())
	a1 := plonk.NewAdviceColumn(1, plonk.FirstPhase())
	out := plonk.NewInstanceColumn(0)

	m := NewSystemMid()
	m.NbFixedColumns = 2
	m.NbAdviceColumns = 2
	m.NbInstanceColumns = 1
	m.AdvicePhases = []plonk.Phase{plonk.FirstPhase(), plonk.FirstPhase()}

	// s * (a0 * a1 - out)
	product := plonk.MulMid(a0.QueryCell(plonk.RotationCur()), a1.QueryCell(plonk.RotationCur()))
	m.Gates = append(m.Gates, GateMid{
		Name: "mul",
		Poly: plonk.MulMid(
			selector.QueryCell(plonk.RotationCur()),
			plonk.SubMid(product, out.QueryCell(plonk.RotationCur())),
		),
	})

	m.Lookups = append(m.Lookups, lookup.ArgumentMid{
		Name:             "range",
		InputExpressions: []plonk.ExpressionMid{a0.QueryCell(plonk.RotationNext())},
		TableExpressions: []plonk.ExpressionMid{table.QueryCell(plonk.RotationCur())},
	})

	m.Permutation.AddColumn(a0.Column())
	m.Permutation.AddColumn(a1.Column())
	return m
}

func TestCompileCollectsQueriesInOrder(t *testing.T) {
	assert := require.New(t)

	cs := testSystem().Compile()

	// gate queries first, then the lookup's, then the permutation's
	// current-row queries; the gate already queried both advice columns at
	// the current row, so the permutation adds nothing new
	assert.Equal([]VirtualCell{
		{Column: plonk.NewFixedColumn(0).Column(), Rotation: plonk.RotationCur()},
		{Column: plonk.NewFixedColumn(1).Column(), Rotation: plonk.RotationCur()},
	}, cs.FixedQueries())

	assert.Equal([]VirtualCell{
		{Column: plonk.NewAdviceColumn(0, plonk.FirstPhase()).Column(), Rotation: plonk.RotationCur()},
		{Column: plonk.NewAdviceColumn(1, plonk.FirstPhase()).Column(), Rotation: plonk.RotationCur()},
		{Column: plonk.NewAdviceColumn(0, plonk.FirstPhase()).Column(), Rotation: plonk.RotationNext()},
	}, cs.AdviceQueries())

	assert.Equal([]VirtualCell{
		{Column: plonk.NewInstanceColumn(0).Column(), Rotation: plonk.RotationCur()},
	}, cs.InstanceQueries())

	assert.Equal([]int{2, 1}, cs.NumAdviceQueries())
}

func TestCompileDeduplicatesQueries(t *testing.T) {
	assert := require.New(t)

	a0 := plonk.NewAdviceColumn(0, plonk.FirstPhase())
	m := NewSystemMid()
	m.NbAdviceColumns = 1
	m.AdvicePhases = []plonk.Phase{plonk.FirstPhase()}

	// the same query five times across two gates
	q := func() plonk.ExpressionMid { return a0.QueryCell(plonk.RotationCur()) }
	m.Gates = append(m.Gates,
		GateMid{Name: "g0", Poly: plonk.MulMid(q(), plonk.AddMid(q(), q()))},
		GateMid{Name: "g1", Poly: plonk.AddMid(q(), q())},
	)

	cs := m.Compile()
	assert.Len(cs.AdviceQueries(), 1)
	assert.Equal([]int{1}, cs.NumAdviceQueries())
}

func TestCompileIsDeterministic(t *testing.T) {
	assert := require.New(t)

	a := testSystem().Compile()
	b := testSystem().Compile()

	assert.Equal(a.FixedQueries(), b.FixedQueries())
	assert.Equal(a.AdviceQueries(), b.AdviceQueries())
	assert.Equal(a.InstanceQueries(), b.InstanceQueries())
	assert.Equal(a.Pinned().String(), b.Pinned().String())
}

func TestCompileAssignsDenseIndices(t *testing.T) {
	assert := require.New(t)

	cs := testSystem().Compile()

	poly := cs.Gates()[0].Polynomials()[0]
	// the gate polynomial is s * ((a0*a1) + (-out))
	outer := poly.(*plonk.Product)
	sel := outer.A.(*plonk.FixedQuery)
	assert.Equal(0, sel.QueryIndex)
	assert.Equal(0, sel.ColumnIndex)

	sum := outer.B.(*plonk.Sum)
	prod := sum.A.(*plonk.Product)
	assert.Equal(0, prod.A.(*plonk.AdviceQuery).QueryIndex)
	assert.Equal(1, prod.B.(*plonk.AdviceQuery).QueryIndex)

	neg := sum.B.(*plonk.Negated)
	assert.Equal(0, neg.Elem.(*plonk.InstanceQuery).QueryIndex)

	// degree survives indexing
	assert.Equal(3, poly.Degree())
}

func TestQueryIndexAccessors(t *testing.T) {
	assert := require.New(t)

	cs := testSystem().Compile()

	a0 := plonk.NewAdviceColumn(0, plonk.FirstPhase())
	assert.Equal(0, cs.AdviceQueryIndex(a0, plonk.RotationCur()))
	assert.Equal(2, cs.AdviceQueryIndex(a0, plonk.RotationNext()))
	assert.Equal(0, cs.FixedQueryIndex(plonk.NewFixedColumn(0), plonk.RotationCur()))
	assert.Equal(0, cs.InstanceQueryIndex(plonk.NewInstanceColumn(0), plonk.RotationCur()))

	assert.Equal(1, cs.AnyQueryIndex(plonk.NewFixedColumn(1).Column(), plonk.RotationCur()))

	assert.Panics(func() { cs.AdviceQueryIndex(a0, plonk.RotationPrev()) })
	assert.Panics(func() { cs.FixedQueryIndex(plonk.NewFixedColumn(7), plonk.RotationCur()) })
	assert.Panics(func() { cs.InstanceQueryIndex(plonk.NewInstanceColumn(1), plonk.RotationCur()) })
	assert.Panics(func() { cs.AnyQueryIndex(a0.Column(), plonk.RotationPrev()) })
}

func TestDegree(t *testing.T) {
	assert := require.New(t)

	// the lookup dominates: floor 4 vs gate degree 3 and permutation 3
	cs := testSystem().Compile()
	assert.Equal(4, cs.Degree())

	// an empty system still pays for the permutation argument
	assert.Equal(3, NewSystemMid().Compile().Degree())

	// a declared floor wins when larger
	m := testSystem()
	m.MinimumDegree = 9
	assert.Equal(9, m.Compile().Degree())
	assert.Equal(9, m.Compile().MinimumDegree())

	// a high-degree shuffle wins over everything else
	m = testSystem()
	a0 := plonk.NewAdviceColumn(0, plonk.FirstPhase())
	q := a0.QueryCell(plonk.RotationCur())
	quartic := plonk.MulMid(plonk.MulMid(q, q), plonk.MulMid(q, q))
	m.Shuffles = append(m.Shuffles, shuffle.ArgumentMid{
		Name:               "wide",
		InputExpressions:   []plonk.ExpressionMid{quartic},
		ShuffleExpressions: []plonk.ExpressionMid{q},
	})
	assert.Equal(6, m.Compile().Degree())
}

func TestBlindingFactors(t *testing.T) {
	assert := require.New(t)

	// few advice queries: the permutation floor of 3 applies
	cs := testSystem().Compile()
	assert.Equal(5, cs.BlindingFactors())
	assert.GreaterOrEqual(cs.BlindingFactors(), 5)

	// five distinct rotations on one column push past the floor
	a0 := plonk.NewAdviceColumn(0, plonk.FirstPhase())
	m := NewSystemMid()
	m.NbAdviceColumns = 1
	m.AdvicePhases = []plonk.Phase{plonk.FirstPhase()}
	var terms []plonk.ExpressionMid
	for rot := int32(-2); rot <= 2; rot++ {
		terms = append(terms, a0.QueryCell(plonk.Rotation(rot)))
	}
	m.Gates = append(m.Gates, GateMid{Name: "window", Poly: plonk.SumOfMid(terms...)})
	assert.Equal(7, m.Compile().BlindingFactors())
}

func TestMinimumRows(t *testing.T) {
	assert := require.New(t)

	for _, m := range []*SystemMid{NewSystemMid(), testSystem()} {
		cs := m.Compile()
		assert.Equal(cs.BlindingFactors()+3, cs.MinimumRows())
	}
}

func TestPermutationChunkSize(t *testing.T) {
	assert := require.New(t)

	assert.Equal(2, testSystem().Compile().PermutationChunkSize())
	assert.Equal(1, NewSystemMid().Compile().PermutationChunkSize())
}

func TestDomainSizes(t *testing.T) {
	assert := require.New(t)

	cs := testSystem().Compile()
	n, extended := cs.DomainSizes(100)
	assert.EqualValues(128, n)
	// degree 4 identities need a 3n extension, rounded to a power of two
	assert.EqualValues(512, extended)

	// tiny tables are padded up to the blinding minimum
	n, _ = cs.DomainSizes(1)
	assert.GreaterOrEqual(int(n), cs.MinimumRows())
	assert.Zero(n & (n - 1))
}

func TestPhases(t *testing.T) {
	assert := require.New(t)

	assert.Equal([]plonk.Phase{plonk.FirstPhase()}, testSystem().Compile().Phases())

	m := testSystem()
	m.NbAdviceColumns++
	m.AdvicePhases = append(m.AdvicePhases, plonk.SecondPhase())
	assert.Equal([]plonk.Phase{plonk.FirstPhase(), plonk.SecondPhase()}, m.Compile().Phases())

	m.NbChallenges = 1
	m.ChallengePhases = []plonk.Phase{plonk.ThirdPhase()}
	assert.Equal(
		[]plonk.Phase{plonk.FirstPhase(), plonk.SecondPhase(), plonk.ThirdPhase()},
		m.Compile().Phases(),
	)
}

func TestAnnotations(t *testing.T) {
	assert := require.New(t)

	m := testSystem()
	a0 := plonk.NewAdviceColumn(0, plonk.FirstPhase()).Column()
	m.AnnotateColumn(a0, "left operand")

	cs := m.Compile()
	name, ok := cs.Annotation(a0)
	assert.True(ok)
	assert.Equal("left operand", name)

	_, ok = cs.Annotation(plonk.NewFixedColumn(0).Column())
	assert.False(ok)
}

func TestWithSelector(t *testing.T) {
	assert := require.New(t)

	selector := plonk.NewFixedColumn(0)
	a0 := plonk.NewAdviceColumn(0, plonk.FirstPhase())
	q := a0.QueryCell(plonk.RotationCur())

	constraints := WithSelector(selector.QueryCell(plonk.RotationCur()), []Constraint{
		{Name: "identity", Poly: q},
		{Name: "square", Poly: plonk.MulMid(q, q)},
	})

	assert.Len(constraints, 2)
	assert.Equal("identity", constraints[0].Name)
	assert.Equal(2, constraints[0].Poly.Degree())
	assert.Equal(3, constraints[1].Poly.Degree())

	// each polynomial gained the selector as an outer factor
	outer := constraints[0].Poly.(*plonk.ProductMid)
	assert.IsType(&plonk.FixedQueryMid{}, outer.A)
}

func TestCompileNilPermutation(t *testing.T) {
	assert := require.New(t)

	m := &SystemMid{}
	cs := m.Compile()
	assert.NotNil(cs.Permutation())
	assert.Zero(cs.Permutation().NbColumns())
}

func TestGateAccessors(t *testing.T) {
	assert := require.New(t)

	cs := testSystem().Compile()
	g := cs.Gates()[0]
	assert.Equal("mul", g.Name())
	assert.Equal("", g.ConstraintName(0))
	assert.Len(g.Polynomials(), 1)
}

func TestSystemEndToEnd(t *testing.T) {
	assert := require.New(t)

	// the multiplication circuit, checked wholesale: the compiled system
	// agrees with itself on every derived quantity a backend consumes
	m := testSystem()
	cs := m.Compile()

	assert.Equal(2, cs.NbFixedColumns())
	assert.Equal(2, cs.NbAdviceColumns())
	assert.Equal(1, cs.NbInstanceColumns())
	assert.Zero(cs.NbChallenges())

	assert.Len(cs.Lookups(), 1)
	assert.Equal(4, cs.Lookups()[0].RequiredDegree())
	assert.Empty(cs.Shuffles())
	assert.Equal(2, cs.Permutation().NbColumns())

	// evaluating the indexed gate over a satisfying row yields zero
	var three, four, twelve fr.Element
	three.SetUint64(3)
	four.SetUint64(4)
	twelve.SetUint64(12)

	fixed := []fr.Element{fr.One(), {}}
	advice := []fr.Element{three, four, {}}
	instance := []fr.Element{twelve}

	ev := &plonk.Evaluator[fr.Element]{
		Constant: func(v fr.Element) fr.Element { return v },
		Fixed:    func(q *plonk.FixedQuery) fr.Element { return fixed[q.QueryIndex] },
		Advice:   func(q *plonk.AdviceQuery) fr.Element { return advice[q.QueryIndex] },
		Instance: func(q *plonk.InstanceQuery) fr.Element { return instance[q.QueryIndex] },
		Challenge: func(c *plonk.Challenge) fr.Element {
			panic("no challenges in this circuit")
		},
		Negated: func(v fr.Element) fr.Element {
			var out fr.Element
			return *out.Neg(&v)
		},
		Sum: func(a, b fr.Element) fr.Element {
			var out fr.Element
			return *out.Add(&a, &b)
		},
		Product: func(a, b fr.Element) fr.Element {
			var out fr.Element
			return *out.Mul(&a, &b)
		},
		Scaled: func(v fr.Element, coeff fr.Element) fr.Element {
			var out fr.Element
			return *out.Mul(&v, &coeff)
		},
	}
	got := plonk.Evaluate(cs.Gates()[0].Polynomials()[0], ev)
	assert.True(got.IsZero())

	// and a non-satisfying instance does not vanish
	instance[0] = fr.One()
	got = plonk.Evaluate(cs.Gates()[0].Polynomials()[0], ev)
	assert.False(got.IsZero())
}
