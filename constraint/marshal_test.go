package constraint

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"reflect"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/plonkish/plonk"
	"github.com/consensys/plonkish/plonk/permutation"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testCircuit() *CompiledCircuit {
	m := testSystem()
	a0 := plonk.NewAdviceColumn(0, plonk.FirstPhase()).Column()
	a1 := plonk.NewAdviceColumn(1, plonk.FirstPhase()).Column()

	const n = 8
	fixed := make([][]fr.Element, 2)
	for j := range fixed {
		fixed[j] = make([]fr.Element, n)
		for i := range fixed[j] {
			fixed[j][i].SetUint64(uint64(j*n + i))
		}
	}

	return &CompiledCircuit{
		System: m,
		NbRows: n,
		Fixed:  fixed,
		Copies: []permutation.Copy{
			{Left: permutation.Cell{Column: a0, Row: 2}, Right: permutation.Cell{Column: a1, Row: 5}},
			{Left: permutation.Cell{Column: a0, Row: 3}, Right: permutation.Cell{Column: a0, Row: 7}},
		},
	}
}

func TestCompiledCircuitRoundTrip(t *testing.T) {
	assert := require.New(t)

	c := testCircuit()
	var buf bytes.Buffer
	written, err := c.WriteTo(&buf)
	assert.NoError(err)
	assert.EqualValues(buf.Len(), written)

	var back CompiledCircuit
	read, err := back.ReadFrom(bytes.NewReader(buf.Bytes()))
	assert.NoError(err)
	assert.Equal(written, read)

	assert.Equal(c.NbRows, back.NbRows)
	assert.Empty(cmp.Diff(c.Fixed, back.Fixed))
	assert.Empty(cmp.Diff(c.Copies, back.Copies, cmp.AllowUnexported(plonk.Column{}, plonk.Any{}, plonk.Phase{})))

	assert.Equal(c.System.NbFixedColumns, back.System.NbFixedColumns)
	assert.Equal(c.System.NbAdviceColumns, back.System.NbAdviceColumns)
	assert.Equal(c.System.NbInstanceColumns, back.System.NbInstanceColumns)
	assert.Equal(c.System.NbChallenges, back.System.NbChallenges)
	assert.Equal(c.System.AdvicePhases, back.System.AdvicePhases)
	assert.Equal(c.System.MinimumDegree, back.System.MinimumDegree)
	assert.Equal(c.System.Gates, back.System.Gates)
	assert.Equal(c.System.Lookups, back.System.Lookups)
	assert.Equal(c.System.Shuffles, back.System.Shuffles)
	assert.Equal(c.System.Permutation.Columns(), back.System.Permutation.Columns())

	// the compiled artifacts agree too
	before, after := c.System.Compile(), back.System.Compile()
	assert.Equal(before.Pinned().String(), after.Pinned().String())
	assert.Equal(before.Degree(), after.Degree())
	assert.Equal(before.BlindingFactors(), after.BlindingFactors())
}

func TestCompiledCircuitAssembly(t *testing.T) {
	assert := require.New(t)

	c := testCircuit()
	asm, err := c.Assembly()
	assert.NoError(err)
	assert.Equal(c.NbRows, asm.NbRows())
	assert.Equal(c.Copies, asm.Copies())

	// a copy outside the declared table size is rejected on replay
	c.Copies[0].Left.Row = c.NbRows
	_, err = c.Assembly()
	assert.ErrorIs(err, permutation.ErrBoundsFailure)
}

func TestWriteToRejectsForeignCopyColumn(t *testing.T) {
	assert := require.New(t)

	c := testCircuit()
	outsider := plonk.NewInstanceColumn(3).Column()
	c.Copies[0].Left.Column = outsider

	var buf bytes.Buffer
	_, err := c.WriteTo(&buf)
	assert.ErrorIs(err, permutation.ErrColumnNotInPermutation)
}

func TestReadFromRejectsScalarFieldMismatch(t *testing.T) {
	assert := require.New(t)

	c := testCircuit()
	var buf bytes.Buffer
	_, err := c.WriteTo(&buf)
	assert.NoError(err)

	// rewrite the header section to claim a different scalar field
	data := buf.Bytes()
	lengths := make([]uint64, 5)
	assert.NoError(binary.Read(bytes.NewReader(data), binary.LittleEndian, lengths))

	badHeader, err := cborEnc.Marshal(serializationHeader{
		Version:     newSerializationHeader().Version,
		ScalarField: "deadbeef",
	})
	assert.NoError(err)

	var tampered bytes.Buffer
	lengths[0] = uint64(len(badHeader))
	assert.NoError(binary.Write(&tampered, binary.LittleEndian, lengths))
	tampered.Write(badHeader)
	headerEnd := 40 + int(binary.LittleEndian.Uint64(data))
	tampered.Write(data[headerEnd:])

	var back CompiledCircuit
	_, err = back.ReadFrom(bytes.NewReader(tampered.Bytes()))
	assert.Error(err)
}

func TestReadFromRejectsTruncatedStream(t *testing.T) {
	assert := require.New(t)

	c := testCircuit()
	var buf bytes.Buffer
	_, err := c.WriteTo(&buf)
	assert.NoError(err)

	data := buf.Bytes()
	var back CompiledCircuit
	_, err = back.ReadFrom(bytes.NewReader(data[:len(data)/2]))
	assert.Error(err)

	_, err = back.ReadFrom(bytes.NewReader(data[:10]))
	assert.Error(err)
}

// randomMidExpression builds an arbitrary mid-level tree for codec tests.
func randomMidExpression(rng *rand.Rand, depth int) plonk.ExpressionMid {
	phases := []plonk.Phase{plonk.FirstPhase(), plonk.SecondPhase(), plonk.ThirdPhase()}
	if depth == 0 || rng.Intn(3) == 0 {
		switch rng.Intn(5) {
		case 0:
			var v fr.Element
			v.SetUint64(rng.Uint64())
			return &plonk.Constant{Value: v}
		case 1:
			return &plonk.FixedQueryMid{ColumnIndex: rng.Intn(8), Rotation: plonk.Rotation(rng.Intn(7) - 3)}
		case 2:
			return &plonk.AdviceQueryMid{
				ColumnIndex: rng.Intn(8),
				Rotation:    plonk.Rotation(rng.Intn(7) - 3),
				Phase:       phases[rng.Intn(3)],
			}
		case 3:
			return &plonk.InstanceQueryMid{ColumnIndex: rng.Intn(8), Rotation: plonk.Rotation(rng.Intn(7) - 3)}
		default:
			return &plonk.Challenge{Index: rng.Intn(4), Phase: phases[rng.Intn(3)]}
		}
	}
	switch rng.Intn(4) {
	case 0:
		return &plonk.NegatedMid{Elem: randomMidExpression(rng, depth-1)}
	case 1:
		return &plonk.SumMid{A: randomMidExpression(rng, depth-1), B: randomMidExpression(rng, depth-1)}
	case 2:
		return &plonk.ProductMid{A: randomMidExpression(rng, depth-1), B: randomMidExpression(rng, depth-1)}
	default:
		var coeff fr.Element
		coeff.SetUint64(rng.Uint64())
		return &plonk.ScaledMid{Elem: randomMidExpression(rng, depth-1), Coeff: coeff}
	}
}

func TestExpressionCodecRoundTrip(t *testing.T) {
	assert := require.New(t)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 300; i++ {
		e := randomMidExpression(rng, 6)

		var buf bytes.Buffer
		encodeExpression(&buf, e)
		back, err := decodeExpression(bytes.NewReader(buf.Bytes()))
		assert.NoError(err)
		assert.True(reflect.DeepEqual(e, back))
	}
}

func TestExpressionCodecRejectsGarbage(t *testing.T) {
	assert := require.New(t)

	_, err := decodeExpression(bytes.NewReader([]byte{99}))
	assert.Error(err)

	_, err = decodeExpression(bytes.NewReader([]byte{tagSum, tagConstant}))
	assert.Error(err)

	_, err = decodeExpression(bytes.NewReader(nil))
	assert.Error(err)
}
