package permutation

import (
	"fmt"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/consensys/plonkish/logger"
	"github.com/consensys/plonkish/plonk"
	"golang.org/x/sync/errgroup"
)

// cellRef addresses a cell by column position within the argument and row.
type cellRef struct {
	col uint32
	row uint32
}

// cycleSets merges copy constraints into disjoint cycles. mapping holds,
// for each cell, the next cell of its cycle; aux points at the cycle
// representative and sizes carries cycle sizes at representatives only, so
// merges always splice the smaller cycle into the larger one.
type cycleSets struct {
	n       int
	mapping [][]cellRef
	aux     [][]cellRef
	sizes   [][]uint32
}

func newCycleSets(nbColumns, n int) *cycleSets {
	s := &cycleSets{
		n:       n,
		mapping: make([][]cellRef, nbColumns),
		aux:     make([][]cellRef, nbColumns),
		sizes:   make([][]uint32, nbColumns),
	}
	for j := 0; j < nbColumns; j++ {
		s.mapping[j] = make([]cellRef, n)
		s.aux[j] = make([]cellRef, n)
		s.sizes[j] = make([]uint32, n)
		for i := 0; i < n; i++ {
			c := cellRef{col: uint32(j), row: uint32(i)}
			s.mapping[j][i] = c
			s.aux[j][i] = c
			s.sizes[j][i] = 1
		}
	}
	return s
}

func (s *cycleSets) at(m [][]cellRef, c cellRef) cellRef { return m[c.col][c.row] }

// merge joins the cycles containing left and right. Joining a cycle with
// itself is a no-op.
func (s *cycleSets) merge(left, right cellRef) {
	leftCycle := s.at(s.aux, left)
	rightCycle := s.at(s.aux, right)
	if leftCycle == rightCycle {
		return
	}
	if s.sizes[leftCycle.col][leftCycle.row] < s.sizes[rightCycle.col][rightCycle.row] {
		leftCycle, rightCycle = rightCycle, leftCycle
		left, right = right, left
	}
	s.sizes[leftCycle.col][leftCycle.row] += s.sizes[rightCycle.col][rightCycle.row]

	// repoint every cell of the smaller cycle at the surviving representative
	i := rightCycle
	for {
		s.aux[i.col][i.row] = leftCycle
		i = s.at(s.mapping, i)
		if i == rightCycle {
			break
		}
	}

	// splice the two cycles by swapping the successors of the merge points
	s.mapping[left.col][left.row], s.mapping[right.col][right.row] =
		s.mapping[right.col][right.row], s.mapping[left.col][left.row]
}

// checkBijection panics if the mapping is not a permutation of the cells.
// The union-find construction guarantees it is; a violation here is a bug
// in merge, not bad user input.
func (s *cycleSets) checkBijection() {
	seen := bitset.New(uint(len(s.mapping) * s.n))
	for j := range s.mapping {
		for i := range s.mapping[j] {
			c := s.mapping[j][i]
			idx := uint(int(c.col)*s.n + int(c.row))
			if seen.Test(idx) {
				panic(fmt.Sprintf("permutation mapping is not a bijection: cell (%d,%d) hit twice", c.col, c.row))
			}
			seen.Set(idx)
		}
	}
}

// BuildKeys compiles the assembly into a proving key and a verifying key.
//
// The permutation polynomial of column j encodes, at row i, the identity of
// the cell that (j, i) maps to under the copy cycles: delta^c * omega^r for
// target cell (c, r), where omega generates the evaluation domain and delta
// is the coset shift carried by the domain. Distinct cells get distinct
// encodings because delta is not a power of omega.
//
// domain must match the assembly's declared table size. cosetDomain is the
// extended domain on which the quotient is computed; its size is dictated
// by the circuit degree and is at least that of domain.
func (a *Assembly) BuildKeys(domain, cosetDomain *fft.Domain, srs *kzg.SRS) (*ProvingKey, *VerifyingKey, error) {
	if domain.Cardinality != uint64(a.n) {
		return nil, nil, fmt.Errorf("domain size %d does not match table size %d", domain.Cardinality, a.n)
	}
	if cosetDomain.Cardinality < domain.Cardinality {
		return nil, nil, fmt.Errorf("coset domain size %d is smaller than the base domain %d", cosetDomain.Cardinality, domain.Cardinality)
	}
	nbColumns := len(a.columns)

	log := logger.Logger().With().
		Str("backend", "plonkish").
		Int("columns", nbColumns).
		Uint64("size", domain.Cardinality).
		Logger()
	start := time.Now()

	cycles := newCycleSets(nbColumns, a.n)
	for _, cp := range a.copies {
		cycles.merge(
			cellRef{col: uint32(a.columnIndex(cp.Left.Column)), row: uint32(cp.Left.Row)},
			cellRef{col: uint32(a.columnIndex(cp.Right.Column)), row: uint32(cp.Right.Row)},
		)
	}
	cycles.checkBijection()

	// delta^j per column and omega^i per row
	deltaPow := make([]fr.Element, nbColumns)
	deltaPow[0].SetOne()
	for j := 1; j < nbColumns; j++ {
		deltaPow[j].Mul(&deltaPow[j-1], &domain.FrMultiplicativeGen)
	}
	omegaPow := make([]fr.Element, a.n)
	omegaPow[0].SetOne()
	for i := 1; i < a.n; i++ {
		omegaPow[i].Mul(&omegaPow[i-1], &domain.Generator)
	}

	pk := &ProvingKey{
		columns:      append([]plonk.Column(nil), a.columns...),
		permutations: make([][]fr.Element, nbColumns),
		polys:        make([][]fr.Element, nbColumns),
		cosets:       make([][]fr.Element, nbColumns),
	}
	vk := &VerifyingKey{
		commitments: make([]kzg.Digest, nbColumns),
	}

	var g errgroup.Group
	for j := 0; j < nbColumns; j++ {
		j := j
		g.Go(func() error {
			values := make([]fr.Element, a.n)
			for i := 0; i < a.n; i++ {
				target := cycles.mapping[j][i]
				values[i].Mul(&deltaPow[target.col], &omegaPow[target.row])
			}
			pk.permutations[j] = values

			coeffs := make([]fr.Element, a.n)
			copy(coeffs, values)
			domain.FFTInverse(coeffs, fft.DIF)
			fft.BitReverse(coeffs)
			pk.polys[j] = coeffs

			coset := make([]fr.Element, cosetDomain.Cardinality)
			copy(coset, coeffs)
			cosetDomain.FFT(coset, fft.DIF, fft.OnCoset())
			fft.BitReverse(coset)
			pk.cosets[j] = coset

			digest, err := kzg.Commit(coeffs, srs.Pk)
			if err != nil {
				return fmt.Errorf("commit to permutation polynomial %d: %w", j, err)
			}
			vk.commitments[j] = digest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	log.Debug().Dur("took", time.Since(start)).Msg("built permutation keys")
	return pk, vk, nil
}
