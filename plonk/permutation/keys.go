package permutation

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/fft"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/consensys/plonkish/plonk"
)

// VerifyingKey carries one commitment per participating column, in argument
// column order.
type VerifyingKey struct {
	commitments []kzg.Digest
}

// Commitments returns the permutation polynomial commitments, one per
// column in argument order.
func (vk *VerifyingKey) Commitments() []kzg.Digest { return vk.commitments }

// ProvingKey carries the permutation polynomials in the three
// representations the prover needs: evaluations over the base domain,
// coefficients, and evaluations over the extended coset domain. All three
// describe the same polynomials; they are precomputed once at key
// generation so the prover never converts between forms.
type ProvingKey struct {
	columns      []plonk.Column
	permutations [][]fr.Element
	polys        [][]fr.Element
	cosets       [][]fr.Element
}

// Columns returns the participating columns in argument order.
func (pk *ProvingKey) Columns() []plonk.Column { return pk.columns }

// Permutations returns the permutation polynomials as evaluations over the
// base domain, one slice per column.
func (pk *ProvingKey) Permutations() [][]fr.Element { return pk.permutations }

// Polynomials returns the permutation polynomials in coefficient form.
func (pk *ProvingKey) Polynomials() [][]fr.Element { return pk.polys }

// Cosets returns the permutation polynomials as evaluations over the
// extended coset domain.
func (pk *ProvingKey) Cosets() [][]fr.Element { return pk.cosets }

// GrandProduct builds the running-product polynomials z for the given
// column assignments, one polynomial per chunk of chunkLen columns.
//
// Within a chunk, row i of the running product accumulates
//
//	prod_j (v_j(i) + beta * delta^j omega^i + gamma) / (v_j(i) + beta * s_j(i) + gamma)
//
// so that z starts at one and returns to one after the last usable row
// exactly when every copy constraint holds. Chunks chain: each chunk's z
// starts where the previous chunk's z left off, and the final chunk closes
// the telescope.
//
// values holds one assignment per argument column, each of domain size.
// The last blindingFactors+1 rows are unusable; they are filled with
// random values to blind the committed polynomial.
func (pk *ProvingKey) GrandProduct(
	domain *fft.Domain,
	chunkLen, blindingFactors int,
	values [][]fr.Element,
	beta, gamma fr.Element,
) ([][]fr.Element, error) {
	n := int(domain.Cardinality)
	if len(values) != len(pk.columns) {
		return nil, fmt.Errorf("got %d column assignments, argument has %d columns", len(values), len(pk.columns))
	}
	for j, v := range values {
		if len(v) != n {
			return nil, fmt.Errorf("column assignment %d has %d rows, domain has %d", j, len(v), n)
		}
	}
	if chunkLen < 1 {
		return nil, fmt.Errorf("chunk length %d must be positive", chunkLen)
	}
	usableRows := n - (blindingFactors + 1)
	if usableRows <= 0 {
		return nil, fmt.Errorf("domain size %d leaves no usable rows with %d blinding factors", n, blindingFactors)
	}

	nbChunks := (len(pk.columns) + chunkLen - 1) / chunkLen

	var deltaStart fr.Element
	deltaStart.SetOne()

	var lastZ fr.Element
	lastZ.SetOne()

	zs := make([][]fr.Element, 0, nbChunks)
	for chunk := 0; chunk < nbChunks; chunk++ {
		lo := chunk * chunkLen
		hi := lo + chunkLen
		if hi > len(pk.columns) {
			hi = len(pk.columns)
		}

		// ratio[i] = prod_j (v + beta*id + gamma) / (v + beta*sigma + gamma)
		num := make([]fr.Element, usableRows)
		den := make([]fr.Element, usableRows)
		for i := range num {
			num[i].SetOne()
			den[i].SetOne()
		}
		var t fr.Element
		for j := lo; j < hi; j++ {
			deltaOmega := deltaStart
			for i := 0; i < usableRows; i++ {
				t.Mul(&beta, &deltaOmega).
					Add(&t, &gamma).
					Add(&t, &values[j][i])
				num[i].Mul(&num[i], &t)

				t.Mul(&beta, &pk.permutations[j][i]).
					Add(&t, &gamma).
					Add(&t, &values[j][i])
				den[i].Mul(&den[i], &t)

				deltaOmega.Mul(&deltaOmega, &domain.Generator)
			}
			deltaStart.Mul(&deltaStart, &domain.FrMultiplicativeGen)
		}
		den = fr.BatchInvert(den)

		z := make([]fr.Element, n)
		z[0] = lastZ
		for i := 0; i < usableRows; i++ {
			t.Mul(&num[i], &den[i])
			z[i+1].Mul(&z[i], &t)
		}
		lastZ = z[usableRows]

		// blind the trailing rows
		for i := usableRows + 1; i < n; i++ {
			if _, err := z[i].SetRandom(); err != nil {
				return nil, err
			}
		}
		zs = append(zs, z)
	}

	return zs, nil
}
