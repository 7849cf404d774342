package permutation

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/consensys/plonkish/plonk"
)

// WriteTo writes the verifying key to w: one curve point per column, in
// argument column order, using compressed point encoding.
func (vk *VerifyingKey) WriteTo(w io.Writer) (int64, error) {
	return vk.writeTo(w, false)
}

// WriteRawTo writes the verifying key to w using uncompressed point
// encoding. Faster to read back, roughly twice the size.
func (vk *VerifyingKey) WriteRawTo(w io.Writer) (int64, error) {
	return vk.writeTo(w, true)
}

func (vk *VerifyingKey) writeTo(w io.Writer, raw bool) (int64, error) {
	enc := newEncoder(w, raw)
	for i := range vk.commitments {
		if err := enc.Encode(&vk.commitments[i]); err != nil {
			return enc.BytesWritten(), err
		}
	}
	return enc.BytesWritten(), nil
}

// ReadFrom reads a verifying key from r. The byte stream does not describe
// the column set, so the argument the key was built for must be supplied.
func (vk *VerifyingKey) ReadFrom(r io.Reader, argument *Argument) (int64, error) {
	dec := bn254.NewDecoder(r)
	vk.commitments = make([]kzg.Digest, argument.NbColumns())
	for i := range vk.commitments {
		if err := dec.Decode(&vk.commitments[i]); err != nil {
			return dec.BytesRead(), err
		}
	}
	return dec.BytesRead(), nil
}

// WriteTo writes the proving key to w: the column count, then the three
// polynomial representations (base-domain evaluations, coefficients, coset
// evaluations), each a sequence of length-prefixed scalar vectors.
func (pk *ProvingKey) WriteTo(w io.Writer) (int64, error) {
	return pk.writeTo(w, false)
}

// WriteRawTo writes the proving key to w. The proving key holds scalars
// only, so the output is identical to WriteTo; the method exists for
// interface symmetry with the verifying key.
func (pk *ProvingKey) WriteRawTo(w io.Writer) (int64, error) {
	return pk.writeTo(w, true)
}

func (pk *ProvingKey) writeTo(w io.Writer, raw bool) (int64, error) {
	var written int64
	if err := binary.Write(w, binary.BigEndian, uint64(len(pk.permutations))); err != nil {
		return written, err
	}
	written += 8

	enc := newEncoder(w, raw)
	for _, seq := range [][][]fr.Element{pk.permutations, pk.polys, pk.cosets} {
		for _, values := range seq {
			if err := enc.Encode(values); err != nil {
				return written + enc.BytesWritten(), err
			}
		}
	}
	return written + enc.BytesWritten(), nil
}

// ReadFrom reads a proving key from r. The argument the key was built for
// must be supplied; its column count must match the serialized key.
func (pk *ProvingKey) ReadFrom(r io.Reader, argument *Argument) (int64, error) {
	var read int64
	var nbColumns uint64
	if err := binary.Read(r, binary.BigEndian, &nbColumns); err != nil {
		return read, err
	}
	read += 8
	if nbColumns != uint64(argument.NbColumns()) {
		return read, fmt.Errorf("serialized key has %d columns, argument has %d", nbColumns, argument.NbColumns())
	}

	pk.columns = append([]plonk.Column(nil), argument.Columns()...)
	pk.permutations = make([][]fr.Element, nbColumns)
	pk.polys = make([][]fr.Element, nbColumns)
	pk.cosets = make([][]fr.Element, nbColumns)

	dec := bn254.NewDecoder(r)
	for _, seq := range [][][]fr.Element{pk.permutations, pk.polys, pk.cosets} {
		for i := range seq {
			if err := dec.Decode(&seq[i]); err != nil {
				return read + dec.BytesRead(), err
			}
		}
	}
	return read + dec.BytesRead(), nil
}

func newEncoder(w io.Writer, raw bool) *bn254.Encoder {
	if raw {
		return bn254.NewEncoder(w, bn254.RawEncoding())
	}
	return bn254.NewEncoder(w)
}
