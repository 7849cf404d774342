package constraint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/blang/semver/v4"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/ronanh/intcomp"
	"golang.org/x/sync/errgroup"

	plonkish "github.com/consensys/plonkish"
	"github.com/consensys/plonkish/logger"
	"github.com/consensys/plonkish/plonk"
	"github.com/consensys/plonkish/plonk/lookup"
	"github.com/consensys/plonkish/plonk/permutation"
	"github.com/consensys/plonkish/plonk/shuffle"
)

// CompiledCircuit bundles the output of circuit compilation: the mid-level
// constraint system, the fixed column assignments, and the copy constraints
// accumulated during synthesis. It is the unit of serialization; key
// generation consumes it.
type CompiledCircuit struct {
	System *SystemMid
	NbRows int
	Fixed  [][]fr.Element
	Copies []permutation.Copy
}

// Assembly replays the recorded copy constraints into a fresh permutation
// assembly over the circuit's table size.
func (c *CompiledCircuit) Assembly() (*permutation.Assembly, error) {
	perm := c.System.Permutation
	if perm == nil {
		perm = permutation.NewArgument()
	}
	asm := permutation.NewAssembly(c.NbRows, perm)
	for _, cp := range c.Copies {
		if err := asm.Copy(cp.Left.Column, cp.Left.Row, cp.Right.Column, cp.Right.Row); err != nil {
			return nil, err
		}
	}
	return asm, nil
}

var cborEnc = func() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

var cborDec = func() cbor.DecMode {
	m, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// serializationHeader is stamped at the front of every serialized circuit,
// so a reader can fail fast on data written by an incompatible build.
type serializationHeader struct {
	Version     string `cbor:"version"`
	ScalarField string `cbor:"scalarField"`
}

func newSerializationHeader() serializationHeader {
	return serializationHeader{
		Version:     plonkish.Version.String(),
		ScalarField: fr.Modulus().Text(16),
	}
}

func (h *serializationHeader) check() error {
	v, err := semver.Parse(h.Version)
	if err != nil {
		return fmt.Errorf("parse serialized version: %w", err)
	}
	if v.Major != plonkish.Version.Major || v.Minor != plonkish.Version.Minor {
		log := logger.Logger()
		log.Warn().Str("have", h.Version).Str("want", plonkish.Version.String()).
			Msg("serialized circuit was written by a different version")
	}
	if h.ScalarField != fr.Modulus().Text(16) {
		return fmt.Errorf("scalar field mismatch: serialized circuit is over 0x%s", h.ScalarField)
	}
	return nil
}

// serializedSystem is the cbor body: every field of the system except the
// expressions, the fixed assignments and the copies, which travel in their
// own sections.
type serializedSystem struct {
	NbFixedColumns     int
	NbAdviceColumns    int
	NbInstanceColumns  int
	NbChallenges       int
	AdvicePhases       []plonk.Phase
	ChallengePhases    []plonk.Phase
	UnblindedAdvice    []int
	GateNames          []string
	Lookups            []serializedLookup
	Shuffles           []serializedShuffle
	PermutationColumns []plonk.Column
	MinimumDegree      int
	NbRows             int
	NbCopies           int
}

type serializedLookup struct {
	Name     string
	NbInputs int
	NbTables int
}

type serializedShuffle struct {
	Name       string
	NbInputs   int
	NbShuffles int
}

// WriteTo serializes the circuit to w. The layout is five length-prefixed
// sections: header, cbor body, expression blob, fixed assignments, and
// intcomp-compressed copies. Sections are independent and are built in
// parallel.
func (c *CompiledCircuit) WriteTo(w io.Writer) (int64, error) {
	var headerBuf, bodyBuf, exprBuf, fixedBuf, copiesBuf bytes.Buffer

	var g errgroup.Group
	g.Go(func() error {
		if err := cborEnc.NewEncoder(&headerBuf).Encode(newSerializationHeader()); err != nil {
			return err
		}
		return cborEnc.NewEncoder(&bodyBuf).Encode(c.body())
	})
	g.Go(func() error {
		for _, e := range c.expressions() {
			encodeExpression(&exprBuf, e)
		}
		return nil
	})
	g.Go(func() error {
		writeUvarint(&fixedBuf, uint64(len(c.Fixed)))
		for _, col := range c.Fixed {
			writeUvarint(&fixedBuf, uint64(len(col)))
			for i := range col {
				b := col[i].Bytes()
				fixedBuf.Write(b[:])
			}
		}
		return nil
	})
	g.Go(func() error {
		return c.writeCopies(&copiesBuf)
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	sections := []*bytes.Buffer{&headerBuf, &bodyBuf, &exprBuf, &fixedBuf, &copiesBuf}
	lengths := make([]uint64, len(sections))
	for i, s := range sections {
		lengths[i] = uint64(s.Len())
	}
	if err := binary.Write(w, binary.LittleEndian, lengths); err != nil {
		return 0, err
	}
	written := int64(8 * len(sections))
	for _, s := range sections {
		n, err := w.Write(s.Bytes())
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ReadFrom deserializes a circuit written by WriteTo. The header is
// validated before anything else is decoded; the remaining sections are
// decoded in parallel.
func (c *CompiledCircuit) ReadFrom(r io.Reader) (int64, error) {
	lengths := make([]uint64, 5)
	if err := binary.Read(r, binary.LittleEndian, lengths); err != nil {
		return 0, err
	}
	read := int64(8 * len(lengths))

	sections := make([][]byte, len(lengths))
	for i, l := range lengths {
		sections[i] = make([]byte, l)
		n, err := io.ReadFull(r, sections[i])
		read += int64(n)
		if err != nil {
			return read, err
		}
	}

	var header serializationHeader
	if err := cborDec.Unmarshal(sections[0], &header); err != nil {
		return read, fmt.Errorf("decode header: %w", err)
	}
	if err := header.check(); err != nil {
		return read, err
	}

	var body serializedSystem
	if err := cborDec.Unmarshal(sections[1], &body); err != nil {
		return read, fmt.Errorf("decode body: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error { return c.readSystem(&body, sections[2]) })
	g.Go(func() error {
		var err error
		c.Fixed, err = readFixed(sections[3])
		return err
	})
	g.Go(func() error { return c.readCopies(&body, sections[4]) })
	if err := g.Wait(); err != nil {
		return read, err
	}
	c.NbRows = body.NbRows
	return read, nil
}

func (c *CompiledCircuit) permutationColumns() []plonk.Column {
	if c.System.Permutation == nil {
		return nil
	}
	return c.System.Permutation.Columns()
}

func (c *CompiledCircuit) body() serializedSystem {
	m := c.System
	body := serializedSystem{
		NbFixedColumns:     m.NbFixedColumns,
		NbAdviceColumns:    m.NbAdviceColumns,
		NbInstanceColumns:  m.NbInstanceColumns,
		NbChallenges:       m.NbChallenges,
		AdvicePhases:       m.AdvicePhases,
		ChallengePhases:    m.ChallengePhases,
		UnblindedAdvice:    m.UnblindedAdvice,
		MinimumDegree:      m.MinimumDegree,
		PermutationColumns: c.permutationColumns(),
		NbRows:             c.NbRows,
		NbCopies:           len(c.Copies),
	}
	for _, gate := range m.Gates {
		body.GateNames = append(body.GateNames, gate.Name)
	}
	for _, l := range m.Lookups {
		body.Lookups = append(body.Lookups, serializedLookup{
			Name:     l.Name,
			NbInputs: len(l.InputExpressions),
			NbTables: len(l.TableExpressions),
		})
	}
	for _, s := range m.Shuffles {
		body.Shuffles = append(body.Shuffles, serializedShuffle{
			Name:       s.Name,
			NbInputs:   len(s.InputExpressions),
			NbShuffles: len(s.ShuffleExpressions),
		})
	}
	return body
}

// expressions lists every expression of the system in serialization order:
// gate polynomials, then lookup inputs and tables, then shuffle inputs and
// shuffles.
func (c *CompiledCircuit) expressions() []plonk.ExpressionMid {
	var out []plonk.ExpressionMid
	for _, g := range c.System.Gates {
		out = append(out, g.Poly)
	}
	for _, l := range c.System.Lookups {
		out = append(out, l.InputExpressions...)
		out = append(out, l.TableExpressions...)
	}
	for _, s := range c.System.Shuffles {
		out = append(out, s.InputExpressions...)
		out = append(out, s.ShuffleExpressions...)
	}
	return out
}

func (c *CompiledCircuit) readSystem(body *serializedSystem, exprSection []byte) error {
	r := bytes.NewReader(exprSection)
	next := func() (plonk.ExpressionMid, error) { return decodeExpression(r) }

	m := &SystemMid{
		NbFixedColumns:    body.NbFixedColumns,
		NbAdviceColumns:   body.NbAdviceColumns,
		NbInstanceColumns: body.NbInstanceColumns,
		NbChallenges:      body.NbChallenges,
		AdvicePhases:      body.AdvicePhases,
		ChallengePhases:   body.ChallengePhases,
		UnblindedAdvice:   body.UnblindedAdvice,
		MinimumDegree:     body.MinimumDegree,
		Permutation:       permutation.NewArgument(body.PermutationColumns...),
		Annotations:       make(map[plonk.Column]string),
	}
	for _, name := range body.GateNames {
		poly, err := next()
		if err != nil {
			return err
		}
		m.Gates = append(m.Gates, GateMid{Name: name, Poly: poly})
	}
	for _, l := range body.Lookups {
		arg := lookup.ArgumentMid{Name: l.Name}
		var err error
		if arg.InputExpressions, err = decodeExpressions(r, l.NbInputs); err != nil {
			return err
		}
		if arg.TableExpressions, err = decodeExpressions(r, l.NbTables); err != nil {
			return err
		}
		m.Lookups = append(m.Lookups, arg)
	}
	for _, s := range body.Shuffles {
		arg := shuffle.ArgumentMid{Name: s.Name}
		var err error
		if arg.InputExpressions, err = decodeExpressions(r, s.NbInputs); err != nil {
			return err
		}
		if arg.ShuffleExpressions, err = decodeExpressions(r, s.NbShuffles); err != nil {
			return err
		}
		m.Shuffles = append(m.Shuffles, arg)
	}
	if r.Len() != 0 {
		return fmt.Errorf("expression section has %d trailing bytes", r.Len())
	}
	c.System = m
	return nil
}

func readFixed(section []byte) ([][]fr.Element, error) {
	r := bytes.NewReader(section)
	nbCols, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	fixed := make([][]fr.Element, nbCols)
	for i := range fixed {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		fixed[i] = make([]fr.Element, n)
		var b [fr.Bytes]byte
		for j := range fixed[i] {
			if _, err := io.ReadFull(r, b[:]); err != nil {
				return nil, err
			}
			if err := fixed[i][j].SetBytesCanonical(b[:]); err != nil {
				return nil, err
			}
		}
	}
	return fixed, nil
}

// writeCopies serializes the copy constraints as a stream of uint32 words
// (argument column position and row, left then right), integer-compressed.
// Copies reference cells over and over; the compressed form is a fraction
// of the raw one.
func (c *CompiledCircuit) writeCopies(buf *bytes.Buffer) error {
	columns := c.permutationColumns()
	position := make(map[plonk.Column]int, len(columns))
	for i, col := range columns {
		position[col] = i
	}

	words := make([]uint32, 0, 4*len(c.Copies))
	appendCell := func(cell permutation.Cell) error {
		pos, ok := position[cell.Column]
		if !ok {
			return fmt.Errorf("%w: %s", permutation.ErrColumnNotInPermutation, cell.Column)
		}
		if cell.Row < 0 || cell.Row > math.MaxUint32 {
			return fmt.Errorf("%w: row %d", permutation.ErrBoundsFailure, cell.Row)
		}
		words = append(words, uint32(pos), uint32(cell.Row))
		return nil
	}
	for _, cp := range c.Copies {
		if err := appendCell(cp.Left); err != nil {
			return err
		}
		if err := appendCell(cp.Right); err != nil {
			return err
		}
	}

	compressed := intcomp.CompressUint32(words, nil)
	writeUvarint(buf, uint64(len(compressed)))
	return binary.Write(buf, binary.LittleEndian, compressed)
}

func (c *CompiledCircuit) readCopies(body *serializedSystem, section []byte) error {
	r := bytes.NewReader(section)
	nbWords, err := binary.ReadUvarint(r)
	if err != nil {
		return err
	}
	compressed := make([]uint32, nbWords)
	if err := binary.Read(r, binary.LittleEndian, compressed); err != nil {
		return err
	}
	words := intcomp.UncompressUint32(compressed, nil)
	if len(words) != 4*body.NbCopies {
		return fmt.Errorf("copies section has %d words, expected %d", len(words), 4*body.NbCopies)
	}

	columns := body.PermutationColumns
	cell := func(pos, row uint32) (permutation.Cell, error) {
		if int(pos) >= len(columns) {
			return permutation.Cell{}, fmt.Errorf("%w: column position %d", permutation.ErrColumnNotInPermutation, pos)
		}
		return permutation.Cell{Column: columns[pos], Row: int(row)}, nil
	}
	copies := make([]permutation.Copy, body.NbCopies)
	for i := range copies {
		left, err := cell(words[4*i], words[4*i+1])
		if err != nil {
			return err
		}
		right, err := cell(words[4*i+2], words[4*i+3])
		if err != nil {
			return err
		}
		copies[i] = permutation.Copy{Left: left, Right: right}
	}
	c.Copies = copies
	return nil
}

const (
	tagConstant byte = iota
	tagFixedQuery
	tagAdviceQuery
	tagInstanceQuery
	tagChallenge
	tagNegated
	tagSum
	tagProduct
	tagScaled
)

func encodeExpression(buf *bytes.Buffer, e plonk.ExpressionMid) {
	switch n := e.(type) {
	case *plonk.Constant:
		buf.WriteByte(tagConstant)
		b := n.Value.Bytes()
		buf.Write(b[:])
	case *plonk.FixedQueryMid:
		buf.WriteByte(tagFixedQuery)
		writeUvarint(buf, uint64(n.ColumnIndex))
		writeVarint(buf, int64(n.Rotation))
	case *plonk.AdviceQueryMid:
		buf.WriteByte(tagAdviceQuery)
		writeUvarint(buf, uint64(n.ColumnIndex))
		writeVarint(buf, int64(n.Rotation))
		writePhase(buf, n.Phase)
	case *plonk.InstanceQueryMid:
		buf.WriteByte(tagInstanceQuery)
		writeUvarint(buf, uint64(n.ColumnIndex))
		writeVarint(buf, int64(n.Rotation))
	case *plonk.Challenge:
		buf.WriteByte(tagChallenge)
		writeUvarint(buf, uint64(n.Index))
		writePhase(buf, n.Phase)
	case *plonk.NegatedMid:
		buf.WriteByte(tagNegated)
		encodeExpression(buf, n.Elem)
	case *plonk.SumMid:
		buf.WriteByte(tagSum)
		encodeExpression(buf, n.A)
		encodeExpression(buf, n.B)
	case *plonk.ProductMid:
		buf.WriteByte(tagProduct)
		encodeExpression(buf, n.A)
		encodeExpression(buf, n.B)
	case *plonk.ScaledMid:
		buf.WriteByte(tagScaled)
		encodeExpression(buf, n.Elem)
		b := n.Coeff.Bytes()
		buf.Write(b[:])
	default:
		panic(fmt.Sprintf("unknown expression node %T", e))
	}
}

func decodeExpression(r *bytes.Reader) (plonk.ExpressionMid, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagConstant:
		v, err := readElement(r)
		if err != nil {
			return nil, err
		}
		return &plonk.Constant{Value: v}, nil
	case tagFixedQuery:
		col, rot, err := readQuery(r)
		if err != nil {
			return nil, err
		}
		return &plonk.FixedQueryMid{ColumnIndex: col, Rotation: rot}, nil
	case tagAdviceQuery:
		col, rot, err := readQuery(r)
		if err != nil {
			return nil, err
		}
		phase, err := readPhase(r)
		if err != nil {
			return nil, err
		}
		return &plonk.AdviceQueryMid{ColumnIndex: col, Rotation: rot, Phase: phase}, nil
	case tagInstanceQuery:
		col, rot, err := readQuery(r)
		if err != nil {
			return nil, err
		}
		return &plonk.InstanceQueryMid{ColumnIndex: col, Rotation: rot}, nil
	case tagChallenge:
		index, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		phase, err := readPhase(r)
		if err != nil {
			return nil, err
		}
		return &plonk.Challenge{Index: int(index), Phase: phase}, nil
	case tagNegated:
		elem, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		return &plonk.NegatedMid{Elem: elem}, nil
	case tagSum, tagProduct:
		a, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		b, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		if tag == tagSum {
			return &plonk.SumMid{A: a, B: b}, nil
		}
		return &plonk.ProductMid{A: a, B: b}, nil
	case tagScaled:
		elem, err := decodeExpression(r)
		if err != nil {
			return nil, err
		}
		coeff, err := readElement(r)
		if err != nil {
			return nil, err
		}
		return &plonk.ScaledMid{Elem: elem, Coeff: coeff}, nil
	default:
		return nil, fmt.Errorf("unknown expression tag %d", tag)
	}
}

func decodeExpressions(r *bytes.Reader, n int) ([]plonk.ExpressionMid, error) {
	out := make([]plonk.ExpressionMid, n)
	for i := range out {
		var err error
		if out[i], err = decodeExpression(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readQuery(r *bytes.Reader) (int, plonk.Rotation, error) {
	col, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, 0, err
	}
	rot, err := binary.ReadVarint(r)
	if err != nil {
		return 0, 0, err
	}
	if rot < math.MinInt32 || rot > math.MaxInt32 {
		return 0, 0, fmt.Errorf("rotation %d out of range", rot)
	}
	return int(col), plonk.Rotation(rot), nil
}

func readElement(r *bytes.Reader) (fr.Element, error) {
	var b [fr.Bytes]byte
	var v fr.Element
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return v, err
	}
	err := v.SetBytesCanonical(b[:])
	return v, err
}

func writePhase(buf *bytes.Buffer, p plonk.Phase) {
	b, _ := p.MarshalBinary()
	buf.Write(b)
}

func readPhase(r *bytes.Reader) (plonk.Phase, error) {
	b, err := r.ReadByte()
	if err != nil {
		return plonk.Phase{}, err
	}
	var p plonk.Phase
	err = p.UnmarshalBinary([]byte{b})
	return p, err
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	buf.Write(tmp[:binary.PutUvarint(tmp[:], v)])
}

func writeVarint(buf *bytes.Buffer, v int64) {
	var tmp [binary.MaxVarintLen64]byte
	buf.Write(tmp[:binary.PutVarint(tmp[:], v)])
}
