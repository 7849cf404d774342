package plonk

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

type columnKind uint8

const (
	kindInstance columnKind = iota
	kindAdvice
	kindFixed
)

// Any is the kind of a column: fixed, advice (carrying a phase) or instance.
type Any struct {
	kind  columnKind
	phase Phase // meaningful for advice only
}

// AnyFixed returns the fixed column kind.
func AnyFixed() Any { return Any{kind: kindFixed} }

// AnyInstance returns the instance column kind.
func AnyInstance() Any { return Any{kind: kindInstance} }

// AnyAdvice returns the advice column kind in the first phase.
func AnyAdvice() Any { return Any{kind: kindAdvice} }

// AnyAdviceInPhase returns the advice column kind in the given phase.
func AnyAdviceInPhase(phase Phase) Any { return Any{kind: kindAdvice, phase: phase} }

// IsFixed reports whether the kind is fixed.
func (a Any) IsFixed() bool { return a.kind == kindFixed }

// IsAdvice reports whether the kind is advice.
func (a Any) IsAdvice() bool { return a.kind == kindAdvice }

// IsInstance reports whether the kind is instance.
func (a Any) IsInstance() bool { return a.kind == kindInstance }

// Phase returns the phase of an advice kind. It is the first phase for fixed
// and instance kinds.
func (a Any) Phase() Phase { return a.phase }

// Cmp compares two kinds. This ordering is consensus-critical: the layout of
// query tables and permutation polynomials relies on it being deterministic.
// Instance sorts before advice, advice before fixed; advice kinds are further
// ordered by phase.
func (a Any) Cmp(other Any) int {
	if a.kind == kindAdvice && other.kind == kindAdvice {
		return a.phase.Cmp(other.phase)
	}
	// Instance < Advice < Fixed
	rank := func(k columnKind) int {
		switch k {
		case kindInstance:
			return 0
		case kindAdvice:
			return 1
		default:
			return 2
		}
	}
	switch ra, rb := rank(a.kind), rank(other.kind); {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

func (a Any) String() string {
	switch a.kind {
	case kindFixed:
		return "fixed"
	case kindInstance:
		return "instance"
	default:
		if a.phase.v == 0 {
			return "advice"
		}
		return fmt.Sprintf("advice[%s]", a.phase)
	}
}

// Column is a kind-erased column handle. Columns are immutable values,
// allocated by the constraint system that owns them; two columns are equal
// iff they have the same kind and index.
type Column struct {
	index int
	kind  Any
}

// NewColumn builds a column handle with the given index and kind.
func NewColumn(index int, kind Any) Column {
	return Column{index: index, kind: kind}
}

// Index of this column within its kind.
func (c Column) Index() int { return c.index }

// Kind of this column.
func (c Column) Kind() Any { return c.kind }

// Cmp compares two columns: kind first, then index. This ordering is
// consensus-critical (see Any.Cmp); indices are assigned within kinds.
func (c Column) Cmp(other Column) int {
	if k := c.kind.Cmp(other.kind); k != 0 {
		return k
	}
	switch {
	case c.index < other.index:
		return -1
	case c.index > other.index:
		return 1
	default:
		return 0
	}
}

func (c Column) String() string {
	return fmt.Sprintf("%s[%d]", c.kind, c.index)
}

// QueryCell builds the mid-level query expression for this column at the
// given rotation, tagged with the column's kind.
func (c Column) QueryCell(at Rotation) ExpressionMid {
	switch c.kind.kind {
	case kindFixed:
		return &FixedQueryMid{ColumnIndex: c.index, Rotation: at}
	case kindInstance:
		return &InstanceQueryMid{ColumnIndex: c.index, Rotation: at}
	default:
		return &AdviceQueryMid{ColumnIndex: c.index, Rotation: at, Phase: c.kind.phase}
	}
}

// Cur queries this column at the current row.
func (c Column) Cur() ExpressionMid { return c.QueryCell(RotationCur()) }

// Next queries this column at the next row.
func (c Column) Next() ExpressionMid { return c.QueryCell(RotationNext()) }

// Prev queries this column at the previous row.
func (c Column) Prev() ExpressionMid { return c.QueryCell(RotationPrev()) }

// Rot queries this column at the given rotation.
func (c Column) Rot(rotation int32) ExpressionMid { return c.QueryCell(Rotation(rotation)) }

// MarshalCBOR implements cbor.Marshaler; columns serialize as
// [index, kind, phase].
func (c Column) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([3]uint64{uint64(c.index), uint64(c.kind.kind), uint64(c.kind.phase.v)})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (c *Column) UnmarshalCBOR(data []byte) error {
	var raw [3]uint64
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw[1] > uint64(kindFixed) {
		return fmt.Errorf("invalid column kind %d", raw[1])
	}
	phase, err := phaseFromUint8(uint8(raw[2]))
	if err != nil {
		return err
	}
	c.index = int(raw[0])
	c.kind = Any{kind: columnKind(raw[1]), phase: phase}
	return nil
}

// FixedColumn is a type-narrowed handle on a fixed column.
type FixedColumn struct {
	index int
}

// NewFixedColumn builds a fixed column handle.
func NewFixedColumn(index int) FixedColumn { return FixedColumn{index: index} }

// Index of this column.
func (c FixedColumn) Index() int { return c.index }

// Column widens the handle to a kind-erased column. Widening is total.
func (c FixedColumn) Column() Column { return Column{index: c.index, kind: AnyFixed()} }

// QueryCell builds the mid-level query expression for this column.
func (c FixedColumn) QueryCell(at Rotation) ExpressionMid {
	return &FixedQueryMid{ColumnIndex: c.index, Rotation: at}
}

// AdviceColumn is a type-narrowed handle on an advice column.
type AdviceColumn struct {
	index int
	phase Phase
}

// NewAdviceColumn builds an advice column handle in the given phase.
func NewAdviceColumn(index int, phase Phase) AdviceColumn {
	return AdviceColumn{index: index, phase: phase}
}

// Index of this column.
func (c AdviceColumn) Index() int { return c.index }

// Phase of this column.
func (c AdviceColumn) Phase() Phase { return c.phase }

// Column widens the handle to a kind-erased column. Widening is total.
func (c AdviceColumn) Column() Column {
	return Column{index: c.index, kind: AnyAdviceInPhase(c.phase)}
}

// QueryCell builds the mid-level query expression for this column.
func (c AdviceColumn) QueryCell(at Rotation) ExpressionMid {
	return &AdviceQueryMid{ColumnIndex: c.index, Rotation: at, Phase: c.phase}
}

// InstanceColumn is a type-narrowed handle on an instance column.
type InstanceColumn struct {
	index int
}

// NewInstanceColumn builds an instance column handle.
func NewInstanceColumn(index int) InstanceColumn { return InstanceColumn{index: index} }

// Index of this column.
func (c InstanceColumn) Index() int { return c.index }

// Column widens the handle to a kind-erased column. Widening is total.
func (c InstanceColumn) Column() Column { return Column{index: c.index, kind: AnyInstance()} }

// QueryCell builds the mid-level query expression for this column.
func (c InstanceColumn) QueryCell(at Rotation) ExpressionMid {
	return &InstanceQueryMid{ColumnIndex: c.index, Rotation: at}
}

// AsFixed narrows a kind-erased column to a fixed handle. Narrowing is
// partial: it fails with ErrKindMismatch when the stored kind differs.
func (c Column) AsFixed() (FixedColumn, error) {
	if !c.kind.IsFixed() {
		return FixedColumn{}, fmt.Errorf("%w: cannot narrow %s to fixed", ErrKindMismatch, c)
	}
	return FixedColumn{index: c.index}, nil
}

// AsAdvice narrows a kind-erased column to an advice handle.
func (c Column) AsAdvice() (AdviceColumn, error) {
	if !c.kind.IsAdvice() {
		return AdviceColumn{}, fmt.Errorf("%w: cannot narrow %s to advice", ErrKindMismatch, c)
	}
	return AdviceColumn{index: c.index, phase: c.kind.phase}, nil
}

// AsInstance narrows a kind-erased column to an instance handle.
func (c Column) AsInstance() (InstanceColumn, error) {
	if !c.kind.IsInstance() {
		return InstanceColumn{}, fmt.Errorf("%w: cannot narrow %s to instance", ErrKindMismatch, c)
	}
	return InstanceColumn{index: c.index}, nil
}
