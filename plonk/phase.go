package plonk

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Phase identifies the challenge phase an advice column is committed in.
// Phases are an opaque enumeration: the only values that exist are
// FirstPhase(), SecondPhase() and ThirdPhase(), so a Phase reaching the
// constraint system is valid by construction. The zero value is the first
// phase.
type Phase struct {
	v uint8
}

// FirstPhase returns the first challenge phase.
func FirstPhase() Phase { return Phase{0} }

// SecondPhase returns the second challenge phase.
func SecondPhase() Phase { return Phase{1} }

// ThirdPhase returns the third challenge phase.
func ThirdPhase() Phase { return Phase{2} }

// Prev returns the phase before p, or false if p is the first phase.
func (p Phase) Prev() (Phase, bool) {
	if p.v == 0 {
		return Phase{}, false
	}
	return Phase{p.v - 1}, true
}

// Cmp compares two phases; earlier phases sort first.
func (p Phase) Cmp(other Phase) int {
	switch {
	case p.v < other.v:
		return -1
	case p.v > other.v:
		return 1
	default:
		return 0
	}
}

func (p Phase) String() string {
	return fmt.Sprintf("phase(%d)", p.v)
}

// phaseFromUint8 rebuilds a Phase from its serialized form. It is the only
// numeric entry point, and it rejects values outside the enumeration.
func phaseFromUint8(v uint8) (Phase, error) {
	if v > 2 {
		return Phase{}, fmt.Errorf("invalid phase %d", v)
	}
	return Phase{v}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler; a phase serializes as
// one byte.
func (p Phase) MarshalBinary() ([]byte, error) {
	return []byte{p.v}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler, rejecting values
// outside the enumeration.
func (p *Phase) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return fmt.Errorf("invalid phase encoding length %d", len(data))
	}
	var err error
	*p, err = phaseFromUint8(data[0])
	return err
}

// MarshalCBOR implements cbor.Marshaler.
func (p Phase) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(p.v)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (p *Phase) UnmarshalCBOR(data []byte) error {
	var v uint8
	if err := cbor.Unmarshal(data, &v); err != nil {
		return err
	}
	var err error
	*p, err = phaseFromUint8(v)
	return err
}
