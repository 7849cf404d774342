// Package plonkish provides the arithmetization core of a PLONKish proving
// system: typed columns, polynomial constraint expressions, query indexing,
// and the permutation (copy-constraint) argument with its proving and
// verifying keys.
//
// The module sits between a circuit frontend, which emits a mid-level
// constraint-system description, and a backend prover/verifier, which
// consumes the indexed constraint system and the compiled permutation keys.
// It does not implement the commitment scheme's opening protocol, the
// transcript, or the quotient construction; it defines the data those
// consume and the invariants they may rely on.
package plonkish

import (
	"github.com/blang/semver/v4"
)

// Version of the plonkish module. Stamped into serialized constraint systems
// and checked on deserialization.
var Version = semver.MustParse("0.1.0")
