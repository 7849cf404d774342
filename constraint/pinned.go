package constraint

import (
	"fmt"
	"strings"

	"github.com/consensys/plonkish/plonk"
)

// PinnedSystem is a stable summary of a compiled system: exactly the
// fields that determine the verifying key, in a form that renders
// deterministically. Two circuits with equal pinned dumps are the same
// circuit as far as a verifier is concerned; annotations and other
// debug-only state are excluded.
type PinnedSystem struct {
	NbFixedColumns    int
	NbAdviceColumns   int
	NbInstanceColumns int
	NbChallenges      int
	AdvicePhases      []plonk.Phase
	ChallengePhases   []plonk.Phase
	Gates             []string
	AdviceQueries     []VirtualCell
	InstanceQueries   []VirtualCell
	FixedQueries      []VirtualCell
	Permutation       []plonk.Column
	MinimumDegree     int
}

// Pinned returns the pinned view of the system.
func (cs *System) Pinned() PinnedSystem {
	var gates []string
	for i := range cs.gates {
		for _, p := range cs.gates[i].polys {
			gates = append(gates, plonk.Identifier(p))
		}
	}
	return PinnedSystem{
		NbFixedColumns:    cs.nbFixedColumns,
		NbAdviceColumns:   cs.nbAdviceColumns,
		NbInstanceColumns: cs.nbInstanceColumns,
		NbChallenges:      cs.nbChallenges,
		AdvicePhases:      cs.advicePhases,
		ChallengePhases:   cs.challengePhases,
		Gates:             gates,
		AdviceQueries:     cs.adviceQueries,
		InstanceQueries:   cs.instanceQueries,
		FixedQueries:      cs.fixedQueries,
		Permutation:       cs.permutation.Columns(),
		MinimumDegree:     cs.minimumDegree,
	}
}

func (p PinnedSystem) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fixed_columns: %d\n", p.NbFixedColumns)
	fmt.Fprintf(&sb, "advice_columns: %d\n", p.NbAdviceColumns)
	fmt.Fprintf(&sb, "instance_columns: %d\n", p.NbInstanceColumns)
	fmt.Fprintf(&sb, "challenges: %d\n", p.NbChallenges)
	fmt.Fprintf(&sb, "advice_phases: %v\n", p.AdvicePhases)
	fmt.Fprintf(&sb, "challenge_phases: %v\n", p.ChallengePhases)
	sb.WriteString("gates:\n")
	for _, g := range p.Gates {
		fmt.Fprintf(&sb, "  %s\n", g)
	}
	sb.WriteString("advice_queries:\n")
	for _, q := range p.AdviceQueries {
		fmt.Fprintf(&sb, "  %s\n", q)
	}
	sb.WriteString("instance_queries:\n")
	for _, q := range p.InstanceQueries {
		fmt.Fprintf(&sb, "  %s\n", q)
	}
	sb.WriteString("fixed_queries:\n")
	for _, q := range p.FixedQueries {
		fmt.Fprintf(&sb, "  %s\n", q)
	}
	sb.WriteString("permutation:\n")
	for _, c := range p.Permutation {
		fmt.Fprintf(&sb, "  %s\n", c)
	}
	fmt.Fprintf(&sb, "minimum_degree: %d\n", p.MinimumDegree)
	return sb.String()
}
