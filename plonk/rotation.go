package plonk

// Rotation is a signed row offset at which a column is queried, relative to
// the "current" row of a constraint: 0 is the current row, 1 the next, -1
// the previous. Rotations wrap around the evaluation domain.
type Rotation int32

// RotationCur returns the rotation querying the current row.
func RotationCur() Rotation { return 0 }

// RotationNext returns the rotation querying the next row.
func RotationNext() Rotation { return 1 }

// RotationPrev returns the rotation querying the previous row.
func RotationPrev() Rotation { return -1 }
