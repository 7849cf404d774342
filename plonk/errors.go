package plonk

import "errors"

// ErrKindMismatch is returned when narrowing a kind-erased column handle to
// a kind it does not hold.
var ErrKindMismatch = errors.New("column kind mismatch")
