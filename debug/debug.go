//go:build !debug

package debug

// Debug reports whether the module was built with the debug tag. Expensive
// internal consistency checks (e.g. the permutation bijection sweep) always
// run at key generation; Debug only gates extra logging.
const Debug = false
