// Package opticks resolves feature toggles and experiment variations for one
// active user identity and attribute context.
//
// A Resolver answers each query from, in order, operator forced overrides,
// memoized decisions and finally an injected Engine. Changing the identity or
// any attribute invalidates every memoized decision. Activation events fired
// by the engine are relayed to the callback passed to Initialize.
package opticks
