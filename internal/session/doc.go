// Package session implements the unit-of-work session: the entity entry
// store tracking managed entity state, the persistence context, and the
// transaction boundary that owns one audit process end to end.
//
// A Session and its persistence context are exclusively owned by one
// execution context; only the mapping registry is shared across sessions,
// and it is immutable.
package session
