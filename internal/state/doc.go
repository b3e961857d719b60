// Package state defines the constrained value model used for entity state
// snapshots and audit rows, together with its canonical serialization.
//
// Audit rows must be byte-for-byte reproducible across processes and
// replays, so the value model is a closed set of deterministic types
// (no floats, no nulls in canonical output) and the only serialization
// used for persistence and hashing is RFC 8785 canonical JSON.
package state
