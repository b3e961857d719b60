// Package meta holds the static mapping metadata the audit core consults at
// runtime: entity bindings, relation descriptions, and the registry that
// resolves them across inheritance chains.
//
// The registry is built exactly once at bootstrap by a Builder and is
// immutable afterwards, so it is safe to share across concurrently running
// sessions without locking.
package meta
