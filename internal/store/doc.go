// Package store persists revision logs in SQLite.
//
// Each committed transaction that produced audit work becomes one revision:
// a header row carrying the transaction token plus one entity_revisions row
// per (entity, property) the transaction touched. State is stored as RFC
// 8785 canonical JSON alongside its domain-separated SHA-256 hash, so a
// revision's content can be verified byte for byte after the fact.
//
// The store is the concrete audit.RevisionWriter: AppendRevision writes a
// whole revision atomically, and the token UNIQUE constraint makes repeated
// appends of the same transaction idempotent.
package store
