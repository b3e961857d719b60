// Package audit implements the revision-audit core: the work-unit model,
// the per-transaction audit process queue, and the collection event
// listener that turns collection mutations into ordered work units.
//
// One Process exists per transaction and is owned by exactly one execution
// context end to end, so the queue needs no locking. All work-unit
// generation is synchronous and in-memory; the only blocking boundary is
// the batched flush through a RevisionWriter at commit.
package audit
