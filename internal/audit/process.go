package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/revlog/revlog/internal/state"
)

// Row is one audit-table row produced at flush. The row format on disk is
// the storage collaborator's concern; this is the wire contract between
// the process and its writer.
type Row struct {
	EntityName   string
	EntityID     string
	Property     string
	RevisionType RevisionType
	State        state.Object
	StateHash    string
}

// RevisionWriter persists a full revision - all rows of one transaction -
// in a single batched write. Implemented by the store package.
type RevisionWriter interface {
	// AppendRevision writes the revision rows atomically under the given
	// token and returns the assigned revision number.
	AppendRevision(ctx context.Context, token string, rows []Row) (int64, error)
}

// Process is the per-transaction ordered work-unit queue.
//
// Append-only during the transaction; units coalesce by (kind, entity,
// id, property) so repeated mutations of the same logical target collapse
// into the most recent payload at the earliest unit's queue position.
// Draining happens in insertion order and is idempotent: a queue drained
// once produces no further output if drained again, which protects
// against double-commit callbacks.
//
// A Process is owned by exactly one transaction and requires no locking.
type Process struct {
	opts    Options
	clock   *Clock
	units   []WorkUnit
	index   map[unitKey]int
	drained bool
}

type unitKey struct {
	kind     Kind
	entity   string
	id       string
	property string
}

// NewProcess creates an empty audit process for one transaction.
func NewProcess(opts Options) *Process {
	return &Process{
		opts:  opts,
		clock: NewClock(),
		index: make(map[unitKey]int),
	}
}

// Add enqueues a work unit, stamping it with the next logical-clock value.
// A unit whose coalescing key is already queued replaces the earlier
// payload in place, keeping the earlier queue position.
func (p *Process) Add(u WorkUnit) {
	if p.drained {
		// Late work after a drain indicates a listener firing outside the
		// owning transaction; treated as a fresh queue misuse upstream.
		return
	}

	stampSeq(u, p.clock.Next())

	key := keyOf(u)
	if pos, ok := p.index[key]; ok {
		p.units[pos] = u
		return
	}
	p.index[key] = len(p.units)
	p.units = append(p.units, u)
}

// Len returns the number of effective (coalesced) units queued.
func (p *Process) Len() int {
	return len(p.units)
}

// Units returns a copy of the effective unit sequence in insertion order.
// Used by the conformance harness to capture traces before flush.
func (p *Process) Units() []WorkUnit {
	out := make([]WorkUnit, len(p.units))
	copy(out, p.units)
	return out
}

// Flush drains the queue in insertion order, serializing each unit into
// one audit row and handing the full batch to the writer. Idempotent: a
// second call returns (0, nil) without output.
func (p *Process) Flush(ctx context.Context, token string, w RevisionWriter) (int64, error) {
	if p.drained {
		return 0, nil
	}

	rows := make([]Row, 0, len(p.units))
	for _, u := range p.units {
		if !u.ContainsWork() {
			continue
		}
		row, err := p.rowFor(u)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		// Nothing effective to write; no empty revisions.
		p.drained = true
		p.units = nil
		p.index = nil
		return 0, nil
	}

	rev, err := w.AppendRevision(ctx, token, rows)
	if err != nil {
		return 0, fmt.Errorf("flush audit process: %w", err)
	}

	p.drained = true
	p.units = nil
	p.index = nil

	slog.Debug("audit process flushed", "revision", rev, "rows", len(rows), "token", token)
	return rev, nil
}

// Discard drops the whole queue unflushed. Called on transaction rollback;
// partial work units must never become visible outside the owning
// transaction.
func (p *Process) Discard() {
	p.drained = true
	p.units = nil
	p.index = nil
}

// Drained reports whether the process has been flushed or discarded.
func (p *Process) Drained() bool {
	return p.drained
}

// rowFor serializes one unit into its audit row. The switch is exhaustive
// over the closed variant set; an unknown kind is a programming error.
func (p *Process) rowFor(u WorkUnit) (Row, error) {
	var (
		property string
		st       state.Object
	)

	switch unit := u.(type) {
	case *CollectionChangeUnit:
		property = unit.Property()
		st = state.Object{
			p.opts.RevisionFieldName: state.String(unit.RevisionType().String()),
			"changed_property":       state.String(unit.Property()),
		}

	case *PersistentCollectionChangeUnit:
		property = unit.Property()
		changes := make(state.Array, len(unit.Changes()))
		for i, ch := range unit.Changes() {
			changes[i] = ch.Data
		}
		st = state.Object{
			p.opts.RevisionFieldName: state.String(unit.RevisionType().String()),
			"changes":                changes,
		}

	case *FakeBidirectionalRelationUnit:
		property = unit.Relation().MappedBy
		st = state.Object{
			p.opts.RevisionFieldName: state.String(unit.RevisionType().String()),
			"index":                  state.Int(int64(unit.Index())),
			"owner_property":         state.String(unit.ReferencingProperty()),
			"owner_id":               state.String(unit.OwnerID()),
		}

	default:
		return Row{}, NewMisuseError("unknown work unit kind %T", u)
	}

	hash, err := state.Hash(st)
	if err != nil {
		return Row{}, fmt.Errorf("serialize work unit for %s#%s: %w", u.EntityName(), u.EntityID(), err)
	}

	return Row{
		EntityName:   u.EntityName(),
		EntityID:     u.EntityID(),
		Property:     property,
		RevisionType: u.RevisionType(),
		State:        st,
		StateHash:    hash,
	}, nil
}

// keyOf computes the coalescing key of a unit.
func keyOf(u WorkUnit) unitKey {
	key := unitKey{
		kind:   u.Kind(),
		entity: u.EntityName(),
		id:     u.EntityID(),
	}
	switch unit := u.(type) {
	case *CollectionChangeUnit:
		key.property = unit.Property()
	case *PersistentCollectionChangeUnit:
		key.property = unit.Property()
	case *FakeBidirectionalRelationUnit:
		key.property = unit.Relation().MappedBy
	}
	return key
}

// stampSeq assigns the logical-clock stamp to a unit.
func stampSeq(u WorkUnit, seq int64) {
	switch unit := u.(type) {
	case *CollectionChangeUnit:
		unit.seq = seq
	case *PersistentCollectionChangeUnit:
		unit.seq = seq
	case *FakeBidirectionalRelationUnit:
		unit.seq = seq
		if unit.nested != nil && unit.nested.seq == 0 {
			unit.nested.seq = seq
		}
	}
}
