package session

import (
	"context"
	"log/slog"

	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/meta"
	"github.com/revlog/revlog/internal/state"
)

// EntityNamed is implemented by live objects that can report their own
// entity type name. The default type resolver uses it.
type EntityNamed interface {
	EntityTypeName() string
}

// TypeResolver resolves the runtime entity type name of a live object.
// The runtime type may be a subtype of a statically declared relation
// target; the session core never inspects object internals itself.
type TypeResolver interface {
	BestGuessEntityName(obj any) (string, error)
}

// Session is one unit of work: it owns a persistence context, at most one
// active transaction, and that transaction's audit process.
//
// A session is owned by exactly one execution context end to end and is
// not safe for concurrent use. Only the mapping registry it reads is
// shared, and that is immutable.
type Session struct {
	registry *meta.Registry
	opts     audit.Options
	pc       *PersistenceContext
	listener *audit.CollectionListener
	writer   audit.RevisionWriter
	resolver TypeResolver
	tokens   TokenGenerator

	process  *audit.Process
	txActive bool
	txToken  string
	closed   bool
}

// Option configures a Session.
type Option func(*Session)

// WithTypeResolver injects a runtime type resolver. Without one, objects
// must implement EntityNamed.
func WithTypeResolver(r TypeResolver) Option {
	return func(s *Session) { s.resolver = r }
}

// WithTokenGenerator injects a transaction token generator; tests use
// FixedGenerator for deterministic tokens.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Session) { s.tokens = g }
}

// New creates a session over the given mapping registry, audit options,
// and revision writer.
func New(registry *meta.Registry, opts audit.Options, writer audit.RevisionWriter, options ...Option) *Session {
	s := &Session{
		registry: registry,
		opts:     opts,
		pc:       newPersistenceContext(registry),
		listener: audit.NewCollectionListener(registry, opts),
		writer:   writer,
		tokens:   UUIDv7Generator{},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Context returns the session's persistence context.
func (s *Session) Context() *PersistenceContext {
	return s.pc
}

// Begin starts a transaction with a fresh audit process.
func (s *Session) Begin() error {
	if s.closed {
		return audit.NewMisuseError("begin on closed session")
	}
	if s.txActive {
		return audit.NewMisuseError("transaction already active (token %s)", s.txToken)
	}
	s.process = audit.NewProcess(s.opts)
	s.txToken = s.tokens.Generate()
	s.txActive = true
	return nil
}

// TransactionActive implements audit.SessionState.
func (s *Session) TransactionActive() bool {
	return s.txActive
}

// Token returns the active transaction token, "" outside a transaction.
func (s *Session) Token() string {
	if !s.txActive {
		return ""
	}
	return s.txToken
}

// Process returns the active transaction's audit process, nil outside a
// transaction.
func (s *Session) Process() *audit.Process {
	if !s.txActive {
		return nil
	}
	return s.process
}

// BestGuessEntityName implements audit.SessionState: injected resolver
// first, then the object's own EntityNamed capability.
func (s *Session) BestGuessEntityName(obj any) (string, error) {
	if s.resolver != nil {
		return s.resolver.BestGuessEntityName(obj)
	}
	if named, ok := obj.(EntityNamed); ok {
		return named.EntityTypeName(), nil
	}
	return "", audit.NewMisuseError("cannot resolve runtime entity type of %T", obj)
}

// Attach makes an existing (database-backed) entity managed.
func (s *Session) Attach(entityName, id string, loadedState []state.Value, version state.Value) (*EntityEntry, error) {
	return s.pc.AddEntity(entityName, id, StatusManaged, loadedState, version, true)
}

// AttachTransient makes a new (not yet inserted) entity managed in the
// saving state.
func (s *Session) AttachTransient(entityName, id string) (*EntityEntry, error) {
	return s.pc.AddEntity(entityName, id, StatusSaving, nil, nil, false)
}

// Evict removes an entity from the persistence context.
func (s *Session) Evict(entityName, id string) {
	s.pc.EvictEntity(EntityKey{EntityName: entityName, ID: id})
}

// TrackCollection registers tracking metadata for a collection instance
// owned by the identified entity.
func (s *Session) TrackCollection(role, ownerID string) error {
	_, err := s.pc.AddCollection(role, ownerID)
	return err
}

// OnCollectionChange dispatches one collection mutation event to the
// audit listener. The declaring owner name comes from the persistence
// context's collection tracking when available, falling back to the role
// string.
func (s *Session) OnCollectionChange(ev audit.CollectionEvent) error {
	if ev.DeclaredOwnerName == "" {
		if ce := s.pc.CollectionEntryFor(ev.Role, ev.OwnerID); ce != nil {
			ev.DeclaredOwnerName = ce.DeclaredOwnerName
		} else {
			declaring, _, err := meta.SplitRole(ev.Role)
			if err != nil {
				return audit.NewUnsupportedMappingError(ev.OwnerEntityName, ev.Role, err.Error())
			}
			ev.DeclaredOwnerName = declaring
		}
	}

	proc := s.process
	if proc == nil {
		// No transaction was ever begun; hand the listener an empty
		// process so the precondition check raises the canonical error.
		proc = audit.NewProcess(s.opts)
	}
	return s.listener.OnCollectionChange(s, proc, ev)
}

// Commit flushes the audit process and ends the transaction. A failed
// flush leaves the transaction open; the caller is expected to roll back.
func (s *Session) Commit(ctx context.Context) (int64, error) {
	if !s.txActive {
		return 0, audit.NewMisuseError("commit without active transaction")
	}

	rev, err := s.process.Flush(ctx, s.txToken, s.writer)
	if err != nil {
		return 0, err
	}

	s.txActive = false
	if rev > 0 {
		slog.Debug("transaction committed", "revision", rev, "token", s.txToken)
	}
	return rev, nil
}

// Rollback discards the transaction's audit process unflushed.
func (s *Session) Rollback() {
	if !s.txActive {
		return
	}
	s.process.Discard()
	s.txActive = false
}

// Close rolls back any active transaction and clears the persistence
// context. The session must not be used afterwards.
func (s *Session) Close() {
	s.Rollback()
	s.pc.Clear()
	s.closed = true
}
