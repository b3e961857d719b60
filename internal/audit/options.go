package audit

// Options holds the audit configuration surface consumed by the listener
// and the process queue.
type Options struct {
	// RevisionOnCollectionChange controls whether a modification of a
	// not-owned relation field triggers a new revision for the owner.
	RevisionOnCollectionChange bool

	// RevisionFieldName is the property name used to tag the revision type
	// inside serialized change payloads.
	RevisionFieldName string

	// AuditTableSuffix is appended to an entity's table name to form its
	// audit table name.
	AuditTableSuffix string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		RevisionOnCollectionChange: true,
		RevisionFieldName:          "revtype",
		AuditTableSuffix:           "_aud",
	}
}
