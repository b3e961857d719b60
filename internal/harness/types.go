package harness

import "github.com/revlog/revlog/internal/state"

// EntityObject is the live-object stand-in used by scenarios: a typed,
// identified bag of fields. It satisfies both the session's runtime type
// resolution and the mapping layer's identity resolution.
type EntityObject struct {
	Entity string
	ID     string
	Fields map[string]any
}

// EntityTypeName implements session.EntityNamed.
func (o *EntityObject) EntityTypeName() string { return o.Entity }

// EntityID implements mapping.Identifiable.
func (o *EntityObject) EntityID() string { return o.ID }

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Units holds the serialized work-unit trace captured after the last
	// mutation and before commit, in queue order.
	Units []state.Object `json:"units"`

	// Rows holds the serialized audit rows the writer received at commit.
	Rows []state.Object `json:"rows"`

	// Revision is the revision number assigned at commit, 0 when nothing
	// was written.
	Revision int64 `json:"revision"`

	// ErrorCodes lists the audit error codes observed during mutations, in
	// order. Expected errors land here, not in Errors.
	ErrorCodes []string `json:"error_codes,omitempty"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Units:  []state.Object{},
		Rows:   []state.Object{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
