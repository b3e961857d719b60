package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/mapping"
	"github.com/revlog/revlog/internal/meta"
	"github.com/revlog/revlog/internal/session"
	"github.com/revlog/revlog/internal/state"
)

// defaultToken is used when the scenario does not fix a transaction token.
const defaultToken = "tx-test"

// Run executes a scenario against an in-memory revision writer.
// The mappings path is resolved relative to baseDir.
//
// Returns an error only for harness-level failures (unloadable mappings,
// malformed elements). Semantic mismatches - unexpected mutation errors,
// failed assertions - land in the result's Errors list with Pass=false.
func Run(scenario *Scenario, baseDir string) (*Result, error) {
	return RunWithWriter(scenario, baseDir, nil)
}

// RunWithWriter is Run with an explicit revision writer, e.g. a sqlite
// store. A nil writer uses the in-memory default.
func RunWithWriter(scenario *Scenario, baseDir string, writer audit.RevisionWriter) (*Result, error) {
	mappingsDir := scenario.Mappings
	if !filepath.IsAbs(mappingsDir) {
		mappingsDir = filepath.Join(baseDir, mappingsDir)
	}

	loaded, errs := mapping.LoadMappings(mappingsDir, mapping.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("load mappings: %w", errs[0])
	}

	if writer == nil {
		writer = newMemoryWriter()
	}
	recorder := &recordingWriter{inner: writer}

	token := scenario.Token
	if token == "" {
		token = defaultToken
	}

	sess := session.New(loaded.Registry, loaded.Options, recorder,
		session.WithTokenGenerator(session.NewFixedGenerator(token)))
	defer sess.Close()

	result := NewResult()

	if !scenario.NoTransaction {
		if err := sess.Begin(); err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
	}

	if err := runSetup(sess, scenario); err != nil {
		return nil, err
	}

	for i, m := range scenario.Mutations {
		if err := runMutation(sess, loaded.Registry, &m, result); err != nil {
			return nil, fmt.Errorf("mutations[%d]: %w", i, err)
		}
	}

	// Capture the unit trace before flush; the queue drains at commit.
	if proc := sess.Process(); proc != nil {
		for _, u := range proc.Units() {
			result.Units = append(result.Units, audit.TraceObject(u))
		}
	}

	if scenario.Commit && !scenario.NoTransaction {
		rev, err := sess.Commit(context.Background())
		if err != nil {
			result.AddError(fmt.Sprintf("commit: %v", err))
		} else {
			result.Revision = rev
			for _, row := range recorder.rows {
				result.Rows = append(result.Rows, rowTrace(row))
			}
		}
	}

	evaluateAssertions(scenario, result)
	return result, nil
}

// runSetup attaches entities and tracks collections.
func runSetup(sess *session.Session, scenario *Scenario) error {
	for i, step := range scenario.Setup {
		switch {
		case step.Attach != nil:
			if _, err := sess.Attach(step.Attach.Entity, step.Attach.ID, nil, nil); err != nil {
				return fmt.Errorf("setup[%d] attach %s#%s: %w", i, step.Attach.Entity, step.Attach.ID, err)
			}
		case step.Track != nil:
			if err := sess.TrackCollection(step.Track.Role, step.Track.OwnerID); err != nil {
				return fmt.Errorf("setup[%d] track %s: %w", i, step.Track.Role, err)
			}
		}
	}
	return nil
}

// runMutation fires one collection mutation event and reconciles the
// outcome against the step's error expectation.
func runMutation(sess *session.Session, registry *meta.Registry, m *MutationStep, result *Result) error {
	declared, _, err := meta.SplitRole(m.Role)
	if err != nil {
		return fmt.Errorf("role %q: %w", m.Role, err)
	}

	ownerEntity := m.OwnerEntity
	if ownerEntity == "" {
		ownerEntity = declared
	}

	oldSnap, err := buildSnapshot(registry, m.Old)
	if err != nil {
		return fmt.Errorf("old snapshot: %w", err)
	}
	newSnap, err := buildSnapshot(registry, m.New)
	if err != nil {
		return fmt.Errorf("new snapshot: %w", err)
	}

	ev := audit.CollectionEvent{
		Role:              m.Role,
		DeclaredOwnerName: declared,
		OwnerEntityName:   ownerEntity,
		OwnerID:           m.OwnerID,
		Owner:             &EntityObject{Entity: ownerEntity, ID: m.OwnerID},
		OldSnapshot:       oldSnap,
		NewSnapshot:       newSnap,
	}

	mutErr := sess.OnCollectionChange(ev)

	if m.ExpectError == "" {
		if mutErr != nil {
			result.AddError(fmt.Sprintf("mutation %s: unexpected error: %v", m.Role, mutErr))
		}
		return nil
	}

	var auditErr *audit.Error
	if mutErr == nil || !errors.As(mutErr, &auditErr) {
		result.AddError(fmt.Sprintf("mutation %s: expected %s error, got %v", m.Role, m.ExpectError, mutErr))
		return nil
	}
	if string(auditErr.Code) != m.ExpectError {
		result.AddError(fmt.Sprintf("mutation %s: expected %s error, got %s", m.Role, m.ExpectError, auditErr.Code))
		return nil
	}
	result.ErrorCodes = append(result.ErrorCodes, string(auditErr.Code))
	return nil
}

// buildSnapshot converts element specs to audit elements.
func buildSnapshot(registry *meta.Registry, specs []ElementSpec) ([]audit.Element, error) {
	elements := make([]audit.Element, 0, len(specs))
	for i, spec := range specs {
		el, err := buildElement(registry, spec)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		elements = append(elements, el)
	}
	return elements, nil
}

// buildElement converts one element spec: entity elements carry both a live
// object and serialized state, value elements only serialized state.
func buildElement(registry *meta.Registry, spec ElementSpec) (audit.Element, error) {
	if spec.Entity != "" {
		binding, ok := registry.Binding(spec.Entity)
		if !ok {
			return audit.Element{}, fmt.Errorf("element entity %q is not bound", spec.Entity)
		}

		fields := map[string]any{binding.IDProperty: spec.ID}
		for k, v := range spec.Fields {
			fields[k] = v
		}

		val, err := state.ToValue(fields)
		if err != nil {
			return audit.Element{}, fmt.Errorf("element %s#%s state: %w", spec.Entity, spec.ID, err)
		}

		return audit.Element{
			Object: &EntityObject{Entity: spec.Entity, ID: spec.ID, Fields: fields},
			Value:  val,
		}, nil
	}

	val, err := state.ToValue(spec.Value)
	if err != nil {
		return audit.Element{}, fmt.Errorf("value element: %w", err)
	}
	return audit.Element{Value: val}, nil
}

// rowTrace serializes one flushed audit row for golden comparison.
func rowTrace(row audit.Row) state.Object {
	return state.Object{
		"entity":     state.String(row.EntityName),
		"id":         state.String(row.EntityID),
		"property":   state.String(row.Property),
		"rev_type":   state.String(row.RevisionType.String()),
		"state":      row.State,
		"state_hash": state.String(row.StateHash),
	}
}

// evaluateAssertions checks the scenario's assertions against the result.
func evaluateAssertions(scenario *Scenario, result *Result) {
	for i, a := range scenario.Assertions {
		switch a.Type {
		case AssertUnitCount:
			if len(result.Units) != a.Count {
				result.AddError(fmt.Sprintf("assertions[%d]: unit count = %d, want %d", i, len(result.Units), a.Count))
			}
		case AssertRowCount:
			if len(result.Rows) != a.Count {
				result.AddError(fmt.Sprintf("assertions[%d]: row count = %d, want %d", i, len(result.Rows), a.Count))
			}
		case AssertRevision:
			if result.Revision != a.Revision {
				result.AddError(fmt.Sprintf("assertions[%d]: revision = %d, want %d", i, result.Revision, a.Revision))
			}
		case AssertErrorCode:
			found := false
			for _, code := range result.ErrorCodes {
				if code == a.Code {
					found = true
					break
				}
			}
			if !found {
				result.AddError(fmt.Sprintf("assertions[%d]: error code %s not observed (got %v)", i, a.Code, result.ErrorCodes))
			}
		}
	}
}

// memoryWriter assigns sequential revision numbers without persistence.
// Idempotent per token like the sqlite store.
type memoryWriter struct {
	revs map[string]int64
	next int64
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{revs: make(map[string]int64)}
}

// AppendRevision implements audit.RevisionWriter.
func (w *memoryWriter) AppendRevision(_ context.Context, token string, _ []audit.Row) (int64, error) {
	if rev, ok := w.revs[token]; ok {
		return rev, nil
	}
	w.next++
	w.revs[token] = w.next
	return w.next, nil
}

// recordingWriter tees the flushed rows for trace capture.
type recordingWriter struct {
	inner audit.RevisionWriter
	rows  []audit.Row
}

// AppendRevision implements audit.RevisionWriter.
func (w *recordingWriter) AppendRevision(ctx context.Context, token string, rows []audit.Row) (int64, error) {
	rev, err := w.inner.AppendRevision(ctx, token, rows)
	if err != nil {
		return 0, err
	}
	w.rows = append(w.rows, rows...)
	return rev, nil
}
