package store

import (
	"path/filepath"
	"testing"

	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/state"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRow creates an audit row with a valid state hash.
func createTestRow(t *testing.T, entityName, entityID, property string, revType audit.RevisionType) audit.Row {
	t.Helper()

	st := state.Object{
		"revtype":          state.String(revType.String()),
		"changed_property": state.String(property),
	}
	hash, err := state.Hash(st)
	if err != nil {
		t.Fatalf("state.Hash() failed: %v", err)
	}

	return audit.Row{
		EntityName:   entityName,
		EntityID:     entityID,
		Property:     property,
		RevisionType: revType,
		State:        st,
		StateHash:    hash,
	}
}
