package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/state"
)

// Revision is the header of one stored revision.
type Revision struct {
	Rev         int64
	Token       string
	CommittedAt time.Time
	RowCount    int
}

// Record is one stored audit row joined with its revision header.
type Record struct {
	Rev          int64
	Token        string
	EntityName   string
	EntityID     string
	Property     string
	RevisionType audit.RevisionType
	State        state.Object
	StateHash    string
}

// EntityHistory returns all audit rows for one entity across all revisions.
// Results are ordered deterministically: ORDER BY rev ASC, property ASC
// COLLATE BINARY.
//
// Returns an empty slice (not nil) if the entity has no history.
func (s *Store) EntityHistory(ctx context.Context, entityName, entityID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT er.rev, r.token, er.entity_name, er.entity_id, er.property, er.revtype, er.state, er.state_hash
		FROM entity_revisions er
		JOIN revisions r ON er.rev = r.rev
		WHERE er.entity_name = ? AND er.entity_id = ?
		ORDER BY er.rev ASC, er.property COLLATE BINARY ASC
	`, entityName, entityID)
	if err != nil {
		return nil, fmt.Errorf("query entity history: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("entity history: %w", err)
	}
	return records, nil
}

// RevisionRows returns all audit rows of one revision in deterministic
// order: ORDER BY entity_name, entity_id, property COLLATE BINARY.
func (s *Store) RevisionRows(ctx context.Context, rev int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT er.rev, r.token, er.entity_name, er.entity_id, er.property, er.revtype, er.state, er.state_hash
		FROM entity_revisions er
		JOIN revisions r ON er.rev = r.rev
		WHERE er.rev = ?
		ORDER BY er.entity_name COLLATE BINARY ASC,
		         er.entity_id COLLATE BINARY ASC,
		         er.property COLLATE BINARY ASC
	`, rev)
	if err != nil {
		return nil, fmt.Errorf("query revision rows: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("revision rows: %w", err)
	}
	return records, nil
}

// Revisions returns revision headers newest first. limit <= 0 means no
// limit.
func (s *Store) Revisions(ctx context.Context, limit int) ([]Revision, error) {
	query := `
		SELECT r.rev, r.token, r.committed_at, COUNT(er.id)
		FROM revisions r
		LEFT JOIN entity_revisions er ON er.rev = r.rev
		GROUP BY r.rev
		ORDER BY r.rev DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revisions := []Revision{}
	for rows.Next() {
		var (
			r           Revision
			committedAt string
		)
		if err := rows.Scan(&r.Rev, &r.Token, &committedAt, &r.RowCount); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.CommittedAt, err = time.Parse(time.RFC3339Nano, committedAt)
		if err != nil {
			return nil, fmt.Errorf("parse committed_at for rev %d: %w", r.Rev, err)
		}
		revisions = append(revisions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}

	return revisions, nil
}

// RevisionByToken returns the revision header for a transaction token.
// Returns (nil, nil) when no revision carries the token.
func (s *Store) RevisionByToken(ctx context.Context, token string) (*Revision, error) {
	var (
		r           Revision
		committedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT r.rev, r.token, r.committed_at, COUNT(er.id)
		FROM revisions r
		LEFT JOIN entity_revisions er ON er.rev = r.rev
		WHERE r.token = ?
		GROUP BY r.rev
	`, token).Scan(&r.Rev, &r.Token, &committedAt, &r.RowCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query revision by token: %w", err)
	}

	r.CommittedAt, err = time.Parse(time.RFC3339Nano, committedAt)
	if err != nil {
		return nil, fmt.Errorf("parse committed_at for rev %d: %w", r.Rev, err)
	}
	return &r, nil
}

// VerifyRevision recomputes the state hash of every row in a revision and
// compares it against the stored hash. Detects bit rot or out-of-band edits
// of the state column.
func (s *Store) VerifyRevision(ctx context.Context, rev int64) error {
	records, err := s.RevisionRows(ctx, rev)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("verify revision %d: no rows", rev)
	}

	for _, rec := range records {
		computed, err := state.Hash(rec.State)
		if err != nil {
			return fmt.Errorf("verify revision %d: hash %s#%s/%s: %w",
				rev, rec.EntityName, rec.EntityID, rec.Property, err)
		}
		if computed != rec.StateHash {
			return fmt.Errorf("verify revision %d: hash mismatch for %s#%s/%s",
				rev, rec.EntityName, rec.EntityID, rec.Property)
		}
	}
	return nil
}

// scanRecords drains a record query's rows. Always returns a non-nil slice.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		var (
			rec       Record
			revType   int
			stateJSON string
		)
		if err := rows.Scan(&rec.Rev, &rec.Token, &rec.EntityName, &rec.EntityID,
			&rec.Property, &revType, &stateJSON, &rec.StateHash); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		rec.RevisionType = audit.RevisionType(revType)

		st, err := unmarshalState(stateJSON)
		if err != nil {
			return nil, fmt.Errorf("record %s#%s: %w", rec.EntityName, rec.EntityID, err)
		}
		rec.State = st

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
