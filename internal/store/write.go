package store

import (
	"context"
	"fmt"
	"time"

	"github.com/revlog/revlog/internal/audit"
)

// AppendRevision writes one revision - all audit rows of one committed
// transaction - atomically and returns the assigned revision number.
//
// Idempotency hangs on the token: ON CONFLICT(token) DO NOTHING claims the
// revision slot, and a conflicting append returns the existing revision
// number without touching its rows. A crash between the revision insert and
// the commit rolls the whole batch back, so a revision is either fully
// present or absent.
//
// AppendRevision implements audit.RevisionWriter.
func (s *Store) AppendRevision(ctx context.Context, token string, rows []audit.Row) (int64, error) {
	if token == "" {
		return 0, fmt.Errorf("append revision: empty token")
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("append revision: empty row set")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append revision: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Claim the revision slot; the token UNIQUE constraint arbitrates.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (token, committed_at)
		VALUES (?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("append revision: insert revision: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("append revision: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Conflict - this transaction was already appended, return the
		// existing revision number.
		var rev int64
		err = tx.QueryRowContext(ctx, `
			SELECT rev FROM revisions WHERE token = ?
		`, token).Scan(&rev)
		if err != nil {
			return 0, fmt.Errorf("append revision: select existing: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("append revision: commit (existing): %w", err)
		}
		return rev, nil
	}

	rev, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append revision: last insert id: %w", err)
	}

	for _, row := range rows {
		stateJSON, err := marshalState(row.State)
		if err != nil {
			return 0, fmt.Errorf("append revision: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO entity_revisions
			(rev, entity_name, entity_id, property, revtype, state, state_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(rev, entity_name, entity_id, property) DO NOTHING
		`,
			rev,
			row.EntityName,
			row.EntityID,
			row.Property,
			int(row.RevisionType),
			stateJSON,
			row.StateHash,
		)
		if err != nil {
			return 0, fmt.Errorf("append revision: insert row for %s#%s: %w", row.EntityName, row.EntityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append revision: commit: %w", err)
	}

	return rev, nil
}

// HasRevision checks whether a revision with the given token exists.
// Used for idempotency checks before re-driving a flush.
func (s *Store) HasRevision(ctx context.Context, token string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM revisions WHERE token = ?
	`, token).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check revision: %w", err)
	}
	return count > 0, nil
}
