package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/revlog/revlog/internal/state"
	"github.com/revlog/revlog/internal/store"
)

// HistoryRow is the serializable form of one audit row.
type HistoryRow struct {
	Rev       int64           `json:"rev"`
	Token     string          `json:"token"`
	Entity    string          `json:"entity"`
	ID        string          `json:"id"`
	Property  string          `json:"property"`
	RevType   string          `json:"rev_type"`
	State     json.RawMessage `json:"state"`
	StateHash string          `json:"state_hash"`
}

// HistoryResult holds one entity's full audit history.
type HistoryResult struct {
	Entity string       `json:"entity"`
	ID     string       `json:"id"`
	Rows   []HistoryRow `json:"rows"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history <entity> <id>",
		Short: "Show the audit history of one entity",
		Long: `Show every audit row recorded for one entity, oldest revision first.

Each row carries the revision number, transaction token, changed property,
revision type, and the canonical change payload with its content hash.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, dbPath, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the revision log database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *RootOptions, dbPath, entityName, entityID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openStore(formatter, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.EntityHistory(cmd.Context(), entityName, entityID)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading entity history", err)
	}

	formatter.VerboseLog("Found %d audit row(s) for %s#%s", len(records), entityName, entityID)

	rows, err := toHistoryRows(records)
	if err != nil {
		return WrapExitError(ExitCommandError, "serializing audit rows", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(HistoryResult{Entity: entityName, ID: entityID, Rows: rows})
	}

	if len(rows) == 0 {
		fmt.Fprintf(formatter.Writer, "No history for %s#%s\n", entityName, entityID)
		return nil
	}

	for _, row := range rows {
		fmt.Fprintf(formatter.Writer, "rev %d [%s] %s %s.%s\n  %s\n",
			row.Rev, row.Token, row.RevType, row.Entity, row.Property, row.State)
	}
	return nil
}

// openStore opens the sqlite store, mapping a missing file to a command
// error instead of creating an empty database.
func openStore(formatter *OutputFormatter, dbPath string) (*store.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error("E002", fmt.Sprintf("database not found: %s", dbPath), nil)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", dbPath))
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error("E002", err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "opening database", err)
	}
	return st, nil
}

// toHistoryRows converts store records to their serializable form.
func toHistoryRows(records []store.Record) ([]HistoryRow, error) {
	rows := make([]HistoryRow, 0, len(records))
	for _, rec := range records {
		payload, err := state.MarshalCanonical(rec.State)
		if err != nil {
			return nil, fmt.Errorf("row for %s#%s: %w", rec.EntityName, rec.EntityID, err)
		}
		rows = append(rows, HistoryRow{
			Rev:       rec.Rev,
			Token:     rec.Token,
			Entity:    rec.EntityName,
			ID:        rec.EntityID,
			Property:  rec.Property,
			RevType:   rec.RevisionType.String(),
			State:     json.RawMessage(payload),
			StateHash: rec.StateHash,
		})
	}
	return rows, nil
}
