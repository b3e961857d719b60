package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/revlog/revlog/internal/store"
)

// RevisionInfo is the serializable form of one revision header.
type RevisionInfo struct {
	Rev         int64  `json:"rev"`
	Token       string `json:"token"`
	CommittedAt string `json:"committed_at"`
	RowCount    int    `json:"row_count"`
}

// RevisionsResult holds the listed revision headers.
type RevisionsResult struct {
	Revisions []RevisionInfo `json:"revisions"`
}

// NewRevisionsCommand creates the revisions command.
func NewRevisionsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
		token  string
	)

	cmd := &cobra.Command{
		Use:   "revisions",
		Short: "List committed revisions",
		Long: `List committed revisions newest first: revision number, transaction
token, commit timestamp, and row count. With --token, look up the single
revision committed under that transaction token.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevisions(rootOpts, dbPath, limit, token, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the revision log database (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of revisions to list")
	cmd.Flags().StringVar(&token, "token", "", "look up one revision by transaction token")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRevisions(opts *RootOptions, dbPath string, limit int, token string, cmd *cobra.Command) error {
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

	var revisions []store.Revision
	if token != "" {
		rev, err := st.RevisionByToken(cmd.Context(), token)
		if err != nil {
			_ = formatter.Error("E002", err.Error(), nil)
			return WrapExitError(ExitCommandError, "looking up revision", err)
		}
		if rev == nil {
			_ = formatter.Error("E002", fmt.Sprintf("no revision with token %s", token), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("no revision with token %s", token))
		}
		revisions = []store.Revision{*rev}
	} else {
		revisions, err = st.Revisions(cmd.Context(), limit)
		if err != nil {
			_ = formatter.Error("E002", err.Error(), nil)
			return WrapExitError(ExitCommandError, "listing revisions", err)
		}
	}

	infos := make([]RevisionInfo, 0, len(revisions))
	for _, rev := range revisions {
		infos = append(infos, RevisionInfo{
			Rev:         rev.Rev,
			Token:       rev.Token,
			CommittedAt: rev.CommittedAt.UTC().Format(time.RFC3339Nano),
			RowCount:    rev.RowCount,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(RevisionsResult{Revisions: infos})
	}

	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "No revisions")
		return nil
	}

	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "rev %d [%s] %s (%d row(s))\n",
			info.Rev, info.Token, info.CommittedAt, info.RowCount)
	}
	return nil
}
