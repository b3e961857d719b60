package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// VerifyResult holds the integrity check outcome for one revision.
type VerifyResult struct {
	Rev   int64 `json:"rev"`
	Valid bool  `json:"valid"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "verify <rev>",
		Short: "Verify the integrity of one revision",
		Long: `Recompute the content hash of every row in a revision and compare it
against the stored hash. A mismatch means the serialized state was altered
after commit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rev, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid revision number %q", args[0]))
			}
			return runVerify(rootOpts, dbPath, rev, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the revision log database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runVerify(opts *RootOptions, dbPath string, rev int64, cmd *cobra.Command) error {
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

	if err := st.VerifyRevision(cmd.Context(), rev); err != nil {
		if formatter.Format == "json" {
			_ = formatter.Error("E002", err.Error(), VerifyResult{Rev: rev, Valid: false})
		} else {
			fmt.Fprintf(formatter.Writer, "✗ revision %d failed verification: %v\n", rev, err)
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("revision %d failed verification", rev), err)
	}

	if formatter.Format == "json" {
		return formatter.Success(VerifyResult{Rev: rev, Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ revision %d verified\n", rev)
	return nil
}
