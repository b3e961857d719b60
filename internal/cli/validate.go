package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/revlog/revlog/internal/mapping"
)

// MappingError is the serializable form of one mapping load error.
type MappingError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Entities []string       `json:"entities,omitempty"`
	Errors   []MappingError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <mappings-dir>",
		Short: "Validate entity mappings",
		Long: `Validate CUE entity mappings without opening a database.

Checks mapping syntax, required properties, relation targets, and registry
consistency (parents, mapped_by columns, inverse sides).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, mappingsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := mapping.LoadMappings(mappingsDir, mapping.LoadModeCollectAll)

	// Directory-level failures (missing dir, no files) carry no result.
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *mapping.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
		}
		_ = formatter.Error(mapping.ErrCodeGeneric, loadErrors[0].Error(), nil)
		return NewExitError(ExitCommandError, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, mappingsDir)

	if len(loadErrors) > 0 {
		return outputMappingErrors(formatter, loadErrors)
	}

	entities := loadResult.Registry.EntityNames()
	formatter.VerboseLog("Compiled %d entity binding(s)", len(entities))

	return outputValidateSuccess(formatter, entities)
}

// toMappingErrors converts load errors to their serializable form.
func toMappingErrors(errs []error) []MappingError {
	out := make([]MappingError, 0, len(errs))
	for _, err := range errs {
		var loadErr *mapping.LoadError
		if errors.As(err, &loadErr) {
			me := MappingError{Code: loadErr.Code, Message: loadErr.Message}
			if loadErr.Pos.IsValid() {
				me.Line = loadErr.Pos.Line()
			}
			out = append(out, me)
			continue
		}
		out = append(out, MappingError{Code: mapping.ErrCodeGeneric, Message: err.Error()})
	}
	return out
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, entities []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Entities: entities})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d entity mapping(s) valid\n", len(entities))
	for _, name := range entities {
		fmt.Fprintf(formatter.Writer, "  %s\n", name)
	}
	return nil
}

// outputMappingErrors outputs the collected mapping errors.
func outputMappingErrors(formatter *OutputFormatter, errs []error) error {
	mappingErrs := toMappingErrors(errs)

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: mappingErrs},
			Error: &CLIError{
				Code:    mappingErrs[0].Code,
				Message: mappingErrs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(mappingErrs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, me := range mappingErrs {
		if me.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", me.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", me.Code, me.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(mappingErrs)))
}
