package mapping

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/revlog/revlog/internal/audit"
	"github.com/revlog/revlog/internal/meta"
)

// LoadMode controls how errors are handled during mapping loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading mappings from a directory.
type LoadResult struct {
	Registry  *meta.Registry
	Options   audit.Options
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during mapping loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadMappings loads and compiles CUE entity mappings from a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
//
// Registry construction happens only when every entity compiled cleanly;
// with collected errors the result carries a nil Registry.
func LoadMappings(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("mappings directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing mappings directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	// Find CUE files
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	// Load CUE instances
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	// Check for load errors
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	// Build value from instance
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	// Parse audit options
	opts, optErr := CompileOptions(value.LookupPath(cue.ParsePath("options")))
	if optErr != nil {
		errs = append(errs, convertCompileError(optErr, "options"))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}
	result.Options = opts

	// Extract entities
	builder := meta.NewBuilder()
	entityCount := 0
	entitiesVal := value.LookupPath(cue.ParsePath("entity"))
	if entitiesVal.Exists() {
		iter, iterErr := entitiesVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating entities: %v", iterErr)})
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			for iter.Next() {
				binding, compileErr := CompileEntity(iter.Value())
				if compileErr != nil {
					loadErr := convertCompileError(compileErr, "entity."+iter.Label())
					errs = append(errs, loadErr)
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				builder.Add(binding)
				entityCount++
			}
		}
	}

	if entityCount == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no entities found in mappings"})
	}

	// Cross-entity validation (parents, relation targets, mapped_by) happens
	// in the registry build.
	if len(errs) == 0 {
		registry, buildErr := builder.Build()
		if buildErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeRegistryBuild, Message: buildErr.Error()})
		} else {
			result.Registry = registry
		}
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeRegistryBuild = "E007" // Registry build (cross-entity) error

	// Entity validation errors
	ErrCodeEntityID       = "E101" // Missing id property
	ErrCodeEntityProps    = "E102" // Bad property list
	ErrCodeRelationTarget = "E103" // Missing relation target
	ErrCodeRelationShape  = "E104" // Unsupported relation shape (kind/key/mapped_by)
	ErrCodeOptions        = "E111" // Bad audit options
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "id":
		return ErrCodeEntityID
	case "properties":
		return ErrCodeEntityProps
	case "revision_field", "table_suffix", "revision_on_collection_change":
		return ErrCodeOptions
	}
	// Property type errors carry the property name in the field path.
	if strings.HasPrefix(field, "property.") {
		return ErrCodeEntityProps
	}
	// Relation errors carry the property name in the field path.
	if strings.HasPrefix(field, "relation.") {
		if strings.HasSuffix(field, ".target") {
			return ErrCodeRelationTarget
		}
		return ErrCodeRelationShape
	}
	return ErrCodeGeneric
}
