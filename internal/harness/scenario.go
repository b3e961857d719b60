package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a session through collection mutations and assert on the
// resulting work-unit queue and flushed audit rows.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mappings is the directory of CUE mapping files, relative to the
	// scenario file location.
	Mappings string `yaml:"mappings"`

	// Token is the fixed transaction token, for deterministic golden
	// comparison. Defaults to "tx-test" when empty.
	Token string `yaml:"token,omitempty"`

	// NoTransaction skips beginning a transaction; mutations are then
	// expected to fail the transaction-liveness precondition.
	NoTransaction bool `yaml:"no_transaction,omitempty"`

	// Setup attaches entities and tracks collections before mutations run.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Mutations is the ordered list of collection mutation events.
	Mutations []MutationStep `yaml:"mutations"`

	// Commit flushes the transaction after all mutations.
	Commit bool `yaml:"commit,omitempty"`

	// Assertions validate the captured units, rows, and revision.
	// Supported types: unit_count, row_count, revision, error_code
	Assertions []Assertion `yaml:"assertions"`
}

// SetupStep prepares session state. Exactly one field must be set.
type SetupStep struct {
	// Attach makes an entity managed in the session.
	Attach *AttachStep `yaml:"attach,omitempty"`

	// Track registers collection tracking metadata.
	Track *TrackStep `yaml:"track,omitempty"`
}

// AttachStep identifies an entity to attach.
type AttachStep struct {
	Entity string `yaml:"entity"`
	ID     string `yaml:"id"`
}

// TrackStep identifies a collection instance to track.
type TrackStep struct {
	Role    string `yaml:"role"`
	OwnerID string `yaml:"owner_id"`
}

// MutationStep is one collection mutation event.
type MutationStep struct {
	// Role is the declared collection role, e.g. "Order.items".
	Role string `yaml:"role"`

	// OwnerEntity is the runtime type of the owner; defaults to the role's
	// declaring entity.
	OwnerEntity string `yaml:"owner_entity,omitempty"`

	// OwnerID is the owning entity's identity.
	OwnerID string `yaml:"owner_id"`

	// Old and New are the pre- and post-mutation collection snapshots.
	Old []ElementSpec `yaml:"old"`
	New []ElementSpec `yaml:"new"`

	// ExpectError is the expected audit error code for this mutation
	// (e.g. "TX_NOT_ACTIVE"). Empty means the mutation must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ElementSpec is one collection element: either a related entity
// (entity/id/fields) or a plain value.
type ElementSpec struct {
	Entity string         `yaml:"entity,omitempty"`
	ID     string         `yaml:"id,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`
	Value  any            `yaml:"value,omitempty"`
}

// Assertion validates the execution outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "unit_count": number of effective units in the queue
	// - "row_count": number of audit rows handed to the writer
	// - "revision": revision number assigned at commit
	// - "error_code": an audit error with this code was observed
	Type string `yaml:"type"`

	// Count is the expected value (unit_count, row_count).
	Count int `yaml:"count,omitempty"`

	// Revision is the expected revision number (revision).
	Revision int64 `yaml:"revision,omitempty"`

	// Code is the expected audit error code (error_code).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertUnitCount = "unit_count"
	AssertRowCount  = "row_count"
	AssertRevision  = "revision"
	AssertErrorCode = "error_code"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like
	// "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate required fields
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Mappings == "" {
		return fmt.Errorf("mappings directory is required")
	}

	if len(s.Mutations) == 0 {
		return fmt.Errorf("mutations list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	// Validate setup steps (if present)
	for i, step := range s.Setup {
		switch {
		case step.Attach != nil && step.Track != nil:
			return fmt.Errorf("setup[%d]: attach and track are mutually exclusive", i)
		case step.Attach != nil:
			if step.Attach.Entity == "" || step.Attach.ID == "" {
				return fmt.Errorf("setup[%d].attach: entity and id are required", i)
			}
		case step.Track != nil:
			if step.Track.Role == "" || step.Track.OwnerID == "" {
				return fmt.Errorf("setup[%d].track: role and owner_id are required", i)
			}
		default:
			return fmt.Errorf("setup[%d]: attach or track is required", i)
		}
	}

	// Validate mutations
	for i, m := range s.Mutations {
		if m.Role == "" {
			return fmt.Errorf("mutations[%d]: role is required", i)
		}
		if m.OwnerID == "" {
			return fmt.Errorf("mutations[%d]: owner_id is required", i)
		}
		for j, el := range m.Old {
			if err := validateElement(el); err != nil {
				return fmt.Errorf("mutations[%d].old[%d]: %w", i, j, err)
			}
		}
		for j, el := range m.New {
			if err := validateElement(el); err != nil {
				return fmt.Errorf("mutations[%d].new[%d]: %w", i, j, err)
			}
		}
	}

	// Validate assertions
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateElement checks that an element is either an entity or a value.
func validateElement(el ElementSpec) error {
	if el.Entity != "" {
		if el.ID == "" {
			return fmt.Errorf("entity element requires id")
		}
		if el.Value != nil {
			return fmt.Errorf("entity and value are mutually exclusive")
		}
		return nil
	}
	if el.Value == nil {
		return fmt.Errorf("element requires entity or value")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertUnitCount, AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertRevision:
		if a.Revision < 0 {
			return fmt.Errorf("assertions[%d]: revision must be non-negative", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
