package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario drops a scenario YAML into a temp dir and returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validScenarioYAML = `
name: test-scenario
description: exercises loading
mappings: mappings/orders
mutations:
  - role: Order.tags
    owner_id: order-1
    old: []
    new:
      - value: red
assertions:
  - type: unit_count
    count: 1
`

func TestLoadScenarioValid(t *testing.T) {
	path := writeScenario(t, validScenarioYAML)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test-scenario", s.Name)
	assert.Equal(t, "mappings/orders", s.Mappings)
	require.Len(t, s.Mutations, 1)
	assert.Equal(t, "Order.tags", s.Mutations[0].Role)
	require.Len(t, s.Mutations[0].New, 1)
	assert.Equal(t, "red", s.Mutations[0].New[0].Value)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestLoadScenarioUnknownField(t *testing.T) {
	// "assertion" (singular) is a typo and must be rejected.
	path := writeScenario(t, `
name: typo
description: typo test
mappings: mappings/orders
mutations:
  - role: Order.tags
    owner_id: order-1
    old: []
    new: [{value: red}]
assertion:
  - type: unit_count
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenarioMissingName(t *testing.T) {
	path := writeScenario(t, `
description: no name
mappings: mappings/orders
mutations:
  - role: Order.tags
    owner_id: order-1
    old: []
    new: [{value: red}]
assertions:
  - type: unit_count
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenarioMissingMutations(t *testing.T) {
	path := writeScenario(t, `
name: empty
description: no mutations
mappings: mappings/orders
assertions:
  - type: unit_count
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutations list is required")
}

func TestLoadScenarioElementValidation(t *testing.T) {
	// Entity element without id.
	path := writeScenario(t, `
name: bad-element
description: element without id
mappings: mappings/orders
mutations:
  - role: Order.items
    owner_id: order-1
    old: []
    new:
      - entity: OrderLine
assertions:
  - type: unit_count
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity element requires id")
}

func TestLoadScenarioSetupValidation(t *testing.T) {
	path := writeScenario(t, `
name: bad-setup
description: empty setup step
mappings: mappings/orders
setup:
  - {}
mutations:
  - role: Order.tags
    owner_id: order-1
    old: []
    new: [{value: red}]
assertions:
  - type: unit_count
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attach or track is required")
}

func TestLoadScenarioUnknownAssertionType(t *testing.T) {
	path := writeScenario(t, `
name: bad-assert
description: unknown assertion
mappings: mappings/orders
mutations:
  - role: Order.tags
    owner_id: order-1
    old: []
    new: [{value: red}]
assertions:
  - type: trace_contains
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

func TestLoadScenarioErrorCodeAssertionRequiresCode(t *testing.T) {
	path := writeScenario(t, `
name: bad-assert
description: error_code without code
mappings: mappings/orders
mutations:
  - role: Order.tags
    owner_id: order-1
    old: []
    new: [{value: red}]
assertions:
  - type: error_code
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code is required")
}

func TestLoadScenarioTestdataFiles(t *testing.T) {
	// Every checked-in scenario must load cleanly.
	matches, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	for _, path := range matches {
		s, err := LoadScenario(path)
		require.NoError(t, err, "scenario %s", path)
		assert.NotEmpty(t, s.Name)
	}
}
