package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/revlog/revlog/internal/state"
)

// snapshotObject converts an execution result to the canonical-JSON object
// compared against golden files. Deterministic for identical inputs: fixed
// tokens, logical-clock seqs, and sorted keys leave nothing run-dependent.
func snapshotObject(scenario *Scenario, result *Result) state.Object {
	units := make(state.Array, len(result.Units))
	for i, u := range result.Units {
		units[i] = u
	}
	rows := make(state.Array, len(result.Rows))
	for i, r := range result.Rows {
		rows[i] = r
	}

	token := scenario.Token
	if token == "" {
		token = defaultToken
	}

	obj := state.Object{
		"scenario": state.String(scenario.Name),
		"token":    state.String(token),
		"revision": state.Int(result.Revision),
		"units":    units,
		"rows":     rows,
	}

	if len(result.ErrorCodes) > 0 {
		codes := make(state.Array, len(result.ErrorCodes))
		for i, c := range result.ErrorCodes {
			codes[i] = state.String(c)
		}
		obj["error_codes"] = codes
	}

	return obj
}

// RunWithGolden executes a scenario and compares the unit and row traces
// against a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, baseDir string) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, baseDir)
	if err != nil {
		return nil, err
	}

	traceJSON, err := state.MarshalCanonical(snapshotObject(scenario, result))
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
