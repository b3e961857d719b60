// Package harness executes conformance scenarios against the session and
// audit layers.
//
// A scenario is a YAML file naming a CUE mapping directory, a fixed
// transaction token, setup steps, and an ordered list of collection
// mutations. The harness drives a real session through the mutations,
// captures the work-unit queue before flush and the audit rows at commit,
// and evaluates the scenario's assertions.
//
// Golden-file comparison (RunWithGolden) serializes the captured traces as
// RFC 8785 canonical JSON, so byte-for-byte equality is meaningful: fixed
// tokens, logical-clock sequence numbers, and sorted object keys leave
// nothing run-dependent in the output.
package harness
