// Package harness provides a conformance testing framework for desflat.
//
// A scenario is a YAML file naming a model, an optional grouping and the
// outcome the elaborator must produce:
//
//	name: shared_event
//	description: "Borrowed events resolve to their owner"
//	model_file: models/shared.des
//	groups:
//	  Drives: [M1, M2]
//	assertions:
//	  - type: event_shared
//	    event: S1.u_on
//	    instances: [S1, M1, M2]
//
// Scenarios that must be rejected carry an expect clause instead of relying
// on assertions:
//
//	expect:
//	  error: ARITY
//	  message: "expects 1"
//
// # Execution
//
// Run parses the model, elaborates it, applies the grouping and renders the
// flattened text. Every successful run also re-elaborates its own output and
// fails if the second rendering differs from the first, so each scenario
// checks round-trip stability without asking for it.
//
// # Golden Files
//
// RunWithGolden compares the flattened text against
// testdata/scenarios/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
