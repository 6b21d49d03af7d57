// Package eval runs a fixed set of questions with known answers through the
// pipeline and reports which answers contain the expected values.
//
// # Cases
//
// A Case pairs a question with the values its answer must mention. Values
// are matched case-insensitively against the final answer; numbers from zero
// to ten also match their spelled-out form, so an expected "3" passes an
// answer that says "three". BuiltinCases holds ten questions over the FHIR
// patient graph. LoadCases reads the same shape from YAML:
//
//	cases:
//	  - question: How many patients are immunized for influenza?
//	    expected_values: ["14"]
//
// # Scores
//
// Runs are meant to be paired with a quality.Scheduler sampling every
// request. A ScoreCollector is registered as the scheduler's sink; after the
// run drains, each Result carries the scores recorded against its trace.
//
// # Output
//
// Summary aggregates pass counts and mean scores. Report prints a coloured
// table and ExportJSONL writes one JSON object per case plus a summary line.
package eval
