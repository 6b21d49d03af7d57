// Package rag answers questions over the FHIR graph and the clinical note
// index.
//
// A question flows through the Pipeline in a fixed shape:
//
//	input guardrail
//	  -> schema pruning
//	  -> {entity extraction, cypher generation}
//	  -> {graph branch: execute + answer, text branch: retrieve + answer}
//	  -> synthesis
//	  -> output guardrail
//	  -> sampled quality scoring (background)
//
// Pruning and extraction degrade to safe defaults when generation fails.
// Only an unreachable store or model backend fails the request.
package rag
