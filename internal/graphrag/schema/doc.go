// Package schema holds the graph vocabulary that every query-answering
// request is conditioned on.
//
// A GraphSchema is an ordered list of node labels and directed edge labels,
// each with typed properties. It is loaded once at process start and shared
// read-only by every request; nothing in this package mutates a schema after
// construction.
//
// # Sources
//
// Three sources are supported:
//
//   - Builtin: the FHIR patient graph (Patient, Practitioner, Allergy,
//     Substance, Immunization, Address) compiled into the binary
//   - File: a YAML document with the same shape as the builtin schema
//   - Introspection: read from a live Neo4j database (see package graph)
//
// # Prompt Rendering
//
// Language-model prompts receive the schema as XML with three sections:
//
//	<structure>
//	  <rel label="TREATS" from="Practitioner" to="Patient" />
//	</structure>
//	<nodes>
//	  <node label="Patient">
//	    <property name="surname" type="STRING" />
//	  </node>
//	</nodes>
//	<relationships>
//	  <rel label="TREATS" />
//	</relationships>
//
// The structure section carries edge direction verbatim so a query generator
// can honor it.
//
// # Pruning
//
// Subset restricts a candidate schema (typically decoded from a pruning
// model's JSON output) to labels and properties that exist in the full
// schema. Edge direction always comes from the full schema, never from the
// candidate.
package schema
