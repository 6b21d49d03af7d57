// Package cypher turns a natural-language question into one read-only Cypher
// statement and enforces the query policy before the statement reaches the
// graph store.
//
// Generation is delegated to a language model through llm.Completer. The
// policy is enforced in code: the statement is collapsed onto one line,
// procedure calls and write clauses are rejected, and a row cap is appended
// when the statement does not carry one.
package cypher
