// Package graphrag is the graph retrieval path of the question-answering
// pipeline.
//
// Subpackages hold the pieces: schema describes the graph vocabulary, graph
// talks to the store, and cypher turns questions into statements. This
// package ties them together through Executor, which runs one statement and
// turns the outcome into a GraphResult the synthesizer can read.
//
// # Failure model
//
// Execution failures are data, not errors. An invalid statement, an unknown
// label, or a server-side timeout yields a GraphResult with Err set and no
// rows, which the synthesizer treats as "no graph context". Execute returns
// an error only when the store itself is unreachable or the request was
// cancelled.
//
//	exec := graphrag.NewExecutor(client)
//	res, err := exec.Execute(ctx, "MATCH (p:Patient) RETURN count(p) AS n LIMIT 10")
//	if err != nil {
//	    return err // store unavailable
//	}
//	fmt.Println(res.Context())
package graphrag
