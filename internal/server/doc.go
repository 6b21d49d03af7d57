// Package server exposes the question-answering pipeline over HTTP.
//
// Routes:
//
//	POST /query     {question}                          -> answer and partial answers
//	POST /feedback  {trace_id, span_id, score, comment} -> 202
//	GET  /health                                        -> aggregated component health
//	GET  /metrics                                       -> Prometheus exposition
package server
