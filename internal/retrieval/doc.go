// Package retrieval is the text path of the question-answering pipeline: a
// sqlite note index searched by vector similarity and FTS5 keywords at the
// same time, with the two rankings fused into one short passage list.
package retrieval
