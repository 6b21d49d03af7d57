package rag

import (
	"fmt"
	"strings"
)

// InsufficientInformation is the fixed answer for a path without context, and
// for the final answer when neither path could answer.
const InsufficientInformation = "Insufficient information available to answer this question."

const prunePrompt = `You select the part of a graph schema needed to answer a question.

Given the schema below, return only the node labels, relationship labels and
properties that a query answering the question could use. Keep every node a
kept relationship connects. Never invent labels or properties.

Reply with JSON only:
{"nodes": [{"label": "...", "properties": [{"name": "..."}]}],
 "edges": [{"label": "...", "properties": [{"name": "..."}]}]}`

const extractPrompt = `You extract the important entities from a question about a graph database.

For each entity return the schema label or property it refers to as "key" and
the literal value from the question as "value". Prefer proper names, dates,
identifiers and categorical values. Skip generic nouns such as "patients" or
"substances". Use only keys that appear in the schema.

Reply with JSON only: {"entities": [{"key": "...", "value": "..."}]}.
Reply {"entities": []} when the question names no specific entity.`

const answerPrompt = `You answer a question using only the context provided.

- Use only facts present in the context. Do not guess or use outside knowledge.
- When the context holds query results, treat them as the complete answer to the query shown.
- Answer concisely in one or two sentences, in plain English.
- If the context does not contain the answer, reply exactly: "` + InsufficientInformation + `"`

const synthesizePrompt = `You merge two answers to the same question into one.

One answer came from a graph database query and one from clinical notes.
Both contain information. Follow these rules:
- If they agree, give a single combined answer.
- If they disagree, present both findings and say which source each came from.
- Never add facts that appear in neither answer.
Answer concisely in plain English.`

func pruneMessage(schemaXML, question string) string {
	return fmt.Sprintf("<schema>\n%s\n</schema>\n\nQuestion: %s", schemaXML, question)
}

func extractMessage(schemaXML, question string) string {
	return fmt.Sprintf("<schema>\n%s\n</schema>\n\nQuestion: %s", schemaXML, question)
}

func answerMessage(question, pathContext string) string {
	return fmt.Sprintf("<context>\n%s\n</context>\n\nQuestion: %s", strings.TrimSpace(pathContext), question)
}

func synthesizeMessage(question string, graphAnswer, vectorAnswer string) string {
	return fmt.Sprintf("Question: %s\n\nGraph database answer: %s\n\nClinical notes answer: %s",
		question, graphAnswer, vectorAnswer)
}
