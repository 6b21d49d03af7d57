package cypher

import "strings"

const systemPrompt = `You translate questions into Cypher for a Neo4j graph database.

Rules:
- Use only the node labels, relationship types and properties listed in the schema. Never call procedures or extensions such as apoc.
- Respect relationship direction exactly as the schema declares it in <structure>: (from)-[:REL]->(to).
- Compare strings case-insensitively by containment, for example toLower(p.surname) CONTAINS toLower('rosenbaum').
- Return scalar property values with readable aliases, never whole nodes or relationships.
- Unless the question asks for a different number of results, end the query with LIMIT 10.
- Produce a single read-only statement on one line.

Reply with JSON only: {"cypher": "<query>"}. If the schema cannot answer the question reply {"cypher": ""}.`

// buildPrompt renders the user message for one question.
func buildPrompt(question, schemaXML, importantTerms string) string {
	var b strings.Builder
	b.WriteString("<schema>\n")
	b.WriteString(schemaXML)
	b.WriteString("</schema>\n\n")
	if importantTerms != "" {
		b.WriteString("Important terms (use them to pick values and properties): ")
		b.WriteString(importantTerms)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
