package cypher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
	"github.com/zero-day-ai/graphqa/internal/llm"
	"github.com/zero-day-ai/graphqa/internal/types"
)

func TestPolicy_Normalize(t *testing.T) {
	p := NewPolicy(DefaultPolicyConfig())

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "collapses lines and appends limit",
			in:   "MATCH (p:Patient)\n  WHERE toLower(p.surname) CONTAINS 'rosenbaum'\n  RETURN p.givenName AS name",
			want: "MATCH (p:Patient) WHERE toLower(p.surname) CONTAINS 'rosenbaum' RETURN p.givenName AS name LIMIT 10",
		},
		{
			name: "keeps existing limit",
			in:   "MATCH (p:Patient) RETURN p.surname LIMIT 3;",
			want: "MATCH (p:Patient) RETURN p.surname LIMIT 3",
		},
		{
			name: "lowercase limit is recognised",
			in:   "MATCH (p:Patient) RETURN count(p) limit 1",
			want: "MATCH (p:Patient) RETURN count(p) limit 1",
		},
		{
			name: "keywords inside literals are allowed",
			in:   "MATCH (s:Substance) WHERE toLower(s.name) CONTAINS 'call set create' RETURN s.name",
			want: "MATCH (s:Substance) WHERE toLower(s.name) CONTAINS 'call set create' RETURN s.name LIMIT 10",
		},
		{
			name: "property named like a clause is allowed",
			in:   "MATCH (n:Patient) RETURN n.set",
			want: "MATCH (n:Patient) RETURN n.set LIMIT 10",
		},
		{name: "call rejected", in: "CALL db.labels()", wantErr: true},
		{name: "apoc rejected", in: "MATCH (n) RETURN apoc.text.join([n.name], ',')", wantErr: true},
		{name: "create rejected", in: "CREATE (p:Patient {surname: 'x'})", wantErr: true},
		{name: "set rejected", in: "MATCH (p:Patient) SET p.surname = 'x'", wantErr: true},
		{name: "detach delete rejected", in: "MATCH (p) DETACH DELETE p", wantErr: true},
		{name: "multiple statements rejected", in: "MATCH (p) RETURN p.id; MATCH (q) RETURN q.id", wantErr: true},
		{name: "empty rejected", in: "  \n ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Normalize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.HasCode(err, graph.ErrCodeGraphInvalidQuery))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "\n")
		})
	}
}

func TestPolicy_NoDefaultLimit(t *testing.T) {
	p := NewPolicy(PolicyConfig{DefaultLimit: 0})
	got, err := p.Normalize("MATCH (p:Patient) RETURN p.surname")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (p:Patient) RETURN p.surname", got)
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json object", `{"cypher": "MATCH (p:Patient {id: 1}) RETURN p.surname"}`, "MATCH (p:Patient {id: 1}) RETURN p.surname"},
		{"json in code block", "```json\n{\"cypher\": \"MATCH (n) RETURN n.id\"}\n```", "MATCH (n) RETURN n.id"},
		{"cypher code block", "Here you go:\n```cypher\nMATCH (p:Patient {id: 45})\nRETURN p.surname\n```", "MATCH (p:Patient {id: 45})\nRETURN p.surname"},
		{"bare statement", "MATCH (p:Patient) RETURN count(p)", "MATCH (p:Patient) RETURN count(p)"},
		{"declined", `{"cypher": ""}`, ""},
		{"prose", "I cannot answer that.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResponse(tt.in))
		})
	}
}

type stubCompleter struct {
	reply    string
	err      error
	stage    llm.Stage
	messages []llm.Message
	req      llm.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, stage llm.Stage, messages []llm.Message, opts ...llm.CompletionOption) (*llm.CompletionResponse, error) {
	s.stage = stage
	s.messages = messages
	llm.ApplyOptions(&s.req, opts...)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Message: llm.NewAssistantMessage(s.reply)}, nil
}

func TestGenerator_Generate(t *testing.T) {
	stub := &stubCompleter{reply: `{"cypher": "MATCH (p:Patient)-[:TREATS]-(d:Practitioner)\nRETURN p.surname"}`}
	g := NewGenerator(stub)

	gen, err := g.Generate(context.Background(), "Who did Josef Klein treat?", "<structure></structure>", "practitioner Josef Klein")
	require.NoError(t, err)

	assert.Equal(t, llm.StageCypher, stub.stage)
	assert.True(t, stub.req.JSONMode)
	require.Len(t, stub.messages, 2)
	assert.Contains(t, stub.messages[1].Content, "practitioner Josef Klein")
	assert.Contains(t, stub.messages[1].Content, "<structure></structure>")
	assert.True(t, strings.HasSuffix(stub.messages[1].Content, "Who did Josef Klein treat?"))

	assert.Equal(t, "MATCH (p:Patient)-[:TREATS]-(d:Practitioner) RETURN p.surname LIMIT 10", gen.Query)
	assert.NoError(t, gen.Rejection)
}

func TestGenerator_Generate_OmitsEmptyTerms(t *testing.T) {
	stub := &stubCompleter{reply: `{"cypher": ""}`}
	g := NewGenerator(stub)

	gen, err := g.Generate(context.Background(), "q", "<nodes></nodes>", "")
	require.NoError(t, err)
	assert.Empty(t, gen.Query)
	assert.NotContains(t, stub.messages[1].Content, "Important terms")
}

func TestGenerator_Generate_Rejected(t *testing.T) {
	stub := &stubCompleter{reply: `{"cypher": "CALL db.schema.visualization()"}`}
	g := NewGenerator(stub)

	gen, err := g.Generate(context.Background(), "q", "", "")
	require.NoError(t, err)
	assert.Empty(t, gen.Query)
	assert.Equal(t, "CALL db.schema.visualization()", gen.Raw)
	assert.True(t, types.HasCode(gen.Rejection, graph.ErrCodeGraphInvalidQuery))
}

func TestGenerator_Generate_LLMError(t *testing.T) {
	stub := &stubCompleter{err: llm.NewProviderUnavailableError("mock", nil)}
	g := NewGenerator(stub)

	_, err := g.Generate(context.Background(), "q", "", "")
	require.Error(t, err)
	assert.True(t, llm.IsUnavailable(err))
}
