package cypher

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/llm"
)

var codeBlockRe = regexp.MustCompile("(?s)```(?:cypher|sql)?\\s*\\n?(.*?)```")

// Generator produces Cypher statements from questions.
type Generator struct {
	llm    llm.Completer
	policy *Policy
	logger *slog.Logger
}

// GeneratorOption configures optional Generator behaviour.
type GeneratorOption func(*Generator)

// WithLogger sets the logger used for generation diagnostics.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithPolicy replaces the default statement policy.
func WithPolicy(p *Policy) GeneratorOption {
	return func(g *Generator) {
		g.policy = p
	}
}

// NewGenerator creates a generator that calls completer on llm.StageCypher.
func NewGenerator(completer llm.Completer, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:    completer,
		policy: NewPolicy(DefaultPolicyConfig()),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generation is the outcome of one generation call.
type Generation struct {
	// Raw is the statement exactly as the model produced it.
	Raw string

	// Query is the policy-normalised statement. It is empty when the model
	// declined to produce one or the statement was rejected.
	Query string

	// Rejection holds the policy error when Raw was rejected.
	Rejection error
}

// Generate asks the model for one statement answering question over the
// schema. importantTerms disambiguates values and may be empty.
//
// Only generation failures are returned as errors. A missing or rejected
// statement is a valid Generation with an empty Query.
func (g *Generator) Generate(ctx context.Context, question, schemaXML, importantTerms string) (Generation, error) {
	messages := []llm.Message{
		llm.NewSystemMessage(systemPrompt),
		llm.NewUserMessage(buildPrompt(question, schemaXML, importantTerms)),
	}

	resp, err := g.llm.Complete(ctx, llm.StageCypher, messages, llm.WithJSONMode())
	if err != nil {
		return Generation{}, err
	}

	raw := ParseResponse(resp.Content())
	gen := Generation{Raw: raw}
	if raw == "" {
		g.logger.DebugContext(ctx, "model produced no cypher statement")
		return gen, nil
	}

	gen.Query, gen.Rejection = g.policy.Normalize(raw)
	if gen.Rejection != nil {
		g.logger.WarnContext(ctx, "generated cypher rejected by policy",
			"error", gen.Rejection, "cypher", raw)
	}
	return gen, nil
}

// ParseResponse extracts the statement from a model reply. It accepts the
// {"cypher": "..."} object, a fenced code block, or a bare statement.
func ParseResponse(content string) string {
	type reply struct {
		Cypher string `json:"cypher"`
	}
	// Statements contain map literals, so only treat the reply as JSON when
	// it names the cypher key.
	if strings.Contains(content, `"cypher"`) {
		if r, err := llm.ExtractJSONAs[reply](content); err == nil {
			return strings.TrimSpace(r.Cypher)
		}
	}
	if m := codeBlockRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}

	content = strings.TrimSpace(content)
	if looksLikeCypher(content) {
		return content
	}
	return ""
}

func looksLikeCypher(s string) bool {
	upper := strings.ToUpper(s)
	return strings.HasPrefix(upper, "MATCH") || strings.HasPrefix(upper, "OPTIONAL MATCH") ||
		strings.HasPrefix(upper, "WITH") || strings.HasPrefix(upper, "UNWIND")
}
