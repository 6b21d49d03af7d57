package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/llm"
)

// Path names a retrieval path.
type Path string

const (
	PathGraph  Path = "graph"
	PathVector Path = "vector"
)

// PartialAnswer is the answer produced from one retrieval path.
type PartialAnswer struct {
	Path    Path   `json:"path"`
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`

	// Generated is false when the answer is the fixed insufficient
	// information text and no model call was made.
	Generated bool `json:"generated"`

	// Prompt is the rendered prompt and Model the model that answered.
	Prompt string `json:"-"`
	Model  string `json:"model,omitempty"`
}

// Sufficient reports whether the answer carries information.
func (a PartialAnswer) Sufficient() bool {
	return IsSufficient(a.Text)
}

// Strategy records which rule produced a synthesized answer.
type Strategy string

const (
	StrategyInsufficient Strategy = "insufficient"
	StrategyGraphOnly    Strategy = "graph_only"
	StrategyVectorOnly   Strategy = "vector_only"
	StrategyNumericGraph Strategy = "numeric_graph"
	StrategyMerged       Strategy = "merged"
)

// SynthesizedAnswer is the final answer and the two answers it came from.
type SynthesizedAnswer struct {
	Text     string
	Graph    PartialAnswer
	Vector   PartialAnswer
	Strategy Strategy

	// Prompt and Model belong to the generation Text came from: the
	// synthesis call for a merge, otherwise the chosen partial answer.
	Prompt string
	Model  string
}

var insufficientPhrases = []string{
	"insufficient information",
	"not enough information",
	"no information",
	"cannot be determined",
}

// IsSufficient reports whether text is an answer rather than a statement
// that the information is missing.
func IsSufficient(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	for _, p := range insufficientPhrases {
		if strings.Contains(t, p) {
			return false
		}
	}
	return true
}

// SynthesisPolicy holds the conflict rules applied after both paths answered.
type SynthesisPolicy struct {
	// PreferGraphOnNumericConflict reports the graph answer when both paths
	// answer a numeric question with different numbers. The graph query
	// sees every matching record while text retrieval sees only the top
	// passages. The rule is wrong when the generated query is too narrow.
	PreferGraphOnNumericConflict bool `mapstructure:"prefer_graph_on_numeric_conflict" yaml:"prefer_graph_on_numeric_conflict"`
}

// DefaultSynthesisPolicy prefers the graph on numeric conflicts.
func DefaultSynthesisPolicy() SynthesisPolicy {
	return SynthesisPolicy{PreferGraphOnNumericConflict: true}
}

// Synthesizer answers from each path and merges the two answers.
type Synthesizer struct {
	llm    llm.Completer
	policy SynthesisPolicy
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(completer llm.Completer, policy SynthesisPolicy, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{llm: completer, policy: policy, logger: logger}
}

// Answer produces the partial answer for one path. An empty context
// short-circuits to InsufficientInformation without calling the model.
func (s *Synthesizer) Answer(ctx context.Context, path Path, question, pathContext string) (PartialAnswer, error) {
	if strings.TrimSpace(pathContext) == "" {
		return PartialAnswer{Path: path, Text: InsufficientInformation}, nil
	}

	messages := []llm.Message{
		llm.NewSystemMessage(answerPrompt),
		llm.NewUserMessage(answerMessage(question, pathContext)),
	}
	resp, err := s.llm.Complete(ctx, llm.StageAnswer, messages)
	if err != nil {
		return PartialAnswer{}, err
	}

	text := strings.TrimSpace(resp.Content())
	if text == "" {
		text = InsufficientInformation
	}
	return PartialAnswer{
		Path:      path,
		Text:      text,
		Context:   pathContext,
		Generated: true,
		Prompt:    renderPrompt(messages),
		Model:     resp.Model,
	}, nil
}

// Synthesize merges the two partial answers. The rules apply in order:
// neither sufficient, exactly one sufficient, numeric conflict on a numeric
// question, and otherwise a model-phrased merge that attributes
// disagreements to their source.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, graph, vector PartialAnswer) (SynthesizedAnswer, error) {
	out := SynthesizedAnswer{Graph: graph, Vector: vector}

	graphOK, vectorOK := graph.Sufficient(), vector.Sufficient()
	switch {
	case !graphOK && !vectorOK:
		out.Text, out.Strategy = InsufficientInformation, StrategyInsufficient
		return out, nil
	case graphOK && !vectorOK:
		out.Text, out.Strategy = graph.Text, StrategyGraphOnly
		out.Prompt, out.Model = graph.Prompt, graph.Model
		return out, nil
	case !graphOK && vectorOK:
		out.Text, out.Strategy = vector.Text, StrategyVectorOnly
		out.Prompt, out.Model = vector.Prompt, vector.Model
		return out, nil
	}

	if s.policy.PreferGraphOnNumericConflict && IsNumericQuestion(question) {
		g, gok := FirstNumber(graph.Text)
		v, vok := FirstNumber(vector.Text)
		if gok && vok && g != v {
			s.logger.DebugContext(ctx, "numeric conflict resolved in favour of graph",
				"graph", g, "vector", v)
			out.Text, out.Strategy = graph.Text, StrategyNumericGraph
			out.Prompt, out.Model = graph.Prompt, graph.Model
			return out, nil
		}
	}

	out.Strategy = StrategyMerged
	messages := []llm.Message{
		llm.NewSystemMessage(synthesizePrompt),
		llm.NewUserMessage(synthesizeMessage(question, graph.Text, vector.Text)),
	}
	out.Prompt = renderPrompt(messages)
	resp, err := s.llm.Complete(ctx, llm.StageSynthesize, messages)
	if err != nil {
		if ctx.Err() != nil || llm.IsUnavailable(err) {
			return SynthesizedAnswer{}, err
		}
		s.logger.WarnContext(ctx, "synthesis generation failed, attributing both answers",
			"error", NewDegradedError("synthesis", err))
		out.Text = attributed(graph.Text, vector.Text)
		return out, nil
	}

	out.Model = resp.Model
	out.Text = strings.TrimSpace(resp.Content())
	if out.Text == "" {
		out.Text = attributed(graph.Text, vector.Text)
	}
	return out, nil
}

func renderPrompt(messages []llm.Message) string {
	return strings.TrimSpace(llm.CompletionRequest{Messages: messages}.Prompt())
}

func attributed(graphText, vectorText string) string {
	return "According to the graph database: " + strings.TrimSpace(graphText) +
		"\nAccording to the clinical notes: " + strings.TrimSpace(vectorText)
}
