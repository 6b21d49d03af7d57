package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/graphqa/cmd/graphqa/internal"
	"github.com/zero-day-ai/graphqa/internal/rag"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and print both partial answers",
	Example: `  graphqa ask "How many patients are allergic to the substance 'seafood'?"
  graphqa ask -o json "Which practitioner treats Vito Barton?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// askOutput is the JSON form of an answer.
type askOutput struct {
	Response            string              `json:"response"`
	GraphPartialAnswer  string              `json:"graph_partial_answer"`
	VectorPartialAnswer string              `json:"vector_partial_answer"`
	Strategy            string              `json:"strategy"`
	Entities            []rag.EntityKeyword `json:"entities,omitempty"`
	Cypher              string              `json:"cypher,omitempty"`
	Degraded            []string            `json:"degraded,omitempty"`
	TraceID             string              `json:"trace_id"`
	SpanID              string              `json:"span_id"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.pipeline.Ask(ctx, question)
	if err != nil {
		return err
	}

	f := formatter(cmd)
	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return f.PrintJSON(askOutput{
			Response:            resp.Answer,
			GraphPartialAnswer:  resp.Graph.Text,
			VectorPartialAnswer: resp.Vector.Text,
			Strategy:            string(resp.Strategy),
			Entities:            resp.Entities,
			Cypher:              resp.Cypher,
			Degraded:            resp.Degraded,
			TraceID:             resp.TraceID,
			SpanID:              resp.SpanID,
		})
	}
	return f.PrintFields(answerFields(resp, globalFlags.IsVerbose()))
}

// answerFields lays out an answer for text output. Verbose output adds the
// generated Cypher, the extracted entities and the retrieved passages.
func answerFields(resp *rag.Response, verbose bool) []internal.Field {
	fields := []internal.Field{
		{Label: "Answer", Value: resp.Answer},
		{Label: "Graph", Value: resp.Graph.Text},
		{Label: "Notes", Value: resp.Vector.Text},
		{Label: "Strategy", Value: string(resp.Strategy)},
	}
	if len(resp.Degraded) > 0 {
		fields = append(fields, internal.Field{Label: "Degraded", Value: strings.Join(resp.Degraded, ", ")})
	}
	if verbose {
		entities := make([]string, len(resp.Entities))
		for i, e := range resp.Entities {
			entities[i] = e.Key + "=" + e.Value
		}
		passages := make([]string, len(resp.Passages))
		for i, p := range resp.Passages {
			passages[i] = fmt.Sprintf("[%d %.4f] %s", p.ID, p.Score, p.Text)
		}
		fields = append(fields,
			internal.Field{Label: "Entities", Value: strings.Join(entities, ", ")},
			internal.Field{Label: "Cypher", Value: resp.Cypher},
			internal.Field{Label: "Passages", Value: strings.Join(passages, "\n")},
		)
	}
	return append(fields, internal.Field{Label: "Trace", Value: resp.TraceID})
}
