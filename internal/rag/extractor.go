package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/llm"
)

// EntityKeyword is one entity named in a question. Key is the schema label
// or property it refers to.
type EntityKeyword struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Extraction is the outcome of entity extraction.
type Extraction struct {
	Entities []EntityKeyword

	// Dangling lists keys that are not in the pruned schema. They are kept
	// in Entities and only reported.
	Dangling []string

	Degraded bool
	Reason   error
}

// ImportantTerms renders entities as "key value" pairs joined by spaces,
// with underscores turned into spaces.
func ImportantTerms(entities []EntityKeyword) string {
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, strings.ReplaceAll(e.Key+" "+e.Value, "_", " "))
	}
	return strings.Join(parts, " ")
}

// EntityValues returns the values of entities in order.
func EntityValues(entities []EntityKeyword) []string {
	values := make([]string, 0, len(entities))
	for _, e := range entities {
		values = append(values, e.Value)
	}
	return values
}

// EntityExtractor pulls entity keywords out of a question.
type EntityExtractor struct {
	llm    llm.Completer
	logger *slog.Logger
}

// NewEntityExtractor creates an extractor calling completer on llm.StageExtract.
func NewEntityExtractor(completer llm.Completer, logger *slog.Logger) *EntityExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityExtractor{llm: completer, logger: logger}
}

type extractReply struct {
	Entities []EntityKeyword `json:"entities"`
}

// Extract returns the entities of question scoped to pruned. Any failure
// other than ctx being done yields an empty list with Degraded set.
func (x *EntityExtractor) Extract(ctx context.Context, question string, pruned PrunedSchema) (Extraction, error) {
	messages := []llm.Message{
		llm.NewSystemMessage(extractPrompt),
		llm.NewUserMessage(extractMessage(pruned.XML, question)),
	}

	resp, err := x.llm.Complete(ctx, llm.StageExtract, messages, llm.WithJSONMode())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Extraction{}, ctxErr
		}
		return x.fallback(ctx, err), nil
	}

	entities, err := parseEntities(resp.Content())
	if err != nil {
		return x.fallback(ctx, err), nil
	}

	out := Extraction{Entities: entities}
	for _, e := range entities {
		if !pruned.Schema.HasName(e.Key) {
			out.Dangling = append(out.Dangling, e.Key)
		}
	}
	if len(out.Dangling) > 0 {
		x.logger.WarnContext(ctx, "extracted entity keys missing from pruned schema",
			"keys", out.Dangling)
	}
	return out, nil
}

// parseEntities accepts {"entities": [...]} or a bare array, and drops
// entries without a key or value as well as repeats.
func parseEntities(content string) ([]EntityKeyword, error) {
	var raw []EntityKeyword
	if strings.HasPrefix(strings.TrimSpace(content), "[") {
		list, err := llm.ExtractJSONAs[[]EntityKeyword](content)
		if err != nil {
			return nil, err
		}
		raw = list
	} else {
		reply, err := llm.ExtractJSONAs[extractReply](content)
		if err != nil {
			return nil, err
		}
		raw = reply.Entities
	}

	seen := make(map[EntityKeyword]bool, len(raw))
	out := make([]EntityKeyword, 0, len(raw))
	for _, e := range raw {
		e.Key = strings.TrimSpace(e.Key)
		e.Value = strings.TrimSpace(e.Value)
		if e.Key == "" || e.Value == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, nil
}

func (x *EntityExtractor) fallback(ctx context.Context, cause error) Extraction {
	err := NewDegradedError("entity extraction", cause)
	x.logger.WarnContext(ctx, "entity extraction failed, continuing without entities", "error", err)
	return Extraction{Entities: []EntityKeyword{}, Degraded: true, Reason: err}
}
