package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
	"github.com/zero-day-ai/graphqa/internal/llm"
)

// PrunedSchema is the part of the graph schema relevant to one question.
type PrunedSchema struct {
	Schema schema.GraphSchema
	XML    string

	// Degraded is set when pruning failed and Schema is the full schema.
	Degraded bool
	Reason   error
}

// SchemaPruner narrows the full schema to a question.
type SchemaPruner struct {
	llm     llm.Completer
	full    *schema.GraphSchema
	fullXML string
	logger  *slog.Logger
}

// NewSchemaPruner creates a pruner over the shared, read-only full schema.
func NewSchemaPruner(completer llm.Completer, full *schema.GraphSchema, logger *slog.Logger) *SchemaPruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaPruner{
		llm:     completer,
		full:    full,
		fullXML: full.XML(),
		logger:  logger,
	}
}

// Full returns the unpruned schema and its XML.
func (p *SchemaPruner) Full() (*schema.GraphSchema, string) {
	return p.full, p.fullXML
}

// Prune asks the model for the relevant subset. Any failure other than ctx
// being done yields the full schema with Degraded set.
func (p *SchemaPruner) Prune(ctx context.Context, question string) (PrunedSchema, error) {
	messages := []llm.Message{
		llm.NewSystemMessage(prunePrompt),
		llm.NewUserMessage(pruneMessage(p.fullXML, question)),
	}

	resp, err := p.llm.Complete(ctx, llm.StagePrune, messages, llm.WithJSONMode())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PrunedSchema{}, ctxErr
		}
		return p.fallback(ctx, err), nil
	}

	candidate, err := llm.ExtractJSONAs[schema.GraphSchema](resp.Content())
	if err != nil {
		return p.fallback(ctx, err), nil
	}

	pruned, ok := p.full.Subset(candidate)
	if !ok {
		return p.fallback(ctx, fmt.Errorf("pruned schema names no known node")), nil
	}

	return PrunedSchema{Schema: pruned, XML: pruned.XML()}, nil
}

func (p *SchemaPruner) fallback(ctx context.Context, cause error) PrunedSchema {
	err := NewDegradedError("schema pruning", cause)
	p.logger.WarnContext(ctx, "schema pruning failed, using full schema", "error", err)
	return PrunedSchema{
		Schema:   *p.full,
		XML:      p.fullXML,
		Degraded: true,
		Reason:   err,
	}
}
