package llm

import (
	"context"
	"fmt"
	"sort"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// Completer issues a generation call for a named pipeline stage. The stage
// decides which provider and model serve the call.
type Completer interface {
	Complete(ctx context.Context, stage Stage, messages []Message, opts ...CompletionOption) (*CompletionResponse, error)
}

// Router resolves stages to providers using the LLMConfig routing table.
// It is safe for concurrent use once constructed.
type Router struct {
	config    LLMConfig
	providers map[string]LLMProvider
}

// NewRouter creates a router over an already-built provider set. Every
// provider the configuration routes to must be present.
func NewRouter(cfg LLMConfig, providers map[string]LLMProvider) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, stage := range Stages {
		name, _ := cfg.Route(stage)
		if _, ok := providers[name]; !ok {
			return nil, NewProviderNotFoundError(name)
		}
	}
	return &Router{config: cfg, providers: providers}, nil
}

// Resolve returns the provider and settings that serve stage.
func (r *Router) Resolve(stage Stage) (LLMProvider, StageConfig, error) {
	name, sc := r.config.Route(stage)
	p, ok := r.providers[name]
	if !ok {
		return nil, sc, NewProviderNotFoundError(name)
	}
	return p, sc, nil
}

// Complete builds the request from the stage settings, applies opts on top,
// and sends it to the routed provider. Provider errors are translated.
func (r *Router) Complete(ctx context.Context, stage Stage, messages []Message, opts ...CompletionOption) (*CompletionResponse, error) {
	p, sc, err := r.Resolve(stage)
	if err != nil {
		return nil, err
	}

	req := CompletionRequest{
		Model:       sc.Model,
		Messages:    messages,
		Temperature: sc.Temperature,
		MaxTokens:   sc.MaxTokens,
	}
	ApplyOptions(&req, opts...)
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError(fmt.Sprintf("%s: %v", stage, err))
	}

	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, TranslateError(p.Name(), err)
	}
	if resp.Usage.IsZero() {
		resp.Usage = EstimateUsage(req, resp)
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp, nil
}

// Health aggregates provider health. The router is healthy only when every
// provider is; it is unhealthy when none is.
func (r *Router) Health(ctx context.Context) types.HealthStatus {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var failing []string
	for _, name := range names {
		if !r.providers[name].Health(ctx).IsHealthy() {
			failing = append(failing, name)
		}
	}

	switch {
	case len(names) == 0:
		return types.Unhealthy("no llm providers configured")
	case len(failing) == 0:
		return types.Healthy(fmt.Sprintf("%d llm providers healthy", len(names)))
	case len(failing) == len(names):
		return types.Unhealthy(fmt.Sprintf("all llm providers unhealthy: %v", failing))
	default:
		return types.Degraded(fmt.Sprintf("llm providers unhealthy: %v", failing))
	}
}
