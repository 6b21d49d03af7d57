package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span names and attributes recorded per phase.
const (
	SpanInput  = "graphqa.guardrail.input"
	SpanOutput = "graphqa.guardrail.output"

	AttrPhase          = "graphqa.guardrail.phase"
	AttrChecked        = "graphqa.guardrail.checked"
	AttrTriggered      = "graphqa.guardrail.triggered"
	AttrEntities       = "graphqa.guardrail.entities_found"
	AttrMaskingApplied = "graphqa.guardrail.masking_applied"
	AttrBlocked        = "graphqa.guardrail.blocked"
	AttrProcessingMs   = "graphqa.guardrail.processing_ms"
	attrActionPrefix   = "graphqa.guardrail.action."
	attrSeverityPrefix = "graphqa.guardrail.severity."
)

// Manager applies an ordered set of guardrails at a trust boundary.
//
// Every guardrail is validated against the original text before anything is
// masked. If any triggered guardrail has the Block action the phase fails
// with a GuardrailBlockedError. Otherwise Warn guardrails with masking
// enabled mask their entities in order and Log guardrails only record.
type Manager struct {
	input  []Guardrail
	output []Guardrail
	tracer trace.Tracer
	logger *slog.Logger
}

// NewManager creates a manager with separate input and output guardrails.
func NewManager(input, output []Guardrail) *Manager {
	return &Manager{
		input:  append([]Guardrail(nil), input...),
		output: append([]Guardrail(nil), output...),
		tracer: noop.NewTracerProvider().Tracer("guardrail"),
		logger: slog.Default(),
	}
}

// WithTracer sets the OpenTelemetry tracer for the manager
func (m *Manager) WithTracer(tracer trace.Tracer) *Manager {
	if tracer != nil {
		m.tracer = tracer
	}
	return m
}

// WithLogger sets the logger for the manager
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// ProcessInput checks a user question.
func (m *Manager) ProcessInput(ctx context.Context, text string) (Outcome, error) {
	return m.process(ctx, PhaseInput, SpanInput, m.input, text)
}

// ProcessOutput checks a synthesized answer.
func (m *Manager) ProcessOutput(ctx context.Context, text string) (Outcome, error) {
	return m.process(ctx, PhaseOutput, SpanOutput, m.output, text)
}

// InputGuardrails returns a copy of the input guardrails.
func (m *Manager) InputGuardrails() []Guardrail {
	return append([]Guardrail(nil), m.input...)
}

// OutputGuardrails returns a copy of the output guardrails.
func (m *Manager) OutputGuardrails() []Guardrail {
	return append([]Guardrail(nil), m.output...)
}

func (m *Manager) process(ctx context.Context, phase Phase, spanName string, guards []Guardrail, text string) (Outcome, error) {
	outcome := Outcome{Text: text}
	if len(guards) == 0 {
		return outcome, nil
	}

	start := time.Now()
	ctx, span := m.tracer.Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String(AttrPhase, string(phase)),
			attribute.Int(AttrChecked, len(guards)),
		),
	)
	defer span.End()

	outcome.Results = make([]Result, 0, len(guards))
	var blocking *GuardrailBlockedError
	for _, g := range guards {
		res := g.Validate(text)
		res.Guardrail = g.Name()
		outcome.Results = append(outcome.Results, res)

		if res.Triggered && res.Action == ActionBlock && blocking == nil {
			blocking = NewGuardrailBlockedError(g.Name(), g.Type(), phase, res.Severity, res.Message)
		}
	}

	if blocking == nil {
		for i, g := range guards {
			res := outcome.Results[i]
			if !res.Triggered {
				continue
			}
			switch res.Action {
			case ActionWarn:
				m.logger.WarnContext(ctx, "guardrail violation",
					"guardrail", g.Name(),
					"phase", phase,
					"severity", res.Severity,
					"entities", len(res.EntitiesFound),
				)
				if g.MaskingEnabled() {
					outcome.Text = g.Mask(outcome.Text)
				}
			case ActionLog:
				m.logger.InfoContext(ctx, "guardrail violation recorded",
					"guardrail", g.Name(),
					"phase", phase,
					"severity", res.Severity,
					"entities", len(res.EntitiesFound),
				)
			}
		}
		outcome.Masked = outcome.Text != text
	}

	m.annotate(span, outcome, blocking != nil, time.Since(start))

	if blocking != nil {
		m.logger.WarnContext(ctx, "guardrail blocked request",
			"guardrail", blocking.GuardrailName,
			"phase", phase,
			"severity", blocking.Severity,
		)
		span.SetAttributes(attribute.String("error.type", string(ErrGuardrailBlocked)))
		return Outcome{Text: text, Results: outcome.Results}, blocking
	}
	return outcome, nil
}

func (m *Manager) annotate(span trace.Span, outcome Outcome, blocked bool, elapsed time.Duration) {
	actions := map[Action]int{}
	severities := map[Severity]int{}
	triggered := outcome.Triggered()
	for _, r := range triggered {
		actions[r.Action]++
		severities[r.Severity]++
	}

	attrs := []attribute.KeyValue{
		attribute.Int(AttrTriggered, len(triggered)),
		attribute.Int(AttrEntities, outcome.EntityCount()),
		attribute.Bool(AttrMaskingApplied, outcome.Masked),
		attribute.Bool(AttrBlocked, blocked),
		attribute.Float64(AttrProcessingMs, float64(elapsed.Microseconds())/1000),
	}
	for a, n := range actions {
		attrs = append(attrs, attribute.Int(fmt.Sprintf("%s%s", attrActionPrefix, a), n))
	}
	for s, n := range severities {
		attrs = append(attrs, attribute.Int(fmt.Sprintf("%s%s", attrSeverityPrefix, s), n))
	}
	span.SetAttributes(attrs...)
}
