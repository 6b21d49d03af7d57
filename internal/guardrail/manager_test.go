package guardrail_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/graphqa/internal/guardrail"
	"github.com/zero-day-ai/graphqa/internal/guardrail/builtin"
)

// wordGuardrail triggers on a fixed word and masks it with '#'.
type wordGuardrail struct {
	name   string
	word   string
	action guardrail.Action
	mask   bool
}

func (g *wordGuardrail) Name() string                  { return g.name }
func (g *wordGuardrail) Type() guardrail.GuardrailType { return "word" }
func (g *wordGuardrail) MaskingEnabled() bool          { return g.mask }

func (g *wordGuardrail) Validate(text string) guardrail.Result {
	res := guardrail.Result{Action: g.action, Severity: guardrail.SeverityLow}
	if strings.Contains(text, g.word) {
		res.Triggered = true
		res.EntitiesFound = []string{g.word}
		res.Message = "word found"
	}
	return res
}

func (g *wordGuardrail) Mask(text string) string {
	if !g.mask {
		return text
	}
	return strings.ReplaceAll(text, g.word, strings.Repeat("#", len(g.word)))
}

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	rec := tracetest.NewSpanRecorder()
	return rec, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestManager_Empty(t *testing.T) {
	m := guardrail.NewManager(nil, nil)
	out, err := m.ProcessInput(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", out.Text)
	assert.False(t, out.Masked)
	assert.Empty(t, out.Results)
}

func TestManager_Actions(t *testing.T) {
	tests := []struct {
		name      string
		guards    []guardrail.Guardrail
		text      string
		wantText  string
		wantBlock bool
	}{
		{
			name:     "warn masks",
			guards:   []guardrail.Guardrail{&wordGuardrail{name: "w", word: "secret", action: guardrail.ActionWarn, mask: true}},
			text:     "a secret b",
			wantText: "a ###### b",
		},
		{
			name:     "warn without masking passes text",
			guards:   []guardrail.Guardrail{&wordGuardrail{name: "w", word: "secret", action: guardrail.ActionWarn}},
			text:     "a secret b",
			wantText: "a secret b",
		},
		{
			name:     "log never alters",
			guards:   []guardrail.Guardrail{&wordGuardrail{name: "l", word: "secret", action: guardrail.ActionLog, mask: true}},
			text:     "a secret b",
			wantText: "a secret b",
		},
		{
			name: "block wins over earlier warn",
			guards: []guardrail.Guardrail{
				&wordGuardrail{name: "w", word: "secret", action: guardrail.ActionWarn, mask: true},
				&wordGuardrail{name: "b", word: "secret", action: guardrail.ActionBlock},
			},
			text:      "a secret b",
			wantBlock: true,
		},
		{
			name: "block validates original text",
			guards: []guardrail.Guardrail{
				&wordGuardrail{name: "w", word: "secret", action: guardrail.ActionWarn, mask: true},
				&wordGuardrail{name: "b", word: "cret", action: guardrail.ActionBlock},
			},
			text:      "a secret b",
			wantBlock: true,
		},
		{
			name: "untriggered block passes",
			guards: []guardrail.Guardrail{
				&wordGuardrail{name: "b", word: "other", action: guardrail.ActionBlock},
			},
			text:     "a secret b",
			wantText: "a secret b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := guardrail.NewManager(tt.guards, nil)
			out, err := m.ProcessInput(context.Background(), tt.text)
			if tt.wantBlock {
				var blocked *guardrail.GuardrailBlockedError
				require.True(t, errors.As(err, &blocked))
				assert.Equal(t, "b", blocked.GuardrailName)
				assert.Equal(t, guardrail.PhaseInput, blocked.Phase)
				assert.Equal(t, guardrail.ErrGuardrailBlocked, blocked.Code())
				assert.Equal(t, tt.text, out.Text)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, out.Text)
			assert.Equal(t, tt.wantText != tt.text, out.Masked)
		})
	}
}

func TestManager_EmailBlockIsSanitized(t *testing.T) {
	g, err := builtin.NewEmailGuardrail(builtin.EmailGuardrailConfig{Action: "block", Severity: "critical"})
	require.NoError(t, err)

	m := guardrail.NewManager(nil, []guardrail.Guardrail{g})
	_, err = m.ProcessOutput(context.Background(), "Reach the patient at jane.roe@example.com")

	var blocked *guardrail.GuardrailBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, guardrail.PhaseOutput, blocked.Phase)
	assert.Equal(t, guardrail.SeverityCritical, blocked.Severity)
	assert.NotContains(t, err.Error(), "jane.roe@example.com")
}

func TestManager_WarnMaskKeepsEmailOutOfLogs(t *testing.T) {
	g, err := builtin.NewEmailGuardrail(builtin.EmailGuardrailConfig{MaskEmails: true})
	require.NoError(t, err)

	question := "Which allergies does the patient with email tom@example.com have?"
	m := guardrail.NewManager([]guardrail.Guardrail{g}, nil)
	out, err := m.ProcessInput(context.Background(), question)
	require.NoError(t, err)

	assert.NotContains(t, out.Text, "tom@example.com")
	assert.Contains(t, out.Text, "t*m@e******.c**")
	assert.Equal(t, len(question), len(out.Text))
	assert.Equal(t, 1, out.EntityCount())
}

func TestManager_Span(t *testing.T) {
	rec, tp := newRecorder()
	guards := []guardrail.Guardrail{
		&wordGuardrail{name: "w", word: "secret", action: guardrail.ActionWarn, mask: true},
		&wordGuardrail{name: "l", word: "b", action: guardrail.ActionLog},
	}
	m := guardrail.NewManager(guards, nil).WithTracer(tp.Tracer("test"))

	_, err := m.ProcessInput(context.Background(), "a secret b")
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, guardrail.SpanInput, spans[0].Name())

	attrs := spanAttrs(spans[0])
	assert.Equal(t, int64(2), attrs[guardrail.AttrChecked].AsInt64())
	assert.Equal(t, int64(2), attrs[guardrail.AttrTriggered].AsInt64())
	assert.Equal(t, int64(2), attrs[guardrail.AttrEntities].AsInt64())
	assert.True(t, attrs[guardrail.AttrMaskingApplied].AsBool())
	assert.False(t, attrs[guardrail.AttrBlocked].AsBool())
	assert.Equal(t, int64(1), attrs["graphqa.guardrail.action.warn"].AsInt64())
	assert.Equal(t, int64(1), attrs["graphqa.guardrail.action.log"].AsInt64())
	assert.Equal(t, int64(2), attrs["graphqa.guardrail.severity.low"].AsInt64())
	_, ok := attrs[guardrail.AttrProcessingMs]
	assert.True(t, ok)
}
