package cypher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// DefaultLimit is the row cap appended to statements without a LIMIT.
const DefaultLimit = 10

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	limitRe      = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+|\$\w+)`)
	procedureRe  = regexp.MustCompile(`(?i)\bapoc\.`)

	// Clauses that either mutate the graph or invoke procedures. A leading
	// dot means a property access such as n.set, which is allowed.
	forbiddenRe = regexp.MustCompile(`(?i)(?:^|[^.\w])(CALL|CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH|LOAD\s+CSV)\b`)
)

// PolicyConfig controls statement normalisation.
type PolicyConfig struct {
	// DefaultLimit is appended as "LIMIT n" when the statement has none.
	// Zero disables the cap.
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit" validate:"min=0"`
}

// DefaultPolicyConfig returns the policy used when nothing is configured.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{DefaultLimit: DefaultLimit}
}

// Policy validates and normalises generated statements.
type Policy struct {
	config PolicyConfig
}

// NewPolicy creates a policy from cfg.
func NewPolicy(cfg PolicyConfig) *Policy {
	return &Policy{config: cfg}
}

// Normalize collapses q onto a single line, strips a trailing semicolon,
// and rejects statements that use procedures or write clauses. It appends
// the default LIMIT when q has none. Rejections carry
// graph.ErrCodeGraphInvalidQuery and never reach the store.
func (p *Policy) Normalize(q string) (string, error) {
	q = strings.TrimSpace(whitespaceRe.ReplaceAllString(q, " "))
	q = strings.TrimSpace(strings.TrimRight(q, ";"))
	if q == "" {
		return "", types.NewError(graph.ErrCodeGraphInvalidQuery, "empty cypher statement")
	}

	code := stripLiterals(q)
	if strings.Contains(code, ";") {
		return "", types.NewError(graph.ErrCodeGraphInvalidQuery, "multiple cypher statements are not allowed")
	}
	if procedureRe.MatchString(code) {
		return "", types.NewError(graph.ErrCodeGraphInvalidQuery, "procedure extensions are not allowed")
	}
	if m := forbiddenRe.FindStringSubmatch(code); m != nil {
		return "", types.NewError(graph.ErrCodeGraphInvalidQuery,
			fmt.Sprintf("clause %s is not allowed in a read-only query", strings.ToUpper(m[1])))
	}

	if p.config.DefaultLimit > 0 && !limitRe.MatchString(code) {
		q = fmt.Sprintf("%s LIMIT %d", q, p.config.DefaultLimit)
	}
	return q, nil
}

// stripLiterals blanks out quoted strings and backtick identifiers so clause
// detection only sees query structure. The result has the same length as q.
func stripLiterals(q string) string {
	out := []byte(q)
	var quote byte
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case quote == 0 && (c == '\'' || c == '"' || c == '`'):
			quote = c
		case quote != 0 && c == '\\' && i+1 < len(out):
			out[i], out[i+1] = ' ', ' '
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
			out[i] = ' '
		}
	}
	return string(out)
}
