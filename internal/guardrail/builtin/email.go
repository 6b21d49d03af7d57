package builtin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/guardrail"
)

// DefaultMaskChar replaces hidden characters when none is configured.
const DefaultMaskChar = "*"

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

// emailChars are the characters the email pattern can match. A mask
// character from this set could make masked text match again.
const emailChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789._%+-@|"

// CommonDomains are consumer mail providers matched by BlockCommonDomains.
var CommonDomains = []string{
	"gmail.com", "yahoo.com", "hotmail.com", "outlook.com",
	"aol.com", "icloud.com", "protonmail.com", "mail.com",
}

// EmailGuardrailConfig configures an EmailGuardrail.
type EmailGuardrailConfig struct {
	Name               string   `mapstructure:"name" yaml:"name"`
	Action             string   `mapstructure:"action" yaml:"action"`
	Severity           string   `mapstructure:"severity" yaml:"severity"`
	MaskEmails         bool     `mapstructure:"mask_emails" yaml:"mask_emails"`
	MaskChar           string   `mapstructure:"mask_char" yaml:"mask_char"`
	BlockCommonDomains bool     `mapstructure:"block_common_domains" yaml:"block_common_domains"`
	AllowedDomains     []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	BlockedDomains     []string `mapstructure:"blocked_domains" yaml:"blocked_domains"`
}

// EmailGuardrail detects email addresses and masks the ones that violate its
// domain policy.
type EmailGuardrail struct {
	name        string
	action      guardrail.Action
	severity    guardrail.Severity
	mask        bool
	maskChar    string
	blockCommon bool
	allowed     map[string]struct{}
	blocked     map[string]struct{}
	common      map[string]struct{}
}

var _ guardrail.Guardrail = (*EmailGuardrail)(nil)

// NewEmailGuardrail creates an email guardrail. Action defaults to warn and
// severity to medium.
func NewEmailGuardrail(cfg EmailGuardrailConfig) (*EmailGuardrail, error) {
	g := &EmailGuardrail{
		name:        cfg.Name,
		action:      guardrail.ActionWarn,
		severity:    guardrail.SeverityMedium,
		mask:        cfg.MaskEmails,
		maskChar:    cfg.MaskChar,
		blockCommon: cfg.BlockCommonDomains,
		allowed:     domainSet(cfg.AllowedDomains),
		blocked:     domainSet(cfg.BlockedDomains),
		common:      domainSet(CommonDomains),
	}
	if g.name == "" {
		g.name = "email"
	}
	if g.maskChar == "" {
		g.maskChar = DefaultMaskChar
	}
	if len([]rune(g.maskChar)) != 1 {
		return nil, fmt.Errorf("mask_char must be a single character, got %q", cfg.MaskChar)
	}
	if strings.ContainsAny(g.maskChar, emailChars) {
		return nil, fmt.Errorf("mask_char %q must not be a valid email character", cfg.MaskChar)
	}

	if cfg.Action != "" {
		a, err := guardrail.ParseAction(cfg.Action)
		if err != nil {
			return nil, err
		}
		g.action = a
	}
	if cfg.Severity != "" {
		s, err := guardrail.ParseSeverity(cfg.Severity)
		if err != nil {
			return nil, err
		}
		g.severity = s
	}
	return g, nil
}

// Name returns the configured guardrail name.
func (g *EmailGuardrail) Name() string {
	return g.name
}

// Type returns GuardrailTypePII.
func (g *EmailGuardrail) Type() guardrail.GuardrailType {
	return guardrail.GuardrailTypePII
}

// MaskingEnabled reports whether Mask alters text.
func (g *EmailGuardrail) MaskingEnabled() bool {
	return g.mask
}

// Validate finds email addresses and reports the ones that violate the
// domain policy. The message carries counts only.
func (g *EmailGuardrail) Validate(text string) guardrail.Result {
	res := guardrail.Result{
		Guardrail: g.name,
		Action:    g.action,
		Severity:  g.severity,
	}

	emails := emailPattern.FindAllString(text, -1)
	if len(emails) == 0 {
		res.Message = "no email addresses detected"
		res.Details = map[string]any{"total_emails": 0}
		return res
	}

	var violating []string
	blocked, common := 0, 0
	for _, email := range emails {
		domain := domainOf(email)
		if _, ok := g.blocked[domain]; ok {
			blocked++
		}
		if _, ok := g.common[domain]; ok && g.blockCommon {
			common++
		}
		if g.violates(domain) {
			violating = append(violating, email)
		}
	}

	res.Details = map[string]any{
		"total_emails":         len(emails),
		"violating_emails":     len(violating),
		"blocked_domain_hits":  blocked,
		"common_domain_hits":   common,
		"block_common_domains": g.blockCommon,
		"has_allowed_domains":  len(g.allowed) > 0,
		"has_blocked_domains":  len(g.blocked) > 0,
	}

	if len(violating) == 0 {
		res.Message = fmt.Sprintf("%d email address(es) detected in allowed domains", len(emails))
		return res
	}

	res.Triggered = true
	res.EntitiesFound = violating
	res.Message = fmt.Sprintf("%d email address(es) violate the email policy", len(violating))
	if g.mask {
		res.MaskedText = g.Mask(text)
	}
	return res
}

func (g *EmailGuardrail) violates(domain string) bool {
	if _, ok := g.blocked[domain]; ok {
		return true
	}
	if _, ok := g.common[domain]; ok && g.blockCommon {
		return true
	}
	if len(g.allowed) > 0 {
		_, ok := g.allowed[domain]
		return !ok
	}
	return true
}

// Mask replaces each violating email with a masked form of the same length.
// The username keeps its first and last character and every domain label
// keeps its first character. Masked text never matches the email pattern
// again, so masking is idempotent.
func (g *EmailGuardrail) Mask(text string) string {
	if !g.mask {
		return text
	}
	return emailPattern.ReplaceAllStringFunc(text, func(email string) string {
		if !g.violates(domainOf(email)) {
			return email
		}
		return maskEmail(email, g.maskChar)
	})
}

func maskEmail(email, maskChar string) string {
	at := strings.LastIndex(email, "@")
	username, domain := email[:at], email[at+1:]

	var b strings.Builder
	b.Grow(len(email))
	if len(username) <= 2 {
		b.WriteString(strings.Repeat(maskChar, len(username)))
	} else {
		b.WriteByte(username[0])
		b.WriteString(strings.Repeat(maskChar, len(username)-2))
		b.WriteByte(username[len(username)-1])
	}
	b.WriteByte('@')

	for i, label := range strings.Split(domain, ".") {
		if i > 0 {
			b.WriteByte('.')
		}
		if len(label) <= 1 {
			b.WriteString(label)
			continue
		}
		b.WriteByte(label[0])
		b.WriteString(strings.Repeat(maskChar, len(label)-1))
	}
	return b.String()
}

func domainOf(email string) string {
	return strings.ToLower(email[strings.LastIndex(email, "@")+1:])
}

func domainSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			set[d] = struct{}{}
		}
	}
	return set
}
