package config

import (
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/graphqa/internal/llm"
)

const masked = "********"

// Masked returns a copy of cfg with credentials replaced. Unresolved
// ${VAR} references are kept since they name a variable, not a secret.
func Masked(cfg *Config) *Config {
	out := *cfg

	out.LLM.Providers = make(map[string]llm.ProviderConfig, len(cfg.LLM.Providers))
	for name, p := range cfg.LLM.Providers {
		p.APIKey = mask(p.APIKey)
		out.LLM.Providers[name] = p
	}
	out.Embedder.APIKey = mask(cfg.Embedder.APIKey)
	out.Graph.Password = mask(cfg.Graph.Password)
	out.Langfuse.PublicKey = mask(cfg.Langfuse.PublicKey)
	out.Langfuse.SecretKey = mask(cfg.Langfuse.SecretKey)
	return &out
}

func mask(s string) string {
	if s == "" || (strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}")) {
		return s
	}
	return masked
}

// Show writes cfg as YAML with credentials masked.
func Show(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Masked(cfg)); err != nil {
		return err
	}
	return enc.Close()
}
