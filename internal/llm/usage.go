package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/singleflight"
)

const fallbackEncoding = "cl100k_base"

var (
	encodingsMu   sync.Mutex
	encodings     = map[string]*tiktoken.Tiktoken{}
	encodingLoads singleflight.Group

	// loadEncoding may fetch the BPE ranks over the network.
	loadEncoding = func(model string) *tiktoken.Tiktoken {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(fallbackEncoding)
			if err != nil {
				return nil
			}
		}
		return enc
	}
)

// CountTokens returns the token count of text for model. Unknown models use the
// cl100k_base encoding; if no encoding can be loaded the count falls back to
// one token per four bytes.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := encodingFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// EstimateUsage fills usage for backends that do not report token counts.
func EstimateUsage(req CompletionRequest, resp *CompletionResponse) CompletionTokenUsage {
	model := req.Model
	if resp != nil && resp.Model != "" {
		model = resp.Model
	}
	prompt := CountTokens(model, req.Prompt())
	completion := CountTokens(model, resp.Content())
	return CompletionTokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Estimated:        true,
	}
}

// encodingFor returns the cached encoding for model. Loading happens outside
// encodingsMu so a slow download for one model never blocks cached lookups;
// concurrent loads of the same model share one call.
func encodingFor(model string) *tiktoken.Tiktoken {
	encodingsMu.Lock()
	enc, ok := encodings[model]
	encodingsMu.Unlock()
	if ok {
		return enc
	}

	v, _, _ := encodingLoads.Do(model, func() (any, error) {
		enc := loadEncoding(model)
		encodingsMu.Lock()
		encodings[model] = enc
		encodingsMu.Unlock()
		return enc, nil
	})
	return v.(*tiktoken.Tiktoken)
}
