package retrieval

import (
	"fmt"
	"sort"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// Fusion methods.
const (
	FusionRRF      = "rrf"
	FusionWeighted = "weighted"
)

// DefaultRRFK is the reciprocal-rank constant.
const DefaultRRFK = 60

// FusionConfig selects how vector and keyword rankings are merged.
type FusionConfig struct {
	// Method is "rrf" (reciprocal rank fusion) or "weighted".
	Method string `mapstructure:"method" yaml:"method" validate:"oneof=rrf weighted"`

	// K is the RRF rank constant.
	K int `mapstructure:"k" yaml:"k" validate:"min=1"`

	// VectorWeight is the share of the vector score in weighted fusion; the
	// keyword score gets the rest.
	VectorWeight float64 `mapstructure:"vector_weight" yaml:"vector_weight" validate:"min=0,max=1"`
}

// DefaultFusionConfig returns RRF with k=60.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		Method:       FusionRRF,
		K:            DefaultRRFK,
		VectorWeight: 0.5,
	}
}

// Validate checks the fusion settings.
func (c FusionConfig) Validate() error {
	switch c.Method {
	case FusionRRF:
		if c.K <= 0 {
			return types.NewError(ErrCodeInvalidConfig, fmt.Sprintf("rrf k must be positive, got %d", c.K))
		}
	case FusionWeighted:
		if c.VectorWeight < 0 || c.VectorWeight > 1 {
			return types.NewError(ErrCodeInvalidConfig,
				fmt.Sprintf("vector_weight must be between 0 and 1, got %f", c.VectorWeight))
		}
	default:
		return types.NewError(ErrCodeInvalidConfig, fmt.Sprintf("unknown fusion method %q", c.Method))
	}
	return nil
}

// Fuse merges the two rankings into at most topK passages. Each id appears
// once; the output is ordered by fused score descending, then id ascending.
// Input hit lists must already be ordered best first.
func Fuse(cfg FusionConfig, vector, keyword []Hit, topK int) []TextPassage {
	var scores map[int64]float64
	switch cfg.Method {
	case FusionWeighted:
		scores = weightedScores(vector, keyword, cfg.VectorWeight)
	default:
		k := cfg.K
		if k <= 0 {
			k = DefaultRRFK
		}
		scores = rrfScores(vector, keyword, k)
	}

	texts := make(map[int64]string, len(scores))
	for _, list := range [][]Hit{vector, keyword} {
		for _, h := range list {
			if _, ok := texts[h.ID]; !ok {
				texts[h.ID] = h.Text
			}
		}
	}

	passages := make([]TextPassage, 0, len(scores))
	for id, score := range scores {
		passages = append(passages, TextPassage{ID: id, Text: texts[id], Score: score})
	}
	sort.Slice(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].ID < passages[j].ID
	})

	if topK >= 0 && len(passages) > topK {
		passages = passages[:topK]
	}
	return passages
}

// rrfScores sums 1/(k+rank) over both lists, rank starting at 1. A duplicate
// id within one list only counts at its best rank.
func rrfScores(vector, keyword []Hit, k int) map[int64]float64 {
	scores := make(map[int64]float64)
	for _, list := range [][]Hit{vector, keyword} {
		seen := make(map[int64]bool, len(list))
		for i, h := range list {
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			scores[h.ID] += 1 / float64(k+i+1)
		}
	}
	return scores
}

// weightedScores min-max normalises each list to [0,1] and combines them.
// A passage missing from one list scores 0 for that list.
func weightedScores(vector, keyword []Hit, vectorWeight float64) map[int64]float64 {
	scores := make(map[int64]float64)
	for id, s := range normalise(vector) {
		scores[id] += vectorWeight * s
	}
	for id, s := range normalise(keyword) {
		scores[id] += (1 - vectorWeight) * s
	}
	return scores
}

func normalise(hits []Hit) map[int64]float64 {
	out := make(map[int64]float64, len(hits))
	if len(hits) == 0 {
		return out
	}

	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = min(lo, h.Score)
		hi = max(hi, h.Score)
	}
	for _, h := range hits {
		if _, ok := out[h.ID]; ok {
			continue
		}
		if hi == lo {
			out[h.ID] = 1
			continue
		}
		out[h.ID] = (h.Score - lo) / (hi - lo)
	}
	return out
}
