package retrieval

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// Note is one clinical note in the index, keyed by its source record.
type Note struct {
	RecordID  int64  `json:"record_id"`
	Prefix    string `json:"prefix,omitempty"`
	Surname   string `json:"surname,omitempty"`
	GivenName string `json:"given_name,omitempty"`
	Text      string `json:"note"`
}

// Validate ensures the note can be indexed.
func (n Note) Validate() error {
	if n.RecordID <= 0 {
		return types.NewError(ErrCodeInvalidNote, fmt.Sprintf("record_id must be positive, got %d", n.RecordID))
	}
	if strings.TrimSpace(n.Text) == "" {
		return types.NewError(ErrCodeInvalidNote, fmt.Sprintf("note %d has no text", n.RecordID))
	}
	return nil
}

// Hit is one result of a single-mode search. For vector hits Score is the
// cosine similarity; for keyword hits it is the negated bm25 rank, so in
// both cases higher is better.
type Hit struct {
	ID    int64
	Text  string
	Score float64
}

// TextPassage is one fused retrieval result.
type TextPassage struct {
	ID    int64   `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// PassageContext joins passage texts, one per line, in rank order. It
// returns "" for an empty list.
func PassageContext(passages []TextPassage) string {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, strings.TrimSpace(p.Text))
	}
	return strings.Join(texts, "\n")
}
