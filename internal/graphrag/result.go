package graphrag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// GraphResult is the outcome of running one statement. Rows are in the
// order the store returned them. A failed execution has Err set and no rows.
type GraphResult struct {
	Query    string
	Columns  []string
	Rows     []map[string]any
	Duration time.Duration
	Err      error
}

// FailedResult records a statement that could not be executed.
func FailedResult(query string, err error) GraphResult {
	return GraphResult{Query: query, Err: err}
}

// Failed reports whether execution failed.
func (r GraphResult) Failed() bool {
	return r.Err != nil
}

// FailureCode returns the error code of a failed execution, or "" on success.
func (r GraphResult) FailureCode() types.ErrorCode {
	if r.Err == nil {
		return ""
	}
	return types.CodeOf(r.Err)
}

// HasContext reports whether the result carries rows worth answering from.
func (r GraphResult) HasContext() bool {
	return r.Err == nil && len(r.Rows) > 0
}

// Context renders the statement and its rows in the block layout the answer
// prompt expects. It returns "" when there is nothing to answer from.
func (r GraphResult) Context() string {
	if !r.HasContext() {
		return ""
	}
	return fmt.Sprintf("<CYPHER>\n%s\n</CYPHER>\n\n<RESULT>\n%s\n</RESULT>", r.Query, r.formatRows())
}

// formatRows writes one JSON object per row with keys in column order.
func (r GraphResult) formatRows() string {
	columns := r.Columns
	if len(columns) == 0 && len(r.Rows) > 0 {
		for k := range r.Rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	lines := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		var b strings.Builder
		b.WriteByte('{')
		for i, col := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			key, _ := json.Marshal(col)
			b.Write(key)
			b.WriteString(": ")
			b.WriteString(formatValue(row[col]))
		}
		b.WriteByte('}')
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return string(data)
}
