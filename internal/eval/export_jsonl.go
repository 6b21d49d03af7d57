package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zero-day-ai/graphqa/internal/types"
)

// JSONLEntry is one line of the export.
type JSONLEntry struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Entry types for JSONL export
const (
	EntryTypeResult  = "result"
	EntryTypeSummary = "summary"
)

// ExportJSONL writes results and summary to path. The file is written to a
// temporary name and renamed so readers never see a partial export.
func ExportJSONL(path string, results []Result, summary *Summary) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.WrapError(ErrExportFailed, fmt.Sprintf("failed to create directory %s", dir), err)
	}

	tempFile, err := os.CreateTemp(dir, ".eval-*.jsonl.tmp")
	if err != nil {
		return types.WrapError(ErrExportFailed, "failed to create temporary file", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if err := WriteJSONL(tempFile, results, summary); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return types.WrapError(ErrExportFailed, "failed to close temporary file", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return types.WrapError(ErrExportFailed, fmt.Sprintf("failed to rename %s to %s", tempPath, path), err)
	}

	// Renamed; nothing left to clean up.
	tempFile = nil
	return nil
}

// WriteJSONL writes one result entry per case, then the summary.
func WriteJSONL(w io.Writer, results []Result, summary *Summary) error {
	encoder := json.NewEncoder(w)
	now := time.Now().UTC()

	for _, r := range results {
		if err := encoder.Encode(JSONLEntry{Type: EntryTypeResult, Timestamp: now, Data: r}); err != nil {
			return types.WrapError(ErrExportFailed, fmt.Sprintf("failed to encode result %d", r.Index), err)
		}
	}
	if summary != nil {
		if err := encoder.Encode(JSONLEntry{Type: EntryTypeSummary, Timestamp: now, Data: summary}); err != nil {
			return types.WrapError(ErrExportFailed, "failed to encode summary", err)
		}
	}
	return nil
}
