package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/graphqa/cmd/graphqa/internal"
	"github.com/zero-day-ai/graphqa/internal/config"
	"github.com/zero-day-ai/graphqa/internal/quality"
	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/retrieval"
)

// executeCommand runs the root command against a fresh home directory.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	t.Setenv(config.EnvHome, t.TempDir())
	*globalFlags = GlobalFlags{OutputFormat: string(internal.FormatText)}
	schemaFormat = "xml"
	cfg = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGlobalFlags_Validate(t *testing.T) {
	tests := []struct {
		name    string
		flags   GlobalFlags
		wantErr string
	}{
		{name: "text", flags: GlobalFlags{OutputFormat: "text"}},
		{name: "json verbose", flags: GlobalFlags{OutputFormat: "json", Verbose: true}},
		{name: "unknown format", flags: GlobalFlags{OutputFormat: "yaml"}, wantErr: `invalid output format "yaml"`},
		{name: "verbose and quiet", flags: GlobalFlags{OutputFormat: "text", Verbose: true, Quiet: true}, wantErr: "cannot be used together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	f := GlobalFlags{OutputFormat: "json", Verbose: true, Quiet: true}
	assert.Equal(t, internal.FormatJSON, f.GetOutputFormat())
	assert.False(t, f.IsVerbose())
	assert.True(t, f.IsQuiet())
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "GraphQA")

	out, err = executeCommand(t, "version", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"goVersion"`)
}

func TestConfigCommands(t *testing.T) {
	t.Run("show masks secrets", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "sk-or-very-secret")
		out, err := executeCommand(t, "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "openrouter")
		assert.Contains(t, out, "********")
		assert.NotContains(t, out, "sk-or-very-secret")
	})

	t.Run("validate defaults", func(t *testing.T) {
		out, err := executeCommand(t, "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ configuration is valid")
	})

	t.Run("validate rejects bad file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))

		_, err := executeCommand(t, "config", "validate", "--config", path)
		require.Error(t, err)
		var cliErr *internal.CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, internal.ExitConfigError, cliErr.Code)
	})

	t.Run("explicit missing file", func(t *testing.T) {
		_, err := executeCommand(t, "config", "show", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load configuration")
	})
}

func TestSchemaCommand(t *testing.T) {
	out, err := executeCommand(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "<structure>")
	assert.Contains(t, out, `label="Patient"`)

	out, err = executeCommand(t, "schema", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Patient")
	assert.NotContains(t, out, "<structure>")

	_, err = executeCommand(t, "schema", "--format", "dot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema format")
}

func TestEvalConfig(t *testing.T) {
	cmd := evalCmd
	t.Cleanup(func() {
		evalFlags.numQuestions, evalFlags.minPassRate, evalFlags.sampleRate = 0, 0, 1.0
		cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	})

	base := config.DefaultConfig().Eval
	base.JSONL = "from-file.jsonl"

	require.NoError(t, cmd.ParseFlags([]string{"--num-questions", "3", "--min-pass-rate", "0.5"}))
	ec, err := evalConfig(cmd, base)
	require.NoError(t, err)
	assert.Equal(t, 3, ec.NumQuestions)
	assert.Equal(t, 0.5, ec.MinPassRate)
	assert.Equal(t, "from-file.jsonl", ec.JSONL)

	evalFlags.sampleRate = 1.5
	_, err = evalConfig(cmd, base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--sample-rate")
}

func TestAnswerFields(t *testing.T) {
	resp := &rag.Response{
		Answer:   "19 patients are allergic to seafood.",
		Graph:    rag.PartialAnswer{Text: "19"},
		Vector:   rag.PartialAnswer{Text: "4 patients"},
		Strategy: rag.StrategyMerged,
		Entities: []rag.EntityKeyword{{Key: "substance", Value: "seafood"}},
		Cypher:   "MATCH (s:Substance) RETURN count(s) LIMIT 10",
		Passages: []retrieval.TextPassage{{ID: 7, Text: "allergic to seafood", Score: 0.5}},
		Degraded: []string{"prune"},
		TraceID:  "abc",
	}

	labels := func(fields []internal.Field) []string {
		out := make([]string, len(fields))
		for i, f := range fields {
			out[i] = f.Label
		}
		return out
	}

	assert.Equal(t, []string{"Answer", "Graph", "Notes", "Strategy", "Degraded", "Trace"}, labels(answerFields(resp, false)))

	verbose := answerFields(resp, true)
	assert.Equal(t, []string{"Answer", "Graph", "Notes", "Strategy", "Degraded", "Entities", "Cypher", "Passages", "Trace"}, labels(verbose))
	assert.Equal(t, "substance=seafood", verbose[5].Value)
	assert.Equal(t, "[7 0.5000] allergic to seafood", verbose[7].Value)
}

func TestDatasetCommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "dataset.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("quality:\n  dataset:\n    path: "+dbPath+"\n"), 0o600))
	t.Cleanup(func() { datasetListLimit = 20 })

	t.Run("empty", func(t *testing.T) {
		out, err := executeCommand(t, "dataset", "stats", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, quality.DefaultDatasetName)
		assert.Contains(t, out, "Items:")

		out, err = executeCommand(t, "dataset", "list", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "no items collected")
	})

	dcfg := quality.DefaultDatasetConfig()
	dcfg.Path = dbPath
	ds, err := quality.OpenDataset(context.Background(), dcfg, nil)
	require.NoError(t, err)
	for _, item := range []quality.DatasetItem{
		{Input: "How many patients are allergic to seafood?", Output: "19", Model: "mock-model",
			Metrics: map[string]float64{quality.MetricUsefulness: 0.9, quality.MetricHallucination: 0.0}},
		{Input: "What is the average age of asthma patients?", Output: "42", Model: "mock-model",
			Metrics: map[string]float64{quality.MetricUsefulness: 0.5, quality.MetricHallucination: 0.4}},
	} {
		_, err := ds.Add(context.Background(), item)
		require.NoError(t, err)
	}
	require.NoError(t, ds.Close())

	t.Run("stats", func(t *testing.T) {
		out, err := executeCommand(t, "dataset", "stats", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, out, "usefulness")
		assert.Contains(t, out, ">= 0.80")
		assert.Contains(t, out, "<= 0.10")

		out, err = executeCommand(t, "dataset", "stats", "--config", cfgPath, "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"total_items": 2`)
		assert.Contains(t, out, `"items_above_threshold": 1`)
	})

	t.Run("list", func(t *testing.T) {
		out, err := executeCommand(t, "dataset", "list", "--config", cfgPath, "--limit", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "average age")
		assert.NotContains(t, out, "seafood")
		assert.Contains(t, out, "hallucination=0.40 usefulness=0.50")

		_, err = executeCommand(t, "dataset", "list", "--config", cfgPath, "--limit", "-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--limit")
	})
}
