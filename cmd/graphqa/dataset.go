package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/graphqa/cmd/graphqa/internal"
	"github.com/zero-day-ai/graphqa/internal/quality"
)

var datasetListLimit int

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect the prompt optimization dataset",
	Long: `Scored answers are collected into a sqlite dataset at
quality.dataset.path when quality.dataset.enabled is set. Each item keeps
the question, the answer, the prompt and model that produced it and every
metric it was scored on.`,
}

var datasetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise dataset metrics against their thresholds",
	Args:  cobra.NoArgs,
	RunE:  runDatasetStats,
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collected items, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDatasetList,
}

func init() {
	datasetListCmd.Flags().IntVarP(&datasetListLimit, "limit", "n", 20, "Maximum items to list (0 lists all)")

	datasetCmd.AddCommand(datasetStatsCmd)
	datasetCmd.AddCommand(datasetListCmd)
}

func openDataset(cmd *cobra.Command) (*quality.Dataset, error) {
	ds, err := quality.OpenDataset(cmd.Context(), cfg.Quality.Dataset, nil)
	if err != nil {
		return nil, internal.WrapError(internal.ExitDatabaseError, "failed to open dataset", err)
	}
	return ds, nil
}

func runDatasetStats(cmd *cobra.Command, args []string) error {
	ds, err := openDataset(cmd)
	if err != nil {
		return err
	}
	defer ds.Close()

	stats, err := ds.Stats(cmd.Context())
	if err != nil {
		return internal.WrapError(internal.ExitDatabaseError, "failed to read dataset stats", err)
	}

	f := formatter(cmd)
	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return f.PrintJSON(stats)
	}

	if err := f.PrintFields([]internal.Field{
		{Label: "Dataset", Value: stats.Dataset},
		{Label: "Items", Value: strconv.Itoa(stats.Total)},
	}); err != nil {
		return err
	}
	if len(stats.Metrics) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(stats.Metrics))
	for _, name := range stats.MetricNames() {
		m := stats.Metrics[name]
		threshold := ">= " + formatScore(m.Threshold)
		if m.LowerIsBetter {
			threshold = "<= " + formatScore(m.Threshold)
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(m.Count),
			formatScore(m.Average),
			formatScore(m.Highest),
			formatScore(m.Lowest),
			threshold,
			strconv.Itoa(m.AboveThreshold),
		})
	}
	return f.PrintTable([]string{"METRIC", "COUNT", "AVG", "HIGH", "LOW", "THRESHOLD", "MEETING"}, rows)
}

func runDatasetList(cmd *cobra.Command, args []string) error {
	if datasetListLimit < 0 {
		return internal.NewCLIError(internal.ExitError, "--limit cannot be negative")
	}

	ds, err := openDataset(cmd)
	if err != nil {
		return err
	}
	defer ds.Close()

	items, err := ds.List(cmd.Context(), datasetListLimit)
	if err != nil {
		return internal.WrapError(internal.ExitDatabaseError, "failed to list dataset items", err)
	}

	f := formatter(cmd)
	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return f.PrintJSON(items)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "no items collected")
		return err
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.CreatedAt.Local().Format("2006-01-02 15:04"),
			item.Model,
			shorten(item.Input, 60),
			formatMetrics(item.Metrics),
		})
	}
	return f.PrintTable([]string{"ID", "CREATED", "MODEL", "QUESTION", "METRICS"}, rows)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatMetrics renders metrics as name=value pairs in name order.
func formatMetrics(metrics map[string]float64) string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+formatScore(metrics[name]))
	}
	return strings.Join(parts, " ")
}

// shorten collapses whitespace and cuts s to at most n runes.
func shorten(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
