package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zero-day-ai/graphqa/cmd/graphqa/internal"
	"github.com/zero-day-ai/graphqa/internal/retrieval"
)

var indexBatchSize int

var indexCmd = &cobra.Command{
	Use:   "index <notes.json>",
	Short: "Embed clinical notes into the note index",
	Long: `Load notes from a JSON array or JSON-lines file, embed them with the
configured embedder and write them to the sqlite note index at
retrieval.index_path. Each record carries record_id, prefix, surname,
given_name and note. Re-indexing a record replaces it.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&indexBatchSize, "batch-size", 0, "Notes per embedding call (default: embedder.batch_size)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	notes, err := retrieval.LoadNotes(args[0])
	if err != nil {
		return err
	}

	e, err := newEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	emb, err := e.newEmbedder()
	if err != nil {
		return err
	}
	store, err := e.openNotes(ctx, true)
	if err != nil {
		return internal.WrapError(internal.ExitDatabaseError, "failed to open note index", err)
	}

	batch := indexBatchSize
	if batch <= 0 {
		batch = cfg.Embedder.BatchSize
	}

	var progress func(done, total int)
	if !globalFlags.IsQuiet() && globalFlags.GetOutputFormat() == internal.FormatText {
		errOut := cmd.ErrOrStderr()
		progress = func(done, total int) {
			fmt.Fprintf(errOut, "\r%s %d/%d notes", color.CyanString("indexing"), done, total)
			if done == total {
				fmt.Fprintln(errOut)
			}
		}
	}

	stats, err := retrieval.NewIndexer(store, emb, batch, e.logger).Index(ctx, notes, progress)
	if err != nil {
		return err
	}
	if err := store.Optimize(ctx); err != nil {
		e.logger.Warn("fts optimize failed", "error", err)
	}
	total, err := store.Count(ctx)
	if err != nil {
		return internal.WrapError(internal.ExitDatabaseError, "failed to count indexed notes", err)
	}

	return formatter(cmd).PrintFields([]internal.Field{
		{Label: "Index", Value: cfg.Retrieval.IndexPath},
		{Label: "Notes", Value: strconv.Itoa(stats.Notes)},
		{Label: "Total", Value: strconv.Itoa(total)},
		{Label: "Batches", Value: strconv.Itoa(stats.Batches)},
		{Label: "Model", Value: stats.Model},
		{Label: "Dimensions", Value: strconv.Itoa(stats.Dimensions)},
		{Label: "Duration", Value: stats.Duration.Round(time.Millisecond).String()},
	})
}
