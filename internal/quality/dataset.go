package quality

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zero-day-ai/graphqa/internal/database"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// DefaultDatasetName is the dataset scored answers are collected into.
const DefaultDatasetName = "graphqa_prompt_optimization"

// DefaultThreshold applies to metrics without their own threshold.
const DefaultThreshold = 0.8

// DatasetConfig controls collection of scored answers for prompt
// optimization.
type DatasetConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	Name    string `mapstructure:"name" yaml:"name"`

	// Thresholds mark an item as good for a metric. For hallucination and
	// moderation the value must be at or below the threshold, for every
	// other metric at or above it.
	Thresholds       map[string]float64 `mapstructure:"thresholds" yaml:"thresholds"`
	DefaultThreshold float64            `mapstructure:"default_threshold" yaml:"default_threshold"`
}

// DefaultDatasetConfig returns the thresholds used to pick optimization
// examples. Collection is off until enabled.
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Name: DefaultDatasetName,
		Thresholds: map[string]float64{
			MetricUsefulness:      0.8,
			MetricAnswerRelevance: 0.9,
			MetricHallucination:   0.1,
			MetricModeration:      0.3,
		},
		DefaultThreshold: DefaultThreshold,
	}
}

// Validate checks the dataset name and thresholds.
func (c DatasetConfig) Validate() error {
	if c.Enabled && strings.TrimSpace(c.Path) == "" {
		return types.NewError(ErrInvalidConfig, "dataset path is required when the dataset is enabled")
	}
	if strings.TrimSpace(c.Name) == "" {
		return types.NewError(ErrInvalidConfig, "dataset name cannot be empty")
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return types.NewError(ErrInvalidConfig, fmt.Sprintf("default threshold %v outside [0,1]", c.DefaultThreshold))
	}
	for metric, t := range c.Thresholds {
		if t < 0 || t > 1 {
			return types.NewError(ErrInvalidConfig, fmt.Sprintf("threshold for %s %v outside [0,1]", metric, t))
		}
	}
	return nil
}

// Threshold returns the threshold for metric.
func (c DatasetConfig) Threshold(metric string) float64 {
	if t, ok := c.Thresholds[metric]; ok {
		return t
	}
	return c.DefaultThreshold
}

// Meets reports whether value is on the good side of metric's threshold.
func (c DatasetConfig) Meets(metric string, value float64) bool {
	if LowerIsBetter(metric) {
		return value <= c.Threshold(metric)
	}
	return value >= c.Threshold(metric)
}

// LowerIsBetter reports whether 0 is the good end of metric.
func LowerIsBetter(metric string) bool {
	return metric == MetricHallucination || metric == MetricModeration
}

// DatasetItem is one scored answer.
type DatasetItem struct {
	ID        int64              `json:"id"`
	Dataset   string             `json:"dataset"`
	TraceID   string             `json:"trace_id,omitempty"`
	Input     string             `json:"input"`
	Output    string             `json:"output"`
	Metrics   map[string]float64 `json:"metrics"`
	Prompt    string             `json:"prompt,omitempty"`
	Model     string             `json:"model,omitempty"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// MetricStats summarises one metric over a dataset.
type MetricStats struct {
	Count          int     `json:"count"`
	Average        float64 `json:"average"`
	Highest        float64 `json:"highest"`
	Lowest         float64 `json:"lowest"`
	Threshold      float64 `json:"threshold"`
	LowerIsBetter  bool    `json:"lower_is_better"`
	AboveThreshold int     `json:"items_above_threshold"`
}

// DatasetStats summarises a dataset.
type DatasetStats struct {
	Dataset string                 `json:"dataset"`
	Total   int                    `json:"total_items"`
	Metrics map[string]MetricStats `json:"metrics"`
}

// MetricNames returns the metrics in s, sorted.
func (s DatasetStats) MetricNames() []string {
	names := make([]string, 0, len(s.Metrics))
	for name := range s.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dataset stores scored answers in sqlite. It implements Collector, so a
// Battery can feed it directly.
type Dataset struct {
	db     *database.DB
	cfg    DatasetConfig
	logger *slog.Logger
}

// OpenDataset opens or creates the dataset file at cfg.Path.
func OpenDataset(ctx context.Context, cfg DatasetConfig, logger *slog.Logger) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Path != database.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, types.WrapError(ErrDatasetFailed, "failed to create dataset directory", err)
		}
	}

	db, err := database.OpenWithConfig(database.DefaultConfig(cfg.Path))
	if err != nil {
		return nil, err
	}
	if err := db.InitDatasetSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return NewDataset(db, cfg, logger), nil
}

// NewDataset wraps an already migrated database.
func NewDataset(db *database.DB, cfg DatasetConfig, logger *slog.Logger) *Dataset {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dataset{db: db, cfg: cfg, logger: logger}
}

// Close closes the database.
func (d *Dataset) Close() error {
	return d.db.Close()
}

// Name returns the dataset name items are stored under.
func (d *Dataset) Name() string {
	return d.cfg.Name
}

// Collect stores a scored answer. Every scored answer is kept, whether or
// not it meets the thresholds; the thresholds only drive Stats.
func (d *Dataset) Collect(ctx context.Context, ref TraceRef, in Input, scores []Score) error {
	metrics := make(map[string]float64, len(scores))
	var good []string
	for _, s := range scores {
		metrics[s.Name] = s.Value
		if d.cfg.Meets(s.Name, s.Value) {
			good = append(good, s.Name)
		}
	}

	id, err := d.Add(ctx, DatasetItem{
		TraceID:  ref.TraceID,
		Input:    in.Question,
		Output:   in.Answer,
		Metrics:  metrics,
		Prompt:   in.Prompt,
		Model:    in.Model,
		Metadata: in.Metadata,
	})
	if err != nil {
		return err
	}
	d.logger.DebugContext(ctx, "collected scored answer",
		"dataset", d.cfg.Name,
		"item", id,
		"trace_id", ref.TraceID,
		"meets_threshold", good,
	)
	return nil
}

// Add stores item under the configured dataset name and returns its id.
func (d *Dataset) Add(ctx context.Context, item DatasetItem) (int64, error) {
	metadata := "{}"
	if len(item.Metadata) > 0 {
		data, err := json.Marshal(item.Metadata)
		if err != nil {
			return 0, types.WrapError(ErrDatasetFailed, "failed to encode metadata", err)
		}
		metadata = string(data)
	}

	var id int64
	err := d.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO dataset_items (dataset, trace_id, input, output, prompt, model, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.cfg.Name, item.TraceID, item.Input, item.Output, item.Prompt, item.Model, metadata)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO dataset_scores (item_id, metric, value) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for metric, value := range item.Metrics {
			if _, err := stmt.ExecContext(ctx, id, metric, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, types.WrapError(ErrDatasetFailed, "failed to store dataset item", err)
	}
	return id, nil
}

// List returns up to limit items, newest first. limit <= 0 returns all.
func (d *Dataset) List(ctx context.Context, limit int) ([]DatasetItem, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, dataset, trace_id, input, output, prompt, model, metadata, created_at
		FROM dataset_items WHERE dataset = ? ORDER BY id DESC LIMIT ?`, d.cfg.Name, limit)
	if err != nil {
		return nil, types.WrapError(ErrDatasetFailed, "failed to list dataset items", err)
	}

	var (
		items []DatasetItem
		index = map[int64]int{}
	)
	for rows.Next() {
		var (
			item     DatasetItem
			metadata string
		)
		if err := rows.Scan(&item.ID, &item.Dataset, &item.TraceID, &item.Input, &item.Output,
			&item.Prompt, &item.Model, &metadata, &item.CreatedAt); err != nil {
			rows.Close()
			return nil, types.WrapError(ErrDatasetFailed, "failed to scan dataset item", err)
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &item.Metadata); err != nil {
				rows.Close()
				return nil, types.WrapError(ErrDatasetFailed, fmt.Sprintf("item %d has invalid metadata", item.ID), err)
			}
		}
		item.Metrics = map[string]float64{}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, types.WrapError(ErrDatasetFailed, "failed to list dataset items", err)
	}
	rows.Close()

	if len(items) == 0 {
		return items, nil
	}
	if err := d.loadScores(ctx, items, index); err != nil {
		return nil, err
	}
	return items, nil
}

func (d *Dataset) loadScores(ctx context.Context, items []DatasetItem, index map[int64]int) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")
	args := make([]any, len(items))
	for i, item := range items {
		args[i] = item.ID
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT item_id, metric, value FROM dataset_scores WHERE item_id IN ("+placeholders+")", args...)
	if err != nil {
		return types.WrapError(ErrDatasetFailed, "failed to load dataset scores", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     int64
			metric string
			value  float64
		)
		if err := rows.Scan(&id, &metric, &value); err != nil {
			return types.WrapError(ErrDatasetFailed, "failed to scan dataset score", err)
		}
		items[index[id]].Metrics[metric] = value
	}
	return rows.Err()
}

// Stats summarises every metric in the dataset against its threshold.
func (d *Dataset) Stats(ctx context.Context) (DatasetStats, error) {
	stats := DatasetStats{Dataset: d.cfg.Name, Metrics: map[string]MetricStats{}}

	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM dataset_items WHERE dataset = ?", d.cfg.Name).Scan(&stats.Total); err != nil {
		return stats, types.WrapError(ErrDatasetFailed, "failed to count dataset items", err)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT s.metric, COUNT(*), AVG(s.value), MAX(s.value), MIN(s.value)
		FROM dataset_scores s JOIN dataset_items i ON i.id = s.item_id
		WHERE i.dataset = ?
		GROUP BY s.metric`, d.cfg.Name)
	if err != nil {
		return stats, types.WrapError(ErrDatasetFailed, "failed to aggregate dataset scores", err)
	}
	for rows.Next() {
		var (
			name string
			m    MetricStats
		)
		if err := rows.Scan(&name, &m.Count, &m.Average, &m.Highest, &m.Lowest); err != nil {
			rows.Close()
			return stats, types.WrapError(ErrDatasetFailed, "failed to scan dataset stats", err)
		}
		m.Threshold = d.cfg.Threshold(name)
		m.LowerIsBetter = LowerIsBetter(name)
		stats.Metrics[name] = m
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, types.WrapError(ErrDatasetFailed, "failed to aggregate dataset scores", err)
	}
	rows.Close()

	for name, m := range stats.Metrics {
		cmp := ">="
		if m.LowerIsBetter {
			cmp = "<="
		}
		if err := d.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM dataset_scores s JOIN dataset_items i ON i.id = s.item_id
			WHERE i.dataset = ? AND s.metric = ? AND s.value `+cmp+` ?`,
			d.cfg.Name, name, m.Threshold).Scan(&m.AboveThreshold); err != nil {
			return stats, types.WrapError(ErrDatasetFailed, "failed to count items above threshold", err)
		}
		stats.Metrics[name] = m
	}
	return stats, nil
}
