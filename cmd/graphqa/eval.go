package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/graphqa/cmd/graphqa/internal"
	"github.com/zero-day-ai/graphqa/internal/eval"
)

var evalFlags struct {
	numQuestions int
	casesFile    string
	jsonl        string
	minPassRate  float64
	sampleRate   float64
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run evaluation questions through the pipeline",
	Long: `Run the built-in FHIR questions, or the cases in --cases, through the full
pipeline. Each answer must contain every expected value, matched
case-insensitively with digit and number-word variants. Every answer is
scored by the quality battery unless --sample-rate lowers it.

Exits with status 2 when the pass rate is below --min-pass-rate.`,
	Example: `  graphqa eval --num-questions 3
  graphqa eval --cases cases.yaml --jsonl results.jsonl --min-pass-rate 0.8`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	f := evalCmd.Flags()
	f.IntVarP(&evalFlags.numQuestions, "num-questions", "n", 0, "Run only the first N cases (0 runs all)")
	f.StringVar(&evalFlags.casesFile, "cases", "", "YAML case file (default: built-in FHIR cases)")
	f.StringVar(&evalFlags.jsonl, "jsonl", "", "Write per-case results and the summary as JSONL")
	f.Float64Var(&evalFlags.minPassRate, "min-pass-rate", 0, "Fail when the pass rate is below this fraction")
	f.Float64Var(&evalFlags.sampleRate, "sample-rate", 1.0, "Fraction of answers scored by the quality battery")
}

// evalConfig applies the flags the user set over eval.* from the config file.
func evalConfig(cmd *cobra.Command, base eval.Config) (eval.Config, error) {
	f := cmd.Flags()
	if f.Changed("num-questions") {
		base.NumQuestions = evalFlags.numQuestions
	}
	if f.Changed("cases") {
		base.CasesFile = evalFlags.casesFile
	}
	if f.Changed("jsonl") {
		base.JSONL = evalFlags.jsonl
	}
	if f.Changed("min-pass-rate") {
		base.MinPassRate = evalFlags.minPassRate
	}
	if evalFlags.sampleRate < 0 || evalFlags.sampleRate > 1 {
		return base, internal.NewCLIError(internal.ExitConfigError,
			fmt.Sprintf("--sample-rate must be between 0 and 1, got %v", evalFlags.sampleRate))
	}
	if err := base.Validate(); err != nil {
		return base, internal.WrapError(internal.ExitConfigError, "invalid eval settings", err)
	}
	return base, nil
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ec, err := evalConfig(cmd, cfg.Eval)
	if err != nil {
		return err
	}
	cases, err := ec.Cases()
	if err != nil {
		return err
	}

	collector := eval.NewScoreCollector()
	a, err := newApp(ctx, cfg,
		withSampleRate(evalFlags.sampleRate),
		withScoreSink(collector))
	if err != nil {
		return err
	}
	defer a.Close()

	jsonOut := globalFlags.GetOutputFormat() == internal.FormatJSON
	out := cmd.OutOrStdout()

	opts := []eval.RunnerOption{
		eval.WithScores(collector, a.scheduler),
		eval.WithRunnerLogger(a.logger),
		eval.WithWeights(ec.Weights),
	}
	if !jsonOut {
		opts = append(opts, eval.WithProgress(func(r eval.Result) {
			eval.PrintResult(out, r)
		}))
	}

	results, summary, err := eval.NewRunner(a.pipeline, opts...).Run(ctx, cases)
	if err != nil {
		return err
	}

	if jsonOut {
		if err := formatter(cmd).PrintJSON(map[string]any{
			"results": results,
			"summary": summary,
		}); err != nil {
			return err
		}
	} else {
		eval.PrintSummary(out, summary)
	}

	if ec.JSONL != "" {
		if err := eval.ExportJSONL(ec.JSONL, results, summary); err != nil {
			return err
		}
		a.logger.Info("evaluation results written", "path", ec.JSONL)
	}

	if ec.MinPassRate > 0 && summary.PassRate < ec.MinPassRate {
		return internal.NewCLIError(internal.ExitEvalFailed,
			fmt.Sprintf("pass rate %.0f%% is below the required %.0f%%",
				summary.PassRate*100, ec.MinPassRate*100))
	}
	return nil
}
