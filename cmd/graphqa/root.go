package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/graphqa/cmd/graphqa/internal"
	"github.com/zero-day-ai/graphqa/internal/config"
	"github.com/zero-day-ai/graphqa/pkg/version"
)

// cfg is the configuration loaded before every command that needs one.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "graphqa",
	Short: "GraphQA - hybrid graph and note retrieval question answering",
	Long: `GraphQA answers natural-language questions over clinical records by
querying a Neo4j graph with generated Cypher and searching indexed notes,
then merging both answers under explicit conflict rules.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// skipConfig lists commands that run without a configuration.
var skipConfig = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

// loadConfig is called before any command runs to load configuration
func loadConfig(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}
	if skipConfig[cmd.Name()] {
		return nil
	}

	if flags.HomeDir != "" {
		if err := os.Setenv(config.EnvHome, flags.HomeDir); err != nil {
			return err
		}
	}

	loader := config.NewConfigLoader(config.NewValidator())
	var loaded *config.Config
	if flags.ConfigFile != "" {
		loaded, err = loader.Load(flags.ConfigFile)
	} else {
		loaded, err = loader.LoadWithDefaults(config.DefaultConfigPath(config.DefaultHomeDir()))
	}
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to load configuration", err)
	}

	if flags.IsVerbose() {
		loaded.Logging.Level = "debug"
	}
	if flags.IsQuiet() {
		loaded.Logging.Level = "error"
	}
	cfg = loaded
	return nil
}

// formatter returns the output formatter selected by --output.
func formatter(cmd *cobra.Command) internal.Formatter {
	return internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(datasetCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.GetOutputFormat() == internal.FormatJSON {
			return formatter(cmd).PrintJSON(version.Info())
		}
		cmd.Println(version.String())
		return nil
	},
}
