package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/graphqa/cmd/graphqa/internal"
	"github.com/zero-day-ai/graphqa/internal/graphrag/graph"
	"github.com/zero-day-ai/graphqa/internal/graphrag/schema"
)

var schemaFormat string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the graph schema the pipeline prompts with",
	Long: `Resolve the graph schema from schema.source and print it. The xml format
is exactly what the pruning and Cypher prompts see; yaml can be saved and
used as a schema.file.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFormat, "format", "f", "xml", "Schema format (xml|yaml)")
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if schemaFormat != "xml" && schemaFormat != "yaml" {
		return internal.NewCLIError(internal.ExitError,
			fmt.Sprintf("invalid schema format %q (must be xml or yaml)", schemaFormat))
	}

	var client graph.GraphClient
	if cfg.Schema.Source == schema.SourceIntrospect {
		e, err := newEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		neo, err := e.connectGraph(ctx)
		if err != nil {
			return internal.WrapError(internal.ExitUpstreamError, "failed to connect to the graph store", err)
		}
		client = neo
	}

	s, err := loadSchema(ctx, cfg.Schema, client)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if schemaFormat == "yaml" {
		data, err := s.YAML()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	_, err = fmt.Fprintln(out, s.XML())
	return err
}
