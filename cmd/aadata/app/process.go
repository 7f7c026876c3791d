package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocha-dap/aadatakit/internal/cache"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Fetch an artifact and apply a transformation",
	Long: `Process fetches the artifact for a source, version and region (reusing the
cache) and applies a named transformation to it. The result is written to
--output, or to stdout when no output file is given.

Transformations for grid sources:
  clip:<minx>,<miny>,<maxx>,<maxy>
  stats:<name>=<minx>,<miny>,<maxx>,<maxy>[;...]
  normalize-longitude

Transformations for table sources:
  select:<column>[,...]
  aggregate:<column>:<mean|sum|min|max|count>`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().String("source", "", "Source identifier (required)")
	processCmd.Flags().String("version", "", "Dataset version (required)")
	processCmd.Flags().String("region", "", "Region identifier (defaults to global)")
	processCmd.Flags().String("transform", "", "Transformation to apply (required)")
	processCmd.Flags().String("output", "", "Output file (defaults to stdout)")

	for _, flag := range []string{"source", "version", "transform"} {
		if err := processCmd.MarkFlagRequired(flag); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", flag, err))
		}
	}
}

func runProcess(cmd *cobra.Command, _ []string) error {
	source, _ := cmd.Flags().GetString("source")
	version, _ := cmd.Flags().GetString("version")
	region, _ := cmd.Flags().GetString("region")
	transform, _ := cmd.Flags().GetString("transform")
	output, _ := cmd.Flags().GetString("output")

	tb, err := openToolbox(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = tb.Close()
	}()

	result, err := tb.GetAndProcess(cmd.Context(), cache.FetchRequest{
		SourceID: source,
		Version:  version,
		Region:   region,
	}, transform)
	if err != nil {
		return err
	}

	if output == "" {
		_, err = cmd.OutOrStdout().Write(result.Content)
		return err
	}

	if err := os.WriteFile(output, result.Content, 0600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
