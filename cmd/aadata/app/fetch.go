package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ocha-dap/aadatakit/internal/cache"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch an artifact into the local cache",
	Long: `Fetch downloads the artifact for a source, version and region into the
local cache, verifying its checksum when the source declares one. A cached
artifact is reused unless --force-refresh is given. The local path of the
artifact is printed on stdout.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("source", "", "Source identifier (required)")
	fetchCmd.Flags().String("version", "", "Dataset version (required)")
	fetchCmd.Flags().String("region", "", "Region identifier (defaults to global)")
	fetchCmd.Flags().Bool("force-refresh", false, "Re-fetch even when a cached artifact exists")

	for _, flag := range []string{"source", "version"} {
		if err := fetchCmd.MarkFlagRequired(flag); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", flag, err))
		}
	}
}

func runFetch(cmd *cobra.Command, _ []string) error {
	source, _ := cmd.Flags().GetString("source")
	version, _ := cmd.Flags().GetString("version")
	region, _ := cmd.Flags().GetString("region")
	forceRefresh, _ := cmd.Flags().GetBool("force-refresh")

	tb, err := openToolbox(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = tb.Close()
	}()

	policy := cache.PolicyUseCache
	if forceRefresh {
		policy = cache.PolicyForceRefresh
	}

	path, err := tb.GetArtifact(cmd.Context(), cache.FetchRequest{
		SourceID: source,
		Version:  version,
		Region:   region,
		Policy:   policy,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
