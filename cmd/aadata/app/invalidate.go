package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Remove cached artifacts for a source",
	Long: `Invalidate removes cached artifacts for a source. With --version given one
or more times only those versions are removed; without it the source's
entire cache subtree is removed. The next fetch re-downloads the artifact.`,
	RunE: runInvalidate,
}

func init() {
	invalidateCmd.Flags().String("source", "", "Source identifier (required)")
	invalidateCmd.Flags().StringSlice("version", nil, "Version to remove (repeatable; all versions when omitted)")

	if err := invalidateCmd.MarkFlagRequired("source"); err != nil {
		panic(fmt.Sprintf("failed to mark source flag as required: %v", err))
	}
}

func runInvalidate(cmd *cobra.Command, _ []string) error {
	source, _ := cmd.Flags().GetString("source")
	versions, _ := cmd.Flags().GetStringSlice("version")

	tb, err := openToolbox(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = tb.Close()
	}()

	if err := tb.Invalidate(source, versions...); err != nil {
		return err
	}

	if len(versions) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "invalidated all cached versions of %s\n", source)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "invalidated %d version(s) of %s\n", len(versions), source)
	}
	return nil
}
