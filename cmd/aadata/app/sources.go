package app

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect registered data sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources and their cached state",
	RunE:  runSourcesList,
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	tb, err := openToolbox(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = tb.Close()
	}()

	ids := tb.SourceIDs()
	sort.Strings(ids)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFORMAT\tCHECKSUM\tCACHED ENTRIES\tLATEST VERSION")
	for _, id := range ids {
		desc, err := tb.ResolveSource(id)
		if err != nil {
			return err
		}

		entries, err := tb.ListEntries(id)
		if err != nil {
			return err
		}
		latest, err := tb.LatestCachedVersion(id)
		if err != nil {
			return err
		}
		if latest == "" {
			latest = "-"
		}

		checksum := "none"
		if desc.ChecksumAlgorithm != "" {
			checksum = string(desc.ChecksumAlgorithm)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", desc.ID, desc.Format, checksum, len(entries), latest)
	}
	return w.Flush()
}
