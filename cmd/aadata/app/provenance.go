package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var provenanceCmd = &cobra.Command{
	Use:   "provenance",
	Short: "Show the recorded fetch history for a source",
	Long: `Provenance lists the fetches recorded for a source, most recent first:
when each artifact was downloaded, from where, its digest and how many
attempts the transfer took.`,
	RunE: runProvenance,
}

func init() {
	provenanceCmd.Flags().String("source", "", "Source identifier (required)")

	if err := provenanceCmd.MarkFlagRequired("source"); err != nil {
		panic(fmt.Sprintf("failed to mark source flag as required: %v", err))
	}
}

func runProvenance(cmd *cobra.Command, _ []string) error {
	source, _ := cmd.Flags().GetString("source")

	tb, err := openToolbox(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = tb.Close()
	}()

	records, err := tb.Provenance(cmd.Context(), source)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "FETCHED AT\tVERSION\tREGION\tDIGEST\tSIZE\tATTEMPTS\tURL")
	for i := range records {
		rec := &records[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			rec.FetchedAt.Format(time.RFC3339), rec.Version, rec.Region,
			rec.Digest, rec.SizeBytes, rec.Attempts, rec.URL)
	}
	return w.Flush()
}
