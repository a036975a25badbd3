package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyJSON  bool
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded builds, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase(false)
		if err != nil {
			return err
		}
		defer d.Close()

		builds, err := d.ListBuilds(historyLimit)
		if err != nil {
			return err
		}

		if historyJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(builds)
		}

		if len(builds) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No builds recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "BUILD\tSEARCH\tSTATUS\tACCOUNTS\tEDGES\tANALYZED\tCHECKPOINTS\tUPDATED\tSNAPSHOT")
		for _, b := range builds {
			status := string(b.Status)
			if b.Cancelled {
				status += " (cancelled)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				truncID(b.ID), truncLabel(b.Search, 30), status,
				humanize.Comma(int64(b.NodeCount)), humanize.Comma(int64(b.EdgeCount)),
				humanize.Comma(int64(b.AnalyzedCount)), b.Checkpoints,
				humanize.Time(b.UpdatedAt), b.SnapshotPath)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of builds to list")
	rootCmd.AddCommand(historyCmd)
}
