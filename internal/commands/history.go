package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/posprep/internal/runlog"
)

func newHistoryCommand() *cobra.Command {
	var repoDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous runs from logs/run-log.csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(repoDir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runHistory(cmd.OutOrStdout(), absDir, limit)
		},
	}

	cmd.Flags().StringVar(&repoDir, "repo", ".", "project directory")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last n runs")

	return cmd
}

func runHistory(w io.Writer, root string, limit int) error {
	entries, err := runlog.Read(root)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSOURCE\tIN\tOUT\tDROPPED\tNULL DATES\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Source,
			e.RowsIn, e.RowsOut, e.Dropped, e.NullDates, e.Status)
	}
	return tw.Flush()
}
