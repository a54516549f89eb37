package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceComm/pkg/report"
	"github.com/spf13/cobra"
)

var (
	historyDB    string
	historyLimit int
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded script runs",
	Long: `List the most recent runs stored in the SQLite history, newest first.
With --run, print the steps of a single run instead.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "sqlite", "", "history database (overrides config)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the steps of this run ID")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := cfg.Report.SQLite
	if cmd.Flags().Changed("sqlite") {
		path = historyDB
	}
	if path == "" {
		return errors.New("no history database: set report.sqlite or pass --sqlite")
	}

	store, err := report.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if historyRun != "" {
		steps, err := store.Steps(ctx, historyRun)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return fmt.Errorf("run %s has no recorded steps", historyRun)
		}
		for _, st := range steps {
			fmt.Fprintf(out, "%4d  %-40s %-14s %s\n", st.Line, st.Command, st.Status, st.Error)
		}
		return nil
	}

	runs, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		result := "PASS"
		if !r.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(out, "%s  %s  %s  %-24s %-16s %s\n",
			r.ID, r.Started.Local().Format(time.DateTime), result, r.Script, r.Driver, r.Duration.Round(time.Millisecond))
	}
	return nil
}
