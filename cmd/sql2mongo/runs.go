package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/baderkha/sql2mongo/pkg/migrate/config"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/targetcfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/state"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var runsFlags struct {
	limit     int
	statePath string
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the state file",
	RunE: func(cmd *cobra.Command, args []string) error {
		mger, err := openStateManager()
		if err != nil {
			return err
		}
		defer mger.Close()

		runs, err := mger.ListRuns(runsFlags.limit)
		if err != nil {
			return err
		}
		return printRuns(cmd.OutOrStdout(), runs)
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the per model log of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mger, err := openStateManager()
		if err != nil {
			return err
		}
		defer mger.Close()

		run, err := mger.GetRunLog(args[0])
		if err != nil {
			return err
		}
		models, err := mger.GetModelRunLogs(run.RunID)
		if err != nil {
			return err
		}
		if err := printRuns(cmd.OutOrStdout(), []*state.RunLog{run}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return printModelRuns(cmd.OutOrStdout(), models)
	},
}

func init() {
	runsCmd.PersistentFlags().IntVar(&runsFlags.limit, "limit", 20, "number of runs to list , 0 for all")
	runsCmd.PersistentFlags().StringVar(&runsFlags.statePath, "state", "", "state file , read from the job file when empty")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func openStateManager() (*state.GormManager, error) {
	path := runsFlags.statePath
	if path == "" {
		cfg, err := config.Load[sourcecfg.SQL, targetcfg.Mongo](afero.NewOsFs(), rootFlags.configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.State.Path
	}
	return state.NewSqliteGormManager(path)
}

func printRuns(out io.Writer, runs []*state.RunLog) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tSTATUS\tMODELS\tREAD\tMIGRATED\tFAILED\tDRY RUN\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%t\t%s\n",
			r.RunID, formatTime(r.CreatedAt), r.Status, r.TotalModels,
			r.RowsRead, r.RowsMigrated, r.RowsFailed, r.DryRun, r.ErrMsg)
	}
	return w.Flush()
}

func printModelRuns(out io.Writer, models []*state.ModelRunLog) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tCOLLECTION\tSTATUS\tREAD\tMIGRATED\tFAILED\tERROR")
	for _, m := range models {
		fmt.Fprintf(w, "%s.%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			m.DBName, m.TableName, m.Collection, m.Status,
			m.RowsRead, m.RowsMigrated, m.RowsFailed, m.ErrMsg)
	}
	return w.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
