package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baderkha/sql2mongo/pkg/migrate"
	"github.com/baderkha/sql2mongo/pkg/migrate/config"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/config/targetcfg"
	"github.com/baderkha/sql2mongo/pkg/migrate/logging"
	"github.com/baderkha/sql2mongo/pkg/migrate/state"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var migrateFlags struct {
	dryRun bool
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the migration described by the job file",
	Long: `Copies every selected table into a collection of the same name, one table at a time,
fewest columns first unless order_by says otherwise. Rows that cannot be saved are logged
and skipped. Every run is recorded in the state file and a report is written per run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()
		logger, err := logging.New(cmd.ErrOrStderr(), rootFlags.logLevel, rootFlags.logFormat)
		if err != nil {
			return err
		}
		cfg, err := config.Load[sourcecfg.SQL, targetcfg.Mongo](afero.NewOsFs(), rootFlags.configPath)
		if err != nil {
			return err
		}
		if migrateFlags.dryRun {
			cfg.DryRun = true
		}

		mger, err := state.NewSqliteGormManager(cfg.State.Path)
		if err != nil {
			return err
		}
		defer mger.Close()

		migrator, err := migrate.NewSQLToMongo(
			migrate.WithLogger(logger),
			migrate.WithStateManager(mger),
		)
		if err != nil {
			return err
		}

		ctx, stop := waitForInterrupt(cmd.Context(), migrator.GetStateManager())
		defer stop()

		summary, runErr := migrator.Run(ctx, cfg)
		if summary != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s : %d/%d rows migrated , %d failed\n",
				summary.RunID, summary.Totals.Migrated, summary.Totals.Read, summary.Totals.Failed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Time taken: %s\n", time.Since(startTime))
		return runErr
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateFlags.dryRun, "dry-run", false, "read and convert every row without writing to mongodb")
	rootCmd.AddCommand(migrateCmd)
}

// waitForInterrupt : the first signal cancels the run so it can record itself as aborted ,
// a second one gives up on that and exits straight away
func waitForInterrupt(parent context.Context, mger state.Manager) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	interruptChannel := make(chan os.Signal, 2)
	signal.Notify(interruptChannel, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-interruptChannel:
			fmt.Println("Interrupt received. Stopping gracefully...")
			cancel()
		case <-done:
			return
		}
		select {
		case <-interruptChannel:
			fmt.Println("Second interrupt received. Exiting now...")
			_ = mger.OnShutDownEv()
			os.Exit(interruptedExitCode)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(interruptChannel)
		close(done)
		cancel()
	}
}
