package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exit code of a run stopped by SIGINT/SIGTERM
const interruptedExitCode = 130

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:           "sql2mongo",
	Short:         "Copy every table of a relational database into MongoDB collections",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "job.json", "job file (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "console", "console or json")
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, context.Canceled) {
		os.Exit(interruptedExitCode)
	}
	os.Exit(1)
}
