package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2020-01-02T03:04+0500"
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use: "taxipipe",
	Long: `Taxipipe ingests the public NYC TLC trip data into a Postgres warehouse.

It fetches the monthly parquet files, normalizes their column layout into a
canonical form, and loads them into monthly staging tables or yearly fact
tables. Every stage is idempotent, so a re-run after a failure picks up where
the last one stopped. Happy munging!`,
}

func init() {
	// General setup.
	cobra.EnableCommandSorting = false
	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Execute() prints the error.
		os.Exit(1)
	}
}
