package cmd

import (
	"github.com/datamunge/taxipipe/actions"
	"github.com/datamunge/taxipipe/tripdata"
	"github.com/spf13/cobra"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, normalize and load trip data for a year of a taxi service",
	Long: `Fetch, normalize and load trip data for a year of a taxi service

Each (service, year, month) unit is fetched from the public source, normalized
into a canonical parquet artifact on disk and loaded into the warehouse. Units
already on disk or already loaded are skipped, so a re-run is cheap.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ingestConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunIngest(&ingestConfig)
	},
}

var ingestConfig = actions.IngestConfig{}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().SortFlags = false
	ingestCmd.Flags().StringVarP(&ingestConfig.ServicesCsv, "services", "s", "", "CSV of taxi services to ingest e.g. 'yellow,green'")
	ingestCmd.Flags().IntVarP(&ingestConfig.Year, "year", "y", 0, "Year to ingest e.g. 2021")
	ingestCmd.Flags().StringVarP(&ingestConfig.MonthsCsv, "months", "m", "", "CSV of months to ingest e.g. '1,2,3' (default: all twelve)")
	ingestCmd.Flags().StringVarP(&ingestConfig.Granularity, "granularity", "g", string(tripdata.GranularityMonthly), "Load granularity: 'monthly' staging tables or 'yearly' fact tables")
	ingestCmd.Flags().StringVarP(&ingestConfig.LogLevel, "log-level", "l", "info", "Log level: error | warn | info | debug")
	ingestCmd.Flags().BoolVar(&ingestConfig.WatchStats, "stats", false, "Log rows-per-second while loading")
	ingestCmd.Flags().BoolVar(&ingestConfig.DryRun, "dry-run", false, "Print the plan of units and target tables without running")
}
