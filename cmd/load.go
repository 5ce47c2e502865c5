package cmd

import (
	"github.com/datamunge/taxipipe/actions"
	"github.com/datamunge/taxipipe/tripdata"
	"github.com/spf13/cobra"
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the warehouse from artifacts already on disk",
	Long: `Load the warehouse from artifacts already on disk

Walks the data directory for parquet artifacts and loads each one without
touching the source. Useful after a warehouse rebuild.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunLoad(&loadConfig)
	},
}

var loadConfig = actions.LoadConfig{}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().SortFlags = false
	loadCmd.Flags().StringVarP(&loadConfig.Granularity, "granularity", "g", string(tripdata.GranularityMonthly), "Load granularity: 'monthly' staging tables or 'yearly' fact tables")
	loadCmd.Flags().StringVarP(&loadConfig.LogLevel, "log-level", "l", "info", "Log level: error | warn | info | debug")
	loadCmd.Flags().BoolVar(&loadConfig.WatchStats, "stats", false, "Log rows-per-second while loading")
}
