package cmd

import (
	"github.com/datamunge/taxipipe/actions"
	c "github.com/datamunge/taxipipe/constants"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a web service and listen for ingest requests described in JSON",
	Long:  `Start a web service and listen for ingest requests described in JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serveConfig.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunWebServer(&serveConfig)
	},
}

var serveConfig = actions.WebServerConfig{
	LogLevel: "info",
	Addr:     "0.0.0.0",
	Port:     c.WebServerDefaultPort,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().StringVarP(&serveConfig.Addr, "address", "a", "0.0.0.0", "Address to listen on")
	serveCmd.Flags().IntVarP(&serveConfig.Port, "port", "p", c.WebServerDefaultPort, "Port to listen on")
	serveCmd.Flags().StringVarP(&serveConfig.LogLevel, "log-level", "l", "info", "Log level: error | warn | info | debug")
}
