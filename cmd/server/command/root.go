// Package command provides the CLI of the shipment tracking server.
//
//	./shiptrack            # same as "serve"
//	./shiptrack serve      # start the HTTP API
//	./shiptrack migrate    # apply the PostgreSQL schema and exit
//
// All settings come from the environment or a .env file in the working
// directory (see config.Load).
package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shiptrack",
	Short: "Shipment tracking API with simulated in-transit positions",
	Long: `Shipment tracking API.

Customers poll a tracking code and receive a simulated position along the
straight line from origin to destination, a completion fraction and an ETA.
Administrators create shipments and override their location or status.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
