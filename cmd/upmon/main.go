package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "upmon",
	Short:        "HTTP uptime monitor",
	Long:         "Probes configured HTTP endpoints on a schedule, stores the results and serves status over a small JSON API.",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the API until interrupted",
	RunE:  runServe,
}

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "Resolve the monitors file and print the effective schedule",
	RunE:  runMonitors,
}

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check the environment before starting the service",
	RunE:  runPreflight,
}

var monitorsPath string

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorsCmd)
	rootCmd.AddCommand(preflightCmd)

	rootCmd.PersistentFlags().StringVarP(&monitorsPath, "config", "c", "", "monitors file (overrides MONITORS_CONFIG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
