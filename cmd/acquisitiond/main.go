package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/acquisitiond/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "acquisitiond",
	Short: "acquisitiond - OPC UA data acquisition worker",
	Long: `acquisitiond subscribes to OPC UA servers, validates and enriches
incoming samples, batches them, and persists them to a relational store
with store-and-forward resilience on database outage.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"acquisitiond version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().String("data-dir", "", "Override the configured data directory")
	rootCmd.PersistentFlags().Bool("log-json", true, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reloadCacheCmd)
	rootCmd.AddCommand(spoolCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	if logLevel == "" {
		logLevel = "info"
	}

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("acquisitiond version %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Built: %s\n", BuildTime)
		return nil
	},
}
