// Package main is the entry point for the DealScout API server and batch jobs.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dealscout/backend/config"
)

var rootCmd = &cobra.Command{
	Use:   "dealscout",
	Short: "DealScout deal matching backend",
	Long:  "DealScout finds cheaper equivalents of marketplace products across merchants and serves them over a REST API.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// .env values feed viper's AutomaticEnv, so load them first
		return config.LoadEnvFile()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
