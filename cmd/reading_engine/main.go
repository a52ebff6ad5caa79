// Package main provides the entry point for the reading engine server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	development bool
)

var rootCmd = &cobra.Command{
	Use:   "reading_engine",
	Short: "Personalized reading generation service",
	Long:  "Reading engine generates multi-section personalized readings from a subject's photo and quiz answers, with asynchronous job dispatch and credit-backed fulfillment.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVar(&development, "dev", false, "Enable development logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
