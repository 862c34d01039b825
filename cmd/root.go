package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "A face identification and matching service",
	Long: `Facegate turns face photos into identity decisions. It scores image
quality, computes embeddings through an external extraction service,
searches enrolled identities in a nearest-neighbor index and applies a
calibrated similarity threshold.

Run 'facegate serve' for the HTTP API, or use the enroll, identify and
verify commands directly from the terminal.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
