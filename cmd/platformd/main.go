package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "platformd",
	Short: "Self-service platform engineering API",
	Long: `Platformd is the control plane for service self-service: it manages
service records, provisions CI/CD pipelines, infrastructure and monitoring,
and tracks background infrastructure operations.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
