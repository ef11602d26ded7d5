// Package cli is the facegate command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Face recognition access control",
	Long: `facegate watches a camera, matches faces against a gallery of enrolled
people, admits active identities and keeps an audit log of every attempt.

Configuration comes from an optional YAML file and FACEGATE_* environment
variables; a .env file in the working directory is loaded first.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "facegate.yaml", "Path to the YAML config file (optional)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the facegate version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
