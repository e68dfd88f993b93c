// Package cmd is the command line of the service
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/linesmerrill/lapor-sampah-api/cmd/serve"
	"github.com/linesmerrill/lapor-sampah-api/cmd/sweep"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=..."
var Version = "dev"

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "lapor-sampah-api",
		Short:        "Lapor Sampah waste report API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (yaml, json or toml); environment variables override it")

	rootCmd.AddCommand(
		serve.Command(&configPath),
		sweep.Command(&configPath),
		versionCommand(),
	)
	return rootCmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(Version)
		},
	}
}
