// Package ctl implements the crashgatectl admin CLI.
package ctl

import (
	"github.com/spf13/cobra"

	"github.com/crashgate-systems/crashgate/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "crashgatectl",
	Short: "Crashgate admin CLI",
	Long: `crashgatectl is the operations CLI for the Crashgate ingest service.

Run database migrations, inspect the event queue, purge dedup state, and
manage projects without going through the HTTP API.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(projectCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	cobra.CheckErr(err)
}
