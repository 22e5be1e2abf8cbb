/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/ngoconnect/apiserver/config"
	"github.com/ngoconnect/apiserver/internal/logger"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ngoconnect",
	Short: "NGO Connect backend",
	Long: `NGO Connect matches volunteers with NGOs. This binary runs the REST API,
its database migrations, the mail worker and sample data seeding.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return logger.New(logger.Options{
		Dev:       cfg.IsDev(),
		Level:     cfg.Log.Level,
		SentryDSN: cfg.Log.SentryDSN,
	})
}
