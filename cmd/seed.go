/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/ngoconnect/apiserver/config"
	"github.com/ngoconnect/apiserver/internal/auth"
	"github.com/ngoconnect/apiserver/internal/db"
	"github.com/ngoconnect/apiserver/internal/seed"
	"github.com/ngoconnect/apiserver/internal/services"
	"github.com/ngoconnect/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create sample users in an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)
		if cfg.Database.Driver == "memory" {
			return errors.New("seed needs a database: the memory driver seeds itself when the server starts")
		}

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		repo := store.NewUserRepository(conn)
		users := services.NewUserService(repo, auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency), nil, logger)
		created, err := seed.Run(cmd.Context(), repo, users, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d sample users\n", created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
