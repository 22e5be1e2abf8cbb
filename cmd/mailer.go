/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ngoconnect/apiserver/config"
	"github.com/ngoconnect/apiserver/internal/mailer"
	"github.com/ngoconnect/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailerCmd represents the mailer command
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Delivers queued emails through Resend",
	Long: `Subscribes to the mail channel and delivers each queued message through
Resend. Run it alongside servers started with MAIL_TRANSPORT=queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.Mail.ResendAPIKey == "" {
			return errors.New("RESEND_API_KEY is required")
		}
		if cfg.MQ.Backend == "memory" {
			return errors.New("MQ_BACKEND must be rabbitmq or pubsub for a standalone mailer")
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		defer queue.Close()

		sender, err := mailer.NewResendSenderFromConfig(cfg.Mail, logger)
		if err != nil {
			return err
		}
		return mailer.NewWorker(queue, cfg.MQ.MailChannel, sender, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
