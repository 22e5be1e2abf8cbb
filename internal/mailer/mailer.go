package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ngoconnect/apiserver/config"
	"github.com/ngoconnect/apiserver/internal/mq"
	"github.com/ngoconnect/apiserver/types"
	"github.com/resend/resend-go/v2"
)

// Mailer turns account events into messages for a Sender. It satisfies the
// services' OTP dispatcher and welcome sender contracts.
type Mailer struct {
	sender  Sender
	codeTTL time.Duration
}

func New(sender Sender, codeTTL time.Duration) *Mailer {
	return &Mailer{sender: sender, codeTTL: codeTTL}
}

// NewFromConfig picks the sender named by cfg.Mail.Transport. queue is only
// used by the queue transport and may be nil otherwise.
func NewFromConfig(cfg *config.Config, queue *mq.MQ, logger *slog.Logger) (*Mailer, error) {
	sender, err := NewSender(cfg, queue, logger)
	if err != nil {
		return nil, err
	}
	return New(sender, cfg.Reset.CodeTTL), nil
}

// NewSender builds the Sender named by cfg.Mail.Transport.
func NewSender(cfg *config.Config, queue *mq.MQ, logger *slog.Logger) (Sender, error) {
	switch cfg.Mail.Transport {
	case "", "log":
		return NewLogSender(logger), nil
	case "resend":
		return NewResendSenderFromConfig(cfg.Mail, logger)
	case "queue":
		if queue == nil {
			return nil, fmt.Errorf("queue transport needs a message queue")
		}
		return NewQueueSender(queue, cfg.MQ.MailChannel), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Mail.Transport)
	}
}

// NewResendSenderFromConfig builds a ResendSender from the mail settings.
func NewResendSenderFromConfig(cfg config.MailConfig, logger *slog.Logger) (*ResendSender, error) {
	var client *resend.Client
	if cfg.ResendAPIKey != "" {
		client = resend.NewClient(cfg.ResendAPIKey)
	}
	return NewResendSender(client, cfg.From, logger)
}

func (m *Mailer) SendOTP(ctx context.Context, user types.User, code string) error {
	return m.sender.Send(ctx, Message{
		Kind:       KindOTP,
		To:         user.Email,
		Name:       user.DisplayName(),
		Code:       code,
		TTLMinutes: ttlMinutes(m.codeTTL),
	})
}

func (m *Mailer) SendWelcome(ctx context.Context, user types.User) error {
	return m.sender.Send(ctx, Message{
		Kind: KindWelcome,
		To:   user.Email,
		Name: user.DisplayName(),
	})
}
