package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ngoconnect/apiserver/internal/mq"
	"github.com/resend/resend-go/v2"
)

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender prints messages instead of sending them. Development only: the
// log line includes the reset code.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email sent (dev mode)",
		"type", msg.Kind,
		"to", msg.To,
		"subject", rendered.Subject,
		"code", msg.Code,
	)
	return nil
}

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	logger *slog.Logger
}

func NewResendSender(client *resend.Client, from string, logger *slog.Logger) (*ResendSender, error) {
	if client == nil {
		return nil, errors.New("email service not configured (missing RESEND_API_KEY)")
	}
	return &ResendSender{client: client, from: from, logger: logger}, nil
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	rendered, err := Render(msg)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: rendered.Subject,
		Text:    rendered.Text,
		Html:    rendered.HTML,
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend %s email: %w", msg.Kind, err)
	}
	s.logger.InfoContext(ctx, "email sent", "type", msg.Kind, "message_id", sent.Id)
	return nil
}

// QueueSender hands messages to the mail worker over a queue.
type QueueSender struct {
	queue   *mq.MQ
	channel string
}

func NewQueueSender(queue *mq.MQ, channel string) *QueueSender {
	return &QueueSender{queue: queue, channel: channel}
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}
	if _, err := s.queue.Publish(ctx, s.channel, payload, map[string]string{"kind": string(msg.Kind)}); err != nil {
		return fmt.Errorf("enqueue %s email: %w", msg.Kind, err)
	}
	return nil
}
