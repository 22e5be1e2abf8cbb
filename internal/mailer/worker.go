package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ngoconnect/apiserver/internal/mq"
)

// Worker drains the mail queue and delivers each message with a Sender.
type Worker struct {
	queue   *mq.MQ
	channel string
	sender  Sender
	logger  *slog.Logger
}

func NewWorker(queue *mq.MQ, channel string, sender Sender, logger *slog.Logger) *Worker {
	return &Worker{queue: queue, channel: channel, sender: sender, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "mail worker started", "channel", w.channel)
	err := w.queue.Subscribe(ctx, w.channel, w.handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handle returns an error only for delivery failures so the broker
// redelivers. Undecodable payloads are dropped.
func (w *Worker) handle(ctx context.Context, delivery mq.Message) error {
	var msg Message
	if err := json.Unmarshal(delivery.Data, &msg); err != nil {
		w.logger.ErrorContext(ctx, "dropping malformed mail message", "message_id", delivery.ID, "error", err)
		return nil
	}
	if _, err := Render(msg); err != nil {
		w.logger.ErrorContext(ctx, "dropping unrenderable mail message", "message_id", delivery.ID, "error", err)
		return nil
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		w.logger.WarnContext(ctx, "mail delivery failed", "message_id", delivery.ID, "type", msg.Kind, "error", err)
		return err
	}
	return nil
}
