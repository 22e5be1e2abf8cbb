package mq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	memoryQueueSize     = 256
	memoryMaxDeliveries = 5
	attemptAttribute    = "x-delivery-attempt"
)

// ErrClosed is returned by a closed memory backend.
var ErrClosed = errors.New("mq backend closed")

// MemoryBackend is an in-process broker. Messages published before anyone
// subscribes wait in a bounded per-channel queue; a failed message is
// redelivered a few times and then dropped.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed chan struct{}
	once   sync.Once
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		queues: make(map[string]chan Message),
		closed: make(chan struct{}),
	}
}

func (b *MemoryBackend) queue(channel string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		b.queues[channel] = q
	}
	return q
}

func (b *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	if b.isClosed() {
		return "", ErrClosed
	}
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: copyAttrs(attrs)}
	select {
	case <-b.closed:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	case b.queue(channel) <- msg:
		return msg.ID, nil
	}
}

func (b *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}
	q := b.queue(channel)
	for {
		// A closed backend must win over messages still buffered in q.
		if b.isClosed() {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closed:
			return ErrClosed
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				b.redeliver(q, msg)
			}
		}
	}
}

func (b *MemoryBackend) redeliver(q chan Message, msg Message) {
	attempt, _ := strconv.Atoi(msg.Attributes[attemptAttribute])
	attempt++
	if attempt >= memoryMaxDeliveries {
		return
	}
	msg.Attributes = copyAttrs(msg.Attributes)
	msg.Attributes[attemptAttribute] = strconv.Itoa(attempt)
	select {
	case q <- msg:
	default:
	}
}

func (b *MemoryBackend) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

func (b *MemoryBackend) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
