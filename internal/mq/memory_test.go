package mq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ngoconnect/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendDeliversQueuedMessages(t *testing.T) {
	q := New(NewMemoryBackend())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := q.Publish(ctx, "mail", []byte(`{"kind":"otp"}`), map[string]string{"kind": "otp"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got := make(chan Message, 1)
	go func() {
		_ = q.Subscribe(ctx, "mail", func(_ context.Context, msg Message) error {
			got <- msg
			return nil
		})
	}()

	select {
	case msg := <-got:
		assert.Equal(t, id, msg.ID)
		assert.JSONEq(t, `{"kind":"otp"}`, string(msg.Data))
		assert.Equal(t, "otp", msg.Attributes["kind"])
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryBackendRedeliversFailures(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = b.Subscribe(ctx, "mail", func(context.Context, Message) error {
			if attempts.Add(1) < 3 {
				return errors.New("transient")
			}
			close(done)
			return nil
		})
	}()

	_, err := b.Publish(ctx, "mail", []byte("x"), nil)
	require.NoError(t, err)

	select {
	case <-done:
		assert.EqualValues(t, 3, attempts.Load())
	case <-time.After(time.Second):
		t.Fatal("message not redelivered")
	}
}

func TestMemoryBackendGivesUp(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var attempts atomic.Int32
	_, err := b.Publish(ctx, "mail", []byte("x"), nil)
	require.NoError(t, err)

	err = b.Subscribe(ctx, "mail", func(context.Context, Message) error {
		attempts.Add(1)
		return errors.New("permanent")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, memoryMaxDeliveries, attempts.Load())
}

func TestMemoryBackendClosed(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Publish(context.Background(), "mail", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Subscribe(context.Background(), "mail", func(context.Context, Message) error { return nil }), ErrClosed)

	_, err = NewMemoryBackend().Publish(context.Background(), " ", nil, nil)
	assert.Error(t, err)
}

func TestMemoryBackendClosedWinsOverBufferedQueue(t *testing.T) {
	b := NewMemoryBackend()
	_, err := b.Publish(context.Background(), "mail", []byte("queued"), nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	delivered := false
	for i := 0; i < 100; i++ {
		_, err := b.Publish(context.Background(), "mail", []byte("late"), nil)
		require.ErrorIs(t, err, ErrClosed)

		err = b.Subscribe(context.Background(), "mail", func(context.Context, Message) error {
			delivered = true
			return nil
		})
		require.ErrorIs(t, err, ErrClosed)
	}
	assert.False(t, delivered)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	q, err := Open(context.Background(), config.MQConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.NoError(t, q.Close())
}
