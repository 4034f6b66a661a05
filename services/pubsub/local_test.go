package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b, ok := <-ch:
		require.True(t, ok, "channel closed")
		return b
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return nil
}

func TestLocalBroker_FanOut(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s1, err := b.Subscribe(ctx, "auth-state")
	require.NoError(t, err)
	s2, err := b.Subscribe(ctx, "auth-state")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "auth-state", map[string]string{"event": "SIGNED_IN"}))

	assert.JSONEq(t, `{"event":"SIGNED_IN"}`, string(receive(t, s1)))
	assert.JSONEq(t, `{"event":"SIGNED_IN"}`, string(receive(t, s2)))
	select {
	case <-other:
		t.Fatal("unexpected message on other channel")
	default:
	}
}

func TestLocalBroker_UnsubscribeOnCancel(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, "auth-state")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	require.NoError(t, b.Publish(context.Background(), "auth-state", "x"))

	b.mu.RLock()
	defer b.mu.RUnlock()
	assert.Empty(t, b.channels)
}

func TestLocalBroker_PublishMarshalError(t *testing.T) {
	b := NewLocalBroker()
	assert.Error(t, b.Publish(context.Background(), "auth-state", make(chan int)))
}

func TestLocalBroker_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := b.Subscribe(ctx, "auth-state")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = b.Publish(ctx, "auth-state", i)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
