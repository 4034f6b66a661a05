package pubsub

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	cs "github.com/webtor-io/common-services"
)

// RedisBroker publishes over Redis Pub/Sub. The client is owned by the
// caller.
type RedisBroker struct {
	cl redis.UniversalClient
}

func NewRedisBroker(rc *cs.RedisClient) *RedisBroker {
	return NewRedisBrokerWithClient(rc.Get())
}

func NewRedisBrokerWithClient(cl redis.UniversalClient) *RedisBroker {
	return &RedisBroker{cl: cl}
}

func (s *RedisBroker) Publish(ctx context.Context, channel string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	if err := s.cl.Publish(ctx, channel, b).Err(); err != nil {
		return errors.Wrapf(err, "failed to publish to %v", channel)
	}
	return nil
}

func (s *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ps := s.cl.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrapf(err, "failed to subscribe to %v", channel)
	}
	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() {
			_ = ps.Close()
		}()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					log.WithField("channel", channel).Warn("redis subscription closed")
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisBroker) Close() error {
	return nil
}
