package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const subscriberBuffer = 16

// LocalBroker delivers messages within the current process only.
type LocalBroker struct {
	mu       sync.RWMutex
	channels map[string]map[chan []byte]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		channels: make(map[string]map[chan []byte]struct{}),
	}
}

func (s *LocalBroker) Publish(_ context.Context, channel string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.channels[channel] {
		select { // non-blocking
		case ch <- b:
		default:
			log.WithField("channel", channel).Warn("subscriber is full, message dropped")
		}
	}
	return nil
}

func (s *LocalBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)
	s.mu.Lock()
	if s.channels[channel] == nil {
		s.channels[channel] = make(map[chan []byte]struct{})
	}
	s.channels[channel][ch] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.remove(channel, ch)
	}()
	return ch, nil
}

func (s *LocalBroker) remove(channel string, ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subs := s.channels[channel]; subs != nil {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(s.channels, channel)
		}
	}
}

func (s *LocalBroker) Close() error {
	return nil
}
