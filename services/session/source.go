package session

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/pubsub"
)

// AuthStateSource reads the auth events of one user and session from the
// broker.
type AuthStateSource struct {
	broker pubsub.Broker
	userID string
	handle string
}

func NewAuthStateSource(b pubsub.Broker, userID string, handle string) *AuthStateSource {
	return &AuthStateSource{
		broker: b,
		userID: userID,
		handle: handle,
	}
}

func (s *AuthStateSource) Subscribe(ctx context.Context) (<-chan *auth.Event, error) {
	raw, err := s.broker.Subscribe(ctx, auth.Channel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to auth events")
	}
	out := make(chan *auth.Event)
	go func() {
		defer close(out)
		for b := range raw {
			e := &auth.Event{}
			if err := json.Unmarshal(b, e); err != nil {
				log.WithError(err).Warn("failed to decode auth event")
				continue
			}
			if !s.matches(e) {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// matches keeps events of the watched user. Sign-outs of other sessions of
// the same user are ignored.
func (s *AuthStateSource) matches(e *auth.Event) bool {
	if e.UserID != s.userID {
		return false
	}
	if e.Type != auth.EventSignedOut {
		return true
	}
	return s.handle == "" || e.SessionHandle == "" || e.SessionHandle == s.handle
}
