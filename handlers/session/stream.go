package session

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/pubsub"
	"github.com/webtor-io/screenvault/services/session"
)

const keepAlive = 25 * time.Second

type UserGetter interface {
	GetUser(ctx context.Context, userID string) (*auth.User, error)
}

type StreamHandler struct {
	users     UserGetter
	broker    pubsub.Broker
	keepAlive time.Duration
}

// RegisterStreamHandler serves the session state of the requesting browser
// as server-sent events.
func RegisterStreamHandler(r *gin.Engine, users UserGetter, b pubsub.Broker) {
	h := &StreamHandler{
		users:     users,
		broker:    b,
		keepAlive: keepAlive,
	}
	r.GET("/session/stream", h.stream)
}

func (s *StreamHandler) mirror(c *gin.Context) *session.Mirror {
	u := auth.GetUserFromContext(c)
	if !u.HasAuth() {
		return session.New(nil, nil)
	}
	src := session.NewAuthStateSource(s.broker, u.ID, auth.GetSessionHandleFromContext(c))
	return session.New(func(ctx context.Context) (*auth.User, error) {
		return s.users.GetUser(ctx, u.ID)
	}, src)
}

func (s *StreamHandler) stream(c *gin.Context) {
	ctx := c.Request.Context()
	m := s.mirror(c)
	m.Start(ctx)
	defer m.Stop()

	states, cancel := m.Watch()
	defer cancel()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case st, ok := <-states:
			if !ok {
				return false
			}
			c.SSEvent("session", st)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			log.Debug("session stream closed by client")
			return false
		}
	})
}
