package pubsub

import (
	"context"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
)

const (
	backendFlag  = "pubsub-backend"
	backendRedis = "redis"
	backendLocal = "local"
)

// Broker fans JSON messages out to every subscriber of a channel.
type Broker interface {
	Publish(ctx context.Context, channel string, v any) error
	// Subscribe delivers raw payloads until ctx is done, then closes the
	// returned channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   backendFlag,
			Usage:  "auth event broker (redis or local)",
			Value:  backendRedis,
			EnvVar: "PUBSUB_BACKEND",
		},
	)
}

// New builds the broker selected by flag. The local broker only reaches
// subscribers inside this process.
func New(c *cli.Context, rc *cs.RedisClient) (Broker, error) {
	switch b := c.String(backendFlag); b {
	case backendRedis:
		return NewRedisBroker(rc), nil
	case backendLocal:
		return NewLocalBroker(), nil
	default:
		return nil, errors.Errorf("unknown pubsub backend %v", b)
	}
}
