package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis pub/sub transport.
type RedisOptions struct {
	// Address is the host:port of the broker.
	Address string
	// Password authenticates against the broker; empty means no auth.
	Password string
	// DB selects the broker database index.
	DB int
}

// redisPoolSize bounds the connection pool of one broker client.
const redisPoolSize = 10

// redisTransport creates Redis-backed broker sessions.
type redisTransport struct {
	// opts holds the broker connection parameters.
	opts RedisOptions
}

// Connect dials the broker, verifies it responds, and opens a pub/sub
// subscription with no rooms joined yet.
func (t *redisTransport) Connect(ctx context.Context) (session, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     t.opts.Address,
		Password: t.opts.Password,
		DB:       t.opts.DB,
		PoolSize: redisPoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping broker: %w", err)
	}

	return &redisSession{
		client: client,
		pubsub: client.Subscribe(ctx),
	}, nil
}

// redisSession is one live pub/sub connection.
type redisSession struct {
	// client is the dedicated broker client backing this session.
	client *redis.Client
	// pubsub is the subscription carrying all joined rooms.
	pubsub *redis.PubSub
}

// Subscribe joins the provided rooms.
func (s *redisSession) Subscribe(ctx context.Context, rooms ...string) error {
	if len(rooms) == 0 {
		return nil
	}

	if err := s.pubsub.Subscribe(ctx, rooms...); err != nil {
		return fmt.Errorf("subscribe rooms: %w", err)
	}

	return nil
}

// Unsubscribe leaves the provided rooms.
func (s *redisSession) Unsubscribe(ctx context.Context, rooms ...string) error {
	if len(rooms) == 0 {
		return nil
	}

	if err := s.pubsub.Unsubscribe(ctx, rooms...); err != nil {
		return fmt.Errorf("unsubscribe rooms: %w", err)
	}

	return nil
}

// Receive blocks until the next message or a connection error.
func (s *redisSession) Receive(ctx context.Context) (string, []byte, error) {
	message, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("receive message: %w", err)
	}

	return message.Channel, []byte(message.Payload), nil
}

// Close releases the subscription and the underlying client.
func (s *redisSession) Close() error {
	_ = s.pubsub.Close()

	return s.client.Close()
}
