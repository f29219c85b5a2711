package database

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis connections the server opens.
type RedisOptions struct {
	URL     string
	Timeout time.Duration
	// Workers is the number of pool goroutines that each hold a connection
	// in BLPOP. Zero when alignment runs inline.
	Workers int
}

// RedisClients splits command traffic from subscriptions. Client carries
// refresh tokens, job queue pushes and pops, job locks and event publishes.
// PubSub only backs websocket subscriptions on user_updates channels.
type RedisClients struct {
	Client *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(o RedisOptions) (*RedisClients, error) {
	opt, err := redisOptions(o)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opt.DialTimeout)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis (commands): %w", err)
	}

	// Subscriptions hold dedicated connections; the pool only serves pings.
	pubsubOpt := *opt
	pubsubOpt.PoolSize = 2
	pubsubClient := redis.NewClient(&pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		client.Close()
		pubsubClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	return &RedisClients{
		Client: client,
		PubSub: pubsubClient,
	}, nil
}

// redisOptions parses the URL and sizes the command pool so blocked
// workers cannot starve request handlers. A pool_size given in the URL wins.
func redisOptions(o RedisOptions) (*redis.Options, error) {
	opt, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	opt.DialTimeout = o.Timeout

	if opt.PoolSize == 0 {
		opt.PoolSize = 10*runtime.GOMAXPROCS(0) + max(o.Workers, 0)
	}
	return opt, nil
}

func (r *RedisClients) Close() {
	r.Client.Close()
	r.PubSub.Close()
}
