package health

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Pinger is implemented by any external dependency that can be probed for
// readiness. Ping performs the cheapest possible round trip and should
// respect context cancellation and deadlines; retries belong to whoever
// polls readiness, not here.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// StorePinger probes the PostgreSQL connection pool.
type StorePinger struct {
	pool *pgxpool.Pool
}

// NewStorePinger returns a Pinger for the given pool.
func NewStorePinger(pool *pgxpool.Pool) *StorePinger {
	return &StorePinger{pool: pool}
}

// Name implements Pinger.
func (p *StorePinger) Name() string { return "store" }

// Ping implements Pinger.
func (p *StorePinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// CachePinger probes the Redis client.
type CachePinger struct {
	client *redis.Client
}

// NewCachePinger returns a Pinger for the given client.
func NewCachePinger(client *redis.Client) *CachePinger {
	return &CachePinger{client: client}
}

// Name implements Pinger.
func (p *CachePinger) Name() string { return "cache" }

// Ping implements Pinger.
func (p *CachePinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
