// Package cache keeps query results in Redis so repeated API calls do not
// rescan the document store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/osm-versailles/internal/queries"
)

const keyPrefix = "osmclean:query:"

// Client wraps the go-redis client with health checking.
type Client struct {
	*redis.Client
}

// New connects to the Redis server at url.
// Returns nil if the URL is empty (Redis not configured).
func New(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}

// QueryCache stores query results as JSON under a per-query key. A nil
// *QueryCache, or one without a client, never hits.
type QueryCache struct {
	client *Client
	ttl    time.Duration
}

// NewQueryCache returns a cache on client whose entries expire after ttl.
// A zero ttl keeps entries until they are invalidated.
func NewQueryCache(client *Client, ttl time.Duration) *QueryCache {
	return &QueryCache{client: client, ttl: ttl}
}

// Key is the Redis key of a query's result.
func Key(name string) string {
	return keyPrefix + name
}

// Get returns the cached result of the named query. A miss is (nil, false,
// nil).
func (c *QueryCache) Get(ctx context.Context, name string) (*queries.Result, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, Key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached %s: %w", name, err)
	}

	var res queries.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached %s: %w", name, err)
	}
	return &res, true, nil
}

// Set stores res under its query name.
func (c *QueryCache) Set(ctx context.Context, res *queries.Result) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", res.Query, err)
	}
	if err := c.client.Set(ctx, Key(res.Query), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", res.Query, err)
	}
	return nil
}

// Invalidate drops every cached query result. It is called after a
// processing run writes new documents.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}

	keys := make([]string, 0, len(queries.Names()))
	for _, name := range queries.Names() {
		keys = append(keys, Key(name))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate query cache: %w", err)
	}
	return nil
}
