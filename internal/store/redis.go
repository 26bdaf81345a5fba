package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// namespace prefixes every key this service writes. Sessions, daily
// stats hashes and the check-in queue all live under it, so a shared
// Redis instance stays inspectable and flushable per service.
const namespace = "faceattend"

// Key builds a namespaced Redis key from its parts.
func Key(parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

// Redis wraps the shared client. Timeouts are short on purpose: Redis
// sits on the request path for sessions, so a slow instance must fail
// fast instead of stalling requests.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to the given address.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
