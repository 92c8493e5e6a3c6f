// Package runlock provides a Redis-backed lease so that only one scheduler replica starts a
// clustering run at a time. The database claim remains the source of truth; the lease only keeps
// replicas from racing for it.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lease.
var ErrNotAcquired = errors.New("run lock held by another process")

// DefaultKey is the Redis key used for the clustering run lease.
const DefaultKey = "insights:clustering-run:lock"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Locker hands out leases on a single key.
type Locker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// Option configures a Locker.
type Option func(*Locker)

// WithKey overrides the lease key.
func WithKey(key string) Option {
	return func(l *Locker) { l.key = key }
}

// WithTTL sets how long a lease lives without being extended.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) { l.ttl = ttl }
}

// New creates a Locker on an existing client.
func New(client redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{client: client, key: DefaultKey, ttl: 2 * time.Hour}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// NewFromURL parses a redis:// URL and creates a Locker with its own client.
func NewFromURL(url string, opts ...Option) (*Locker, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return New(redis.NewClient(redisOpts), opts...), nil
}

// Close closes the underlying client.
func (l *Locker) Close() error {
	return l.client.Close()
}

// Lease is a held lock. Release it when the run is finished.
type Lease struct {
	locker *Locker
	token  string
}

// Acquire takes the lease or returns ErrNotAcquired.
func (l *Locker) Acquire(ctx context.Context) (*Lease, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}

	if !ok {
		return nil, ErrNotAcquired
	}

	slog.Debug("run lock acquired", "key", l.key, "ttl", l.ttl)

	return &Lease{locker: l, token: token}, nil
}

// Extend resets the lease TTL. It returns ErrNotAcquired if the lease was lost.
func (ls *Lease) Extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, ls.locker.client, []string{ls.locker.key}, ls.token, ls.locker.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend run lock: %w", err)
	}

	if n == 0 {
		return ErrNotAcquired
	}

	return nil
}

// Release deletes the key if this lease still owns it.
func (ls *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, ls.locker.client, []string{ls.locker.key}, ls.token).Int()
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}

	if n == 0 {
		slog.Warn("run lock expired before release", "key", ls.locker.key)
	}

	return nil
}

// Do runs fn while holding the lease. It returns ErrNotAcquired without calling fn when the
// lease is taken.
func (l *Locker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		// Release even when ctx was cancelled by the run.
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			slog.Error("failed to release run lock", "error", err)
		}
	}()

	return fn(ctx)
}
