// Package lock serialises critical sections by key, either within one
// process or across instances through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be taken in time.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding the lock for key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// Local is an in-process Locker. Entries are dropped once nobody holds or
// waits on them.
type Local struct {
	mu sync.Mutex
	m  map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

var _ Locker = (*Local)(nil)

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{m: make(map[string]*entry)}
}

// WithLock implements Locker.
func (l *Local) WithLock(ctx context.Context, key string, fn func() error) error {
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &entry{}
		l.m[key] = e
	}
	e.refs++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	return fn()
}

// Held reports how many keys are currently locked or awaited.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Options tunes the Redis lock.
type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultOptions suits short critical sections like a balance check and one
// insert.
func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      20,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Redis is a Locker shared by every instance pointed at the same Redis.
type Redis struct {
	rs   *redsync.Redsync
	opts Options
}

var _ Locker = (*Redis)(nil)

// NewRedis creates a Redis-backed locker
func NewRedis(client redis.UniversalClient, opts Options) *Redis {
	return &Redis{rs: redsync.New(goredis.NewPool(client)), opts: opts}
}

// WithLock implements Locker.
func (r *Redis) WithLock(ctx context.Context, key string, fn func() error) error {
	mutex := r.rs.NewMutex("lock:"+key,
		redsync.WithExpiry(r.opts.Expiry),
		redsync.WithTries(r.opts.Tries),
		redsync.WithRetryDelay(r.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
	}
	defer func() {
		// Unlock must run even when the request context is gone.
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			slog.Warn("failed to release lock", "key", key, "error", err)
		}
	}()

	return fn()
}
