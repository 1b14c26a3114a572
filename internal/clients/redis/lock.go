package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/AbhiraajV/brainlm-backend/internal/logger"
)

// UserLocker serializes pattern mutation per user. Two events for the same
// user processed concurrently can otherwise read the same best candidate
// before either commits and fork the lineage.
type UserLocker interface {
	Acquire(ctx context.Context, userID uuid.UUID) (release func(), err error)
}

type userLocker struct {
	log     *logger.Logger
	rdb     *goredis.Client
	ttl     time.Duration
	waitFor time.Duration
}

var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func NewUserLocker(log *logger.Logger) (UserLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &userLocker{
		log:     log.With("service", "RedisUserLocker"),
		rdb:     rdb,
		ttl:     60 * time.Second,
		waitFor: 30 * time.Second,
	}, nil
}

func (l *userLocker) Acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}
	key := "pattern_lock:" + userID.String()
	token := uuid.New().String()
	deadline := time.Now().Add(l.waitFor)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for pattern lock, user_id=%s", userID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("Failed to release pattern lock", "key", key, "error", err)
		}
	}
	return release, nil
}

// NoopLocker is used when Redis is not configured. Single-instance
// deployments lose nothing; multi-instance deployments lose the per-user
// serialization guarantee.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	return func() {}, nil
}
