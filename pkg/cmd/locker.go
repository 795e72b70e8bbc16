package cmd

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/urbanite/caseflow/pkg/locks"
)

const defaultLockTTL = 30 * time.Second

// NewLocker returns a Redis-backed case locker when a Redis URL is given,
// otherwise an in-process one. Multi-instance deployments need Redis so
// concurrent submissions against the same case serialize across processes.
func NewLocker(redisURL string) locks.Locker {
	if redisURL == "" {
		return locks.NewMemoryLocker()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("invalid redis URL: %w", err))
	}

	return locks.NewRedisLocker(redis.NewClient(opts), defaultLockTTL)
}
