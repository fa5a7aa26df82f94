package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sessionguard:lock:"

// Deletes the key only if it still holds our owner token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX on a Redis key per lock name.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker returns a Locker backed by client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// NewRedisClient parses a redis:// URL and returns a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// TryAcquire sets the lock key with a random owner token and ttl expiry.
func (l *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	key := redisKeyPrefix + name
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &redisLease{client: l.client, key: key, owner: owner}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	owner  string
	once   sync.Once
	err    error
}

func (r *redisLease) Release(ctx context.Context) error {
	r.once.Do(func() {
		r.err = releaseScript.Run(ctx, r.client, []string{r.key}, r.owner).Err()
	})
	return r.err
}
