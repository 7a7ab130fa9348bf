package activation

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var (
	redisAttemptPrefix = "activation/attempts/"
	redisActivatedKey  = "activation/activated"
)

// RedisAttemptStore keeps attempt counters in redis, so a process restart
// never grants a user fresh attempts.
type RedisAttemptStore struct {
	Client *redis.Client
}

func NewRedisAttemptStore(redisURL string) (*RedisAttemptStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisAttemptStore{Client: rdb}, nil
}

func (s *RedisAttemptStore) Incr(ctx context.Context, userID int64) (int, error) {
	n, err := s.Client.Incr(ctx, userKey(redisAttemptPrefix, userID)).Result()
	return int(n), err
}

func (s *RedisAttemptStore) Get(ctx context.Context, userID int64) (int, error) {
	n, err := s.Client.Get(ctx, userKey(redisAttemptPrefix, userID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *RedisAttemptStore) Reset(ctx context.Context, userID int64) error {
	return s.Client.Del(ctx, userKey(redisAttemptPrefix, userID)).Err()
}

type RedisActivatedStore struct {
	Client *redis.Client
}

func NewRedisActivatedStore(redisURL string) (*RedisActivatedStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisActivatedStore{Client: rdb}, nil
}

func (s *RedisActivatedStore) Add(ctx context.Context, userID int64) error {
	return s.Client.SAdd(ctx, redisActivatedKey, userID).Err()
}

func (s *RedisActivatedStore) Contains(ctx context.Context, userID int64) (bool, error) {
	return s.Client.SIsMember(ctx, redisActivatedKey, userID).Result()
}

var (
	_ AttemptStore   = (*RedisAttemptStore)(nil)
	_ ActivatedStore = (*RedisActivatedStore)(nil)
)
