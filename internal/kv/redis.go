package kv

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Values are stored as JSON
// under prefixed keys
type Redis struct {
	client *redis.Client
	prefix string
}

const scanBatchSize = 100

var _ Store = (*Redis)(nil)

// NewRedis connects a Store to the Redis server at addr
func NewRedis(addr, password string, db int, prefix string) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), prefix)
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
	}
}

func (r *Redis) Put(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrKeyRequired
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, data, 0).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (any, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var res any
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Keys returns the stored keys, without prefix, in sorted order
func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	var res []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		res = append(res, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	slices.Sort(res)
	return res, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
