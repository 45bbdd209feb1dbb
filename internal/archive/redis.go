package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/stepflow/pkg/api"
)

// RedisSink stores runs as JSON strings and indexes them by completion
// time in a sorted set
type RedisSink struct {
	client *redis.Client
	prefix string
}

const redisIndexKey = "index"

var _ Sink = (*RedisSink)(nil)

// NewRedisSink connects a sink to the Redis server at addr
func NewRedisSink(addr, password string, db int, prefix string) *RedisSink {
	return NewRedisSinkWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), prefix)
}

// NewRedisSinkWithClient wraps an existing client
func NewRedisSinkWithClient(client *redis.Client, prefix string) *RedisSink {
	return &RedisSink{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisSink) Put(ctx context.Context, st *api.RunState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.keyFor(st.ID), data, 0)
		p.ZAdd(ctx, s.prefix+redisIndexKey, redis.Z{
			Score:  float64(st.CompletedAt.UnixMilli()),
			Member: string(st.ID),
		})
		return nil
	})
	return err
}

func (s *RedisSink) Get(
	ctx context.Context, id api.RunID,
) (*api.RunState, error) {
	data, err := s.client.Get(ctx, s.keyFor(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var st api.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Recent returns the ids of up to limit archived runs, most recently
// completed first
func (s *RedisSink) Recent(
	ctx context.Context, limit int64,
) ([]api.RunID, error) {
	ids, err := s.client.ZRevRange(
		ctx, s.prefix+redisIndexKey, 0, limit-1,
	).Result()
	if err != nil {
		return nil, err
	}
	res := make([]api.RunID, len(ids))
	for i, id := range ids {
		res[i] = api.RunID(id)
	}
	return res, nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

func (s *RedisSink) keyFor(id api.RunID) string {
	return s.prefix + string(id)
}
