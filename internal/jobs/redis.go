package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic-lock retries of Update.
const maxTxRetries = 8

// RedisStore keeps jobs as JSON strings under <prefix>job:<id> with an index
// set <prefix>jobs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect job store: %w", err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "reelforge:"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(id string) string { return s.prefix + "job:" + id }
func (s *RedisStore) index() string        { return s.prefix + "jobs" }

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Create(ctx context.Context, j Job) error {
	if err := validateNew(j); err != nil {
		return err
	}
	buf, err := json.Marshal(j)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(j.ID), buf, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	return s.client.SAdd(ctx, s.index(), j.ID).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (Job, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Update applies fn under WATCH so concurrent writers cannot interleave.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Job) error) (Job, error) {
	key := s.key(id)
	var out Job
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Job
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		next, err := applyUpdate(cur, fn)
		if err != nil {
			return err
		}
		buf, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, 0)
			return nil
		})
		if err == nil {
			out = next
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Job{}, err
		}
		return out, nil
	}
	return Job{}, fmt.Errorf("update job %s: %w", id, redis.TxFailedErr)
}

func (s *RedisStore) List(ctx context.Context) ([]Job, error) {
	ids, err := s.client.SMembers(ctx, s.index()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Job{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var j Job
		if err := json.Unmarshal([]byte(str), &j); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	sortJobs(out)
	return out, nil
}
