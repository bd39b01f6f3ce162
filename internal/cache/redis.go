package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis shares cache entries between instances. Only absolute expiry applies.
type Redis struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

func NewRedis(client *redis.Client, prefix string, defaultTTL time.Duration) *Redis {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

// extendTTL raises each tag set's expiry to at least ARGV[1] ms and never
// shortens it, so a tag outlives every member registered under it.
var extendTTL = redis.NewScript(`
local ttl = tonumber(ARGV[1])
for _, k in ipairs(KEYS) do
  if redis.call("PTTL", k) < ttl then
    redis.call("PEXPIRE", k, ttl)
  end
end
return 0
`)

func (r *Redis) key(k string) string    { return r.prefix + k }
func (r *Redis) tagKey(t string) string { return r.prefix + "tag:" + t }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	full := r.key(key)
	tagKeys := make([]string, 0, len(tags))
	for _, t := range tags {
		tagKeys = append(tagKeys, r.tagKey(t))
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, full, value, ttl)
		for _, tk := range tagKeys {
			p.SAdd(ctx, tk, full)
		}
		return nil
	})
	if err != nil || len(tagKeys) == 0 {
		return err
	}
	return extendTTL.Run(ctx, r.client, tagKeys, ttl.Milliseconds()).Err()
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	return n > 0, err
}

func (r *Redis) InvalidateTag(ctx context.Context, tag string) error {
	tk := r.tagKey(tag)
	members, err := r.client.SMembers(ctx, tk).Result()
	if err != nil {
		return err
	}
	return r.client.Del(ctx, append(members, tk)...).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
