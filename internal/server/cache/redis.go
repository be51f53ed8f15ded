package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// storeScript writes a view only if the epoch has not moved since the caller
// sampled it, and indexes the token under its owner.
var storeScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
if cur ~= tonumber(ARGV[1]) then
  return 0
end
local ttl = tonumber(ARGV[3])
redis.call("SET", KEYS[2], ARGV[2], "PX", ttl)
redis.call("SADD", KEYS[3], ARGV[4])
if redis.call("PTTL", KEYS[3]) < ttl then
  redis.call("PEXPIRE", KEYS[3], ttl)
end
return 1
`)

var invalidateUserScript = redis.NewScript(`
redis.call("INCR", KEYS[1])
local toks = redis.call("SMEMBERS", KEYS[2])
for _, t in ipairs(toks) do
  redis.call("DEL", ARGV[1] .. t)
end
redis.call("DEL", KEYS[2])
return #toks
`)

// Redis is a Cache shared between gateway instances.
//
// Keys: <prefix>epoch, <prefix>tok:<token> (JSON view, PX ttl) and
// <prefix>user:<id> (set of tokens).
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	maxAge time.Duration
	now    func() time.Time
}

func NewRedis(rdb redis.UniversalClient, prefix string, maxAge time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, maxAge: maxAge, now: time.Now}
}

func (r *Redis) epochKey() string            { return r.prefix + "epoch" }
func (r *Redis) tokenKey(token string) string { return r.prefix + "tok:" + token }
func (r *Redis) userKey(id int64) string      { return r.prefix + "user:" + strconv.FormatInt(id, 10) }

func (r *Redis) Epoch(ctx context.Context) (uint64, error) {
	n, err := r.rdb.Get(ctx, r.epochKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis epoch: %w", err)
	}
	return n, nil
}

func (r *Redis) Load(ctx context.Context, token string) (*models.SessionView, error) {
	raw, err := r.rdb.Get(ctx, r.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}

	var v models.SessionView
	if err := json.Unmarshal(raw, &v); err != nil {
		_ = r.rdb.Del(ctx, r.tokenKey(token)).Err()
		return nil, ErrMiss
	}
	if v.Expired(r.now()) {
		_ = r.rdb.Del(ctx, r.tokenKey(token)).Err()
		return nil, ErrMiss
	}
	return &v, nil
}

func (r *Redis) Store(ctx context.Context, view *models.SessionView, epoch uint64) error {
	ttl := view.ExpiresAt.Sub(r.now())
	if r.maxAge > 0 && r.maxAge < ttl {
		ttl = r.maxAge
	}
	if ttl < time.Millisecond {
		return nil
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("redis store: %w", err)
	}

	keys := []string{r.epochKey(), r.tokenKey(view.Token), r.userKey(view.UserID)}
	args := []any{strconv.FormatUint(epoch, 10), raw, ttl.Milliseconds(), view.Token}
	if err := storeScript.Run(ctx, r.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis store: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, token string) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, r.epochKey())
		p.Del(ctx, r.tokenKey(token))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (r *Redis) InvalidateUser(ctx context.Context, userID int64) error {
	keys := []string{r.epochKey(), r.userKey(userID)}
	if err := invalidateUserScript.Run(ctx, r.rdb, keys, r.prefix+"tok:").Err(); err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}
