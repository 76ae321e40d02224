package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"trust-gate/middleware/trustgate/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// admitScript poda, conta e registra numa única operação atômica.
// Scores em milissegundos; idade >= janela expira.
var admitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
if count < max then
  redis.call("ZADD", KEYS[1], now, ARGV[4])
  redis.call("PEXPIRE", KEYS[1], window)
  return 1
end
return 0
`)

// RedisWindowStore compartilha as janelas entre réplicas do gateway usando um
// sorted set por chave.
type RedisWindowStore struct {
	rdb    redis.UniversalClient
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisWindowStore(rdb redis.UniversalClient, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{rdb: rdb, prefix: "trustgate:window"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit implementa domain.WindowStore.
func (s *RedisWindowStore) Admit(ctx context.Context, key domain.Key, maxAttempts int, window time.Duration, now time.Time) (bool, error) {
	if maxAttempts <= 0 {
		return false, nil
	}
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	n, err := admitScript.Run(ctx, s.rdb,
		[]string{s.redisKey(key)},
		nowMs, window.Milliseconds(), maxAttempts, member,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisWindowStore) redisKey(key domain.Key) string {
	return s.prefix + ":" + string(key)
}
