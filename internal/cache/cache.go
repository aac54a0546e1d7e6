// cache — необязательный Redis-кэш состояния refresh-токенов. Источник
// истины — хранилище учётных данных; кэш позволяет отклонять уже
// использованные или отозванные токены без запроса в БД.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix — префикс ключей по умолчанию.
const DefaultPrefix = "auth:rt:"

// RefreshEntry описывает данные, которые хранятся в Redis по хэшу refresh-токена.
type RefreshEntry struct {
	AccountID uuid.UUID
	Revoked   bool
	ExpiresAt time.Time
}

// RefreshCache — контракт кэша refresh-токенов.
type RefreshCache interface {
	// Get возвращает запись и признак её наличия в кэше.
	Get(ctx context.Context, hash string) (*RefreshEntry, bool, error)
	// Set сохраняет запись с TTL (обычно ExpiresAt-now).
	Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error
	// MarkRevoked помечает ключ rev=1. Ключ создаётся, если его не было,
	// с TTL не больше ttl.
	MarkRevoked(ctx context.Context, hash string, ttl time.Duration) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется DefaultPrefix.
func NewRedisCache(ctx context.Context, redisURL, prefix string) (RefreshCache, error) {
	const op = "cache.NewRedisCache"

	if prefix == "" {
		prefix = DefaultPrefix
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

// Храним как Redis Hash с полями: uid, rev (0/1), exp (unix).
func (c *redisCache) Get(ctx context.Context, hash string) (*RefreshEntry, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(hash)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	e := &RefreshEntry{Revoked: m["rev"] == "1"}

	if v, ok := m["uid"]; ok && v != "" {
		if e.AccountID, err = uuid.Parse(v); err != nil {
			return nil, false, err
		}
	}

	if v, ok := m["exp"]; ok && v != "" {
		expUnix, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false, err
		}
		e.ExpiresAt = time.Unix(expUnix, 0).UTC()
	}

	return e, true, nil
}

func (c *redisCache) Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	kv := map[string]string{
		"uid": e.AccountID.String(),
		"rev": boolTo01(e.Revoked),
		"exp": strconv.FormatInt(e.ExpiresAt.Unix(), 10),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(hash), kv)
	pipe.Expire(ctx, c.key(hash), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) MarkRevoked(ctx context.Context, hash string, ttl time.Duration) error {
	added, err := c.rdb.HSet(ctx, c.key(hash), "rev", "1").Result()
	if err != nil {
		return err
	}

	// Поле rev появилось впервые — ключа не было, ставим TTL.
	// Остаточный TTL существующего ключа не трогаем.
	if added > 0 && ttl > 0 {
		return c.rdb.Expire(ctx, c.key(hash), ttl).Err()
	}

	return nil
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
