package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "vendor:token:"

// RedisTokenRepository хранит токены в Redis. Ключ истекает вместе с токеном.
type RedisTokenRepository struct {
	rdb *redis.Client
}

// NewRedisTokenRepository создает новый экземпляр RedisTokenRepository.
func NewRedisTokenRepository(rdb *redis.Client) *RedisTokenRepository {
	return &RedisTokenRepository{rdb: rdb}
}

func tokenKey(ownerID string) string {
	return tokenKeyPrefix + ownerID
}

// PutToken заменяет токен владельца и выставляет срок жизни ключа.
func (r *RedisTokenRepository) PutToken(ctx context.Context, t models.AccessToken) error {
	key := tokenKey(t.OwnerID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"token", t.Token,
			"expiry", t.Expiry.UTC().Format(time.RFC3339Nano),
			"issued_at", t.IssuedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.ExpireAt(ctx, key, t.Expiry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store token in redis: %w", err)
	}
	return nil
}

// GetToken возвращает токен владельца.
func (r *RedisTokenRepository) GetToken(ctx context.Context, ownerID string) (*models.AccessToken, error) {
	values, err := r.rdb.HGetAll(ctx, tokenKey(ownerID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read token from redis: %w", err)
	}
	if len(values) == 0 {
		return nil, models.NewNotFound("token", ownerID)
	}

	t := models.AccessToken{OwnerID: ownerID, Token: values["token"]}
	if t.Expiry, err = time.Parse(time.RFC3339Nano, values["expiry"]); err != nil {
		return nil, fmt.Errorf("corrupt token expiry for %s: %w", ownerID, err)
	}
	if t.IssuedAt, err = time.Parse(time.RFC3339Nano, values["issued_at"]); err != nil {
		return nil, fmt.Errorf("corrupt token issue time for %s: %w", ownerID, err)
	}
	return &t, nil
}

// DeleteTokens удаляет токены владельцев.
func (r *RedisTokenRepository) DeleteTokens(ctx context.Context, ownerIDs ...string) (int64, error) {
	if len(ownerIDs) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ownerIDs))
	for i, id := range ownerIDs {
		keys[i] = tokenKey(id)
	}
	n, err := r.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens from redis: %w", err)
	}
	return n, nil
}

var _ TokenRepository = (*RedisTokenRepository)(nil)
