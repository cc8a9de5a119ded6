package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio-quiz-service/internal/domain"
)

// QuestionCache remembers recently issued question texts per category so the
// generator can exclude them across sessions. Entries are stored newest-first
// in a capped list: LPUSH portfolio:recent:{category}, trimmed to size.
type QuestionCache struct {
	client *redis.Client
	size   int
	ttl    time.Duration
}

func NewQuestionCache(client *redis.Client, size int, ttl time.Duration) *QuestionCache {
	if size <= 0 {
		size = 20
	}
	return &QuestionCache{client: client, size: size, ttl: ttl}
}

func (c *QuestionCache) Remember(ctx context.Context, category domain.Category, text string) error {
	key := c.key(category)
	pipe := c.client.Pipeline()
	pipe.LPush(ctx, key, text)
	pipe.LTrim(ctx, key, 0, int64(c.size-1))
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *QuestionCache) Recent(ctx context.Context, category domain.Category) ([]string, error) {
	return c.client.LRange(ctx, c.key(category), 0, int64(c.size-1)).Result()
}

func (c *QuestionCache) key(category domain.Category) string {
	return "portfolio:recent:" + string(category)
}
