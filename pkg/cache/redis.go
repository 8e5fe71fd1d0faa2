// backend/pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"course-platform/internal/models"

	"github.com/go-redis/redis/v8"
)

const quizTTL = 24 * time.Hour

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{client: client}
}

// NewRedisCacheFromClient is used when the caller owns the client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func quizKey(id string) string {
	return "quiz:" + id
}

// SetQuiz stores the quiz with its ordered questions and answer key.
func (c *RedisCache) SetQuiz(ctx context.Context, quiz *models.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, quizKey(quiz.ID), data, quizTTL).Err()
}

func (c *RedisCache) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	data, err := c.client.Get(ctx, quizKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var quiz models.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
