package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"course-platform/internal/models"

	"github.com/go-redis/redis/v8"
)

func TestQuizKey(t *testing.T) {
	if got := quizKey("abc"); got != "quiz:abc" {
		t.Fatalf("quizKey = %q", got)
	}
}

func TestUnreachableRedisIsNotAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCacheFromClient(client)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := c.GetQuiz(ctx, "q-1")
	if err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("GetQuiz error = %v, want a connection error", err)
	}
	if err := c.SetQuiz(ctx, &models.Quiz{ID: "q-1"}); err == nil {
		t.Fatalf("SetQuiz succeeded without a server")
	}
}
