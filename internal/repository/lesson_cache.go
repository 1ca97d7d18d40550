package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lessonbook/internal/admission"
	"lessonbook/internal/domain"
	"lessonbook/internal/events"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lessonCachePrefix = "lesson:"

// CachedLessonLookup is a read-through redis cache in front of a LessonLookup.
// It only feeds the advisory checks; the mutation always reads the lesson row under lock.
// Redis errors are logged and the lookup falls through to next.
type CachedLessonLookup struct {
	next   admission.LessonLookup
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedLessonLookup(next admission.LessonLookup, client *redis.Client, ttl time.Duration, log *zap.Logger) *CachedLessonLookup {
	return &CachedLessonLookup{next: next, client: client, ttl: ttl, log: log}
}

func lessonKey(id int64) string {
	return fmt.Sprintf("%s%d", lessonCachePrefix, id)
}

func (c *CachedLessonLookup) GetLesson(ctx context.Context, id int64) (*domain.Lesson, error) {
	key := lessonKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var l domain.Lesson
		if jerr := json.Unmarshal(data, &l); jerr == nil {
			return &l, nil
		}
		c.log.Warn("lesson cache entry is corrupt", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("lesson cache get failed", zap.String("key", key), zap.Error(err))
	}

	l, err := c.next.GetLesson(ctx, id)
	if err != nil {
		return nil, err
	}

	if b, jerr := json.Marshal(l); jerr == nil {
		if serr := c.client.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			c.log.Warn("lesson cache set failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return l, nil
}

func (c *CachedLessonLookup) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = lessonKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// Publish drops the cached copies of every lesson the event touched.
func (c *CachedLessonLookup) Publish(ctx context.Context, e events.Event) error {
	return c.Invalidate(ctx, e.LessonIDs()...)
}
