// Package cache tracks recently viewed events in Redis. Each user has
// a sorted set of event ids scored by view count, and each event has a
// reverse-index set of its viewers so deleting an event can purge it
// from every user's history.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRecentLimit is how many events Recent returns.
const DefaultRecentLimit = 4

type commander interface {
	ZIncrBy(ctx context.Context, key string, increment float64, member string) *redis.FloatCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RecentViews records and serves each user's most viewed events.
type RecentViews struct {
	client commander
	limit  int
}

// NewClient dials Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRecentViews(client *redis.Client) *RecentViews {
	return &RecentViews{client: client, limit: DefaultRecentLimit}
}

// Record bumps the event's view score for the user and indexes the
// user as a viewer of the event.
func (r *RecentViews) Record(ctx context.Context, userID, eventID string) error {
	if err := r.client.ZIncrBy(ctx, recentKey(userID), 1, eventID).Err(); err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	if err := r.client.SAdd(ctx, viewersKey(eventID), userID).Err(); err != nil {
		return fmt.Errorf("index viewer: %w", err)
	}
	return nil
}

// Recent returns the user's most viewed event ids, highest score first.
func (r *RecentViews) Recent(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.client.ZRevRange(ctx, recentKey(userID), 0, int64(r.limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent views: %w", err)
	}
	return ids, nil
}

// Forget removes the event from every viewer's history and drops its
// viewer index. Called when an event is deleted.
func (r *RecentViews) Forget(ctx context.Context, eventID string) error {
	viewers, err := r.client.SMembers(ctx, viewersKey(eventID)).Result()
	if err != nil {
		return fmt.Errorf("list viewers: %w", err)
	}
	for _, userID := range viewers {
		if err := r.client.ZRem(ctx, recentKey(userID), eventID).Err(); err != nil {
			return fmt.Errorf("purge view for %s: %w", userID, err)
		}
	}
	if err := r.client.Del(ctx, viewersKey(eventID)).Err(); err != nil {
		return fmt.Errorf("drop viewer index: %w", err)
	}
	return nil
}

func recentKey(userID string) string {
	return "recent:" + userID
}

func viewersKey(eventID string) string {
	return "viewers:" + eventID
}
