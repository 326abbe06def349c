package cache

import (
	"context"
	"slices"
	"sort"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps the sorted sets and sets in memory.
type fakeRedis struct {
	zsets map[string]map[string]float64
	sets  map[string]map[string]bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		zsets: map[string]map[string]float64{},
		sets:  map[string]map[string]bool{},
	}
}

func (f *fakeRedis) ZIncrBy(_ context.Context, key string, increment float64, member string) *redis.FloatCmd {
	if f.zsets[key] == nil {
		f.zsets[key] = map[string]float64{}
	}
	f.zsets[key][member] += increment
	return redis.NewFloatResult(f.zsets[key][member], nil)
}

func (f *fakeRedis) ZRevRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	type entry struct {
		member string
		score  float64
	}
	entries := []entry{}
	for member, score := range f.zsets[key] {
		entries = append(entries, entry{member, score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].member > entries[j].member
	})
	out := []string{}
	for i, e := range entries {
		if int64(i) < start {
			continue
		}
		if int64(i) > stop {
			break
		}
		out = append(out, e.member)
	}
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeRedis) ZRem(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	removed := int64(0)
	for _, m := range members {
		member := m.(string)
		if _, ok := f.zsets[key][member]; ok {
			delete(f.zsets[key], member)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (f *fakeRedis) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	if f.sets[key] == nil {
		f.sets[key] = map[string]bool{}
	}
	added := int64(0)
	for _, m := range members {
		member := m.(string)
		if !f.sets[key][member] {
			f.sets[key][member] = true
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeRedis) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	out := []string{}
	for member := range f.sets[key] {
		out = append(out, member)
	}
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	deleted := int64(0)
	for _, key := range keys {
		if _, ok := f.sets[key]; ok {
			delete(f.sets, key)
			deleted++
		}
		if _, ok := f.zsets[key]; ok {
			delete(f.zsets, key)
			deleted++
		}
	}
	return redis.NewIntResult(deleted, nil)
}

func newTestViews(f *fakeRedis) *RecentViews {
	return &RecentViews{client: f, limit: DefaultRecentLimit}
}

func TestRecordAndRecent(t *testing.T) {
	f := newFakeRedis()
	views := newTestViews(f)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, views.Record(ctx, "user-1", "ev-top"))
	}
	require.NoError(t, views.Record(ctx, "user-1", "ev-once"))

	recent, err := views.Recent(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"ev-top", "ev-once"}, recent)
}

func TestRecentCapsAtLimit(t *testing.T) {
	f := newFakeRedis()
	views := newTestViews(f)
	ctx := context.Background()

	ids := []string{"ev-1", "ev-2", "ev-3", "ev-4", "ev-5", "ev-6"}
	for i, id := range ids {
		for range i + 1 {
			require.NoError(t, views.Record(ctx, "user-1", id))
		}
	}

	recent, err := views.Recent(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, recent, DefaultRecentLimit)
	require.Equal(t, []string{"ev-6", "ev-5", "ev-4", "ev-3"}, recent)
}

func TestRecentForUnknownUserIsEmpty(t *testing.T) {
	views := newTestViews(newFakeRedis())

	recent, err := views.Recent(context.Background(), "nobody")
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestForgetPurgesAllViewers(t *testing.T) {
	f := newFakeRedis()
	views := newTestViews(f)
	ctx := context.Background()

	require.NoError(t, views.Record(ctx, "user-1", "ev-gone"))
	require.NoError(t, views.Record(ctx, "user-2", "ev-gone"))
	require.NoError(t, views.Record(ctx, "user-1", "ev-kept"))

	require.NoError(t, views.Forget(ctx, "ev-gone"))

	for _, userID := range []string{"user-1", "user-2"} {
		recent, err := views.Recent(ctx, userID)
		require.NoError(t, err)
		require.False(t, slices.Contains(recent, "ev-gone"))
	}
	recent, err := views.Recent(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"ev-kept"}, recent)

	require.Empty(t, f.sets["viewers:ev-gone"])
}
