package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"SafeArrival/internal/model"
)

func testKey(parts ...string) string {
	key := "test"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testJourney(t *testing.T) *model.Journey {
	j, err := model.NewJourney("j_1", time.UnixMilli(1_700_000_000_000), 15*time.Minute,
		model.Windows{Check: time.Minute, Warning: time.Minute})
	require.NoError(t, err)
	return j
}

func TestJourneyStore_LoadEmpty(t *testing.T) {
	_, rdb := newTestClient(t)
	s := NewJourneyStore(rdb, testKey)

	j, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, j)
}

func TestJourneyStore_SaveLoadErase(t *testing.T) {
	mr, rdb := newTestClient(t)
	s := NewJourneyStore(rdb, testKey)
	ctx := context.Background()

	want := testJourney(t)
	require.NoError(t, s.Save(ctx, want))
	require.Equal(t, "active", mr.HGet("test:safe_arrival:v1", "status"))
	require.Equal(t, "1700000900000", mr.HGet("test:safe_arrival:v1", "arrival_time"))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want.JourneyID, got.JourneyID)
	require.Equal(t, want.Status, got.Status)
	require.True(t, want.StartedAt.Equal(got.StartedAt))
	require.True(t, want.WarningExpiry.Equal(got.WarningExpiry))
	require.Equal(t, want.Duration, got.Duration)

	require.NoError(t, s.Save(ctx, want.WithStatus(model.JourneyStatusSOSTriggered)))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, model.JourneyStatusSOSTriggered, got.Status)

	require.NoError(t, s.Erase(ctx))
	require.NoError(t, s.Erase(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestJourneyStore_RejectsInvalid(t *testing.T) {
	_, rdb := newTestClient(t)
	s := NewJourneyStore(rdb, testKey)

	require.Error(t, s.Save(context.Background(), testJourney(t).WithStatus(model.JourneyStatusIdle)))
	require.Error(t, s.Save(context.Background(), nil))
}

func TestJourneyStore_Corrupt(t *testing.T) {
	mr, rdb := newTestClient(t)
	s := NewJourneyStore(rdb, testKey)

	mr.HSet("test:safe_arrival:v1", "status", "active", "journey_id", "j_1", "started_at", "abc")
	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrCorruptJourney)

	mr.Del("test:safe_arrival:v1")
	mr.HSet("test:safe_arrival:v1",
		"status", "bogus", "journey_id", "j_1", "started_at", "1", "duration_ms", "1",
		"arrival_time", "2", "check_expiry", "3", "warning_expiry", "4")
	_, err = s.Load(context.Background())
	require.ErrorIs(t, err, ErrCorruptJourney)
}

func TestScheduleTokenStore(t *testing.T) {
	_, rdb := newTestClient(t)
	s := NewScheduleTokenStore(rdb, testKey)
	ctx := context.Background()

	token, err := s.Current(ctx)
	require.NoError(t, err)
	require.Empty(t, token)

	require.NoError(t, s.Replace(ctx, "a"))
	require.NoError(t, s.Replace(ctx, "b"))
	token, err = s.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", token)

	require.NoError(t, s.Clear(ctx))
	token, err = s.Current(ctx)
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestPermissionStore(t *testing.T) {
	mr, rdb := newTestClient(t)
	s := NewPermissionStore(rdb, testKey)
	ctx := context.Background()

	perms, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DefaultPermissions(), perms)

	require.NoError(t, s.Set(ctx, model.Permissions{Location: model.PermissionGranted, Notifications: model.PermissionDenied}))
	perms, err = s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PermissionGranted, perms.Location)
	require.Equal(t, model.PermissionDenied, perms.Notifications)

	require.Error(t, s.Set(ctx, model.Permissions{Location: "maybe", Notifications: model.PermissionGranted}))

	mr.HSet("test:permissions", "location", "garbage")
	perms, err = s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PermissionUnknown, perms.Location)
}

func TestLocker(t *testing.T) {
	_, rdb := newTestClient(t)
	l := NewLocker(rdb, testKey)
	ctx := context.Background()

	ok, err := l.TryLock(ctx, "sos:j_1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.TryLock(ctx, "sos:j_1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "sos:j_1"))
	ok, err = l.TryLock(ctx, "sos:j_1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
