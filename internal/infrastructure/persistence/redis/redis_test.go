package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/bookcatalog/internal/domain/recalc"
)

// 需要真实Redis:CATALOG_TEST_REDIS_ADDR=127.0.0.1:6379
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CATALOG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置CATALOG_TEST_REDIS_ADDR,跳过Redis测试")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDeduper_ClaimRelease(t *testing.T) {
	client := newTestClient(t)
	d := NewDeduper(client, time.Minute)
	ctx := context.Background()

	key := recalc.CategoryDedupKey(uint(time.Now().UnixNano() % 1_000_000))
	t.Cleanup(func() { client.Del(ctx, key) })

	ok, err := d.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Claim(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "重复登记应被合并")

	require.NoError(t, d.Release(ctx, key))
	ok, err = d.Claim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestSessionStore_Blacklist(t *testing.T) {
	client := newTestClient(t)
	s := NewSessionStore(client)
	ctx := context.Background()

	jti := uuid.NewString()
	in, err := s.IsInBlacklist(ctx, jti)
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, s.AddToBlacklist(ctx, jti, time.Minute))
	in, err = s.IsInBlacklist(ctx, jti)
	require.NoError(t, err)
	assert.True(t, in)

	// 已过期的Token不写入
	other := uuid.NewString()
	require.NoError(t, s.AddToBlacklist(ctx, other, 0))
	in, err = s.IsInBlacklist(ctx, other)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestSessionStore_Session(t *testing.T) {
	client := newTestClient(t)
	s := NewSessionStore(client)
	ctx := context.Background()

	const userID = 987654
	t.Cleanup(func() { _ = s.DeleteSession(ctx, userID) })

	require.NoError(t, s.SaveSession(ctx, userID, map[string]interface{}{"ip": "127.0.0.1"}, time.Minute))
	got, err := s.GetSession(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", got["ip"])

	require.NoError(t, s.DeleteSession(ctx, userID))
	_, err = s.GetSession(ctx, userID)
	assert.Error(t, err)
}
