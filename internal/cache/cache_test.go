package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return New(client, "esurat:"), mr
}

func TestCacheRoundTripAndTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got []option
	assert.ErrorIs(t, c.Get(ctx, "dropdown:tindakan-segera:v1", &got), ErrMiss)

	want := []option{{Value: "1", Label: "TS-01 - Segera tindak lanjuti"}}
	require.NoError(t, c.Set(ctx, "dropdown:tindakan-segera:v1", want, 300*time.Second))
	assert.True(t, mr.Exists("esurat:dropdown:tindakan-segera:v1"))
	assert.Equal(t, 300*time.Second, mr.TTL("esurat:dropdown:tindakan-segera:v1"))

	require.NoError(t, c.Get(ctx, "dropdown:tindakan-segera:v1", &got))
	assert.Equal(t, want, got)

	mr.FastForward(301 * time.Second)
	assert.ErrorIs(t, c.Get(ctx, "dropdown:tindakan-segera:v1", &got), ErrMiss)
}

func TestCacheDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	var s string
	assert.ErrorIs(t, c.Get(ctx, "k", &s), ErrMiss)
}
