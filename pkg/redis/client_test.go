package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gostly/gostly-backend/pkg/config"
)

func TestFixedWindowAllowStartsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCmdable()
	client := &Client{store: fake}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "whatsapp:sender:+15550001", 2, time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, allowed, "hit %d", i+1)
		require.Equal(t, int64(i+1), count)
	}
	require.Equal(t, []string{"gostly:rate_limit:whatsapp:sender:+15550001"}, fake.expired)
}

func TestReplyCacheClaimThenOverwrite(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeCmdable()}
	key := client.ReplyKey("twilio", "SM123")

	set, err := client.SetNX(ctx, key, "<Response/>", time.Hour)
	require.NoError(t, err)
	require.True(t, set)

	set, err = client.SetNX(ctx, key, "other", time.Hour)
	require.NoError(t, err)
	require.False(t, set)

	value, err := client.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "<Response/>", value)

	require.NoError(t, client.Set(ctx, key, "<Response>final</Response>", time.Hour))
	value, err = client.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "<Response>final</Response>", value)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	require.True(t, IsNil(err))
}

func TestDisconnectedClient(t *testing.T) {
	var nilClient *Client
	require.ErrorIs(t, nilClient.Ping(context.Background()), errNotConnected)
	require.NoError(t, nilClient.Close())

	_, err := (&Client{}).SetNX(context.Background(), "k", "v", 0)
	require.ErrorIs(t, err, errNotConnected)
	require.ErrorIs(t, (&Client{}).Set(context.Background(), "k", "v", 0), errNotConnected)
	_, err = (&Client{}).IncrWithTTL(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, errNotConnected)
}

func TestKeyLayout(t *testing.T) {
	client := &Client{}
	require.Equal(t, "gostly:idempotency:stripe-webhook:evt_1", client.IdempotencyKey("stripe-webhook", "evt_1"))
	require.Equal(t, "gostly:rate_limit:ip:10.0.0.1", client.RateLimitKey("ip:10.0.0.1"))
	require.Equal(t, "gostly:reply:twilio", client.ReplyKey("twilio", " "))

	staging := &Client{namespace: "staging"}
	require.Equal(t, "staging:rate_limit:sender:+1", staging.RateLimitKey("sender:+1"))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@localhost:6380/2", DB: 5, PoolSize: 7})
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, "pw", opts.Password)
	require.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, DialTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, time.Second, opts.DialTimeout)
}

type fakeCmdable struct {
	data    map[string]string
	counts  map[string]int64
	expired []string
}

func newFakeCmdable() *fakeCmdable {
	return &fakeCmdable{data: map[string]string{}, counts: map[string]int64{}}
}

func (f *fakeCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCmdable) Expire(_ context.Context, key string, _ time.Duration) *redis.BoolCmd {
	f.expired = append(f.expired, key)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
