package diagnostics

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gferrors "github.com/vnykmshr/pipex/pkg/common/errors"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mini, client
}

func TestNewRedisSinkValidation(t *testing.T) {
	_, err := NewRedisSink(RedisConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gferrors.ErrInvalidConfiguration))
}

func TestRedisSinkWriteFailure(t *testing.T) {
	_, client := newTestRedis(t)
	sink, err := NewRedisSink(RedisConfig{Client: client})
	require.NoError(t, err)
	assert.Equal(t, DefaultStream, sink.Stream())

	ctx := testContext()
	require.NoError(t, sink.WriteFailure(ctx, NewRecord(ctx, "LogAndIgnore", 1, errors.New("odd 1"))))
	require.NoError(t, sink.WriteFailure(ctx, NewRecord(ctx, "LogAndIgnore", 3, errors.New("odd 3"))))

	entries, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "run-42", entries[0].Values["run_id"])
	assert.Equal(t, "parse", entries[0].Values["stage"])
	assert.Equal(t, "1", entries[0].Values["item"])
	assert.Equal(t, "odd 1", entries[0].Values["failure"])
	assert.Equal(t, "3", entries[1].Values["item"])
}

func TestRedisSinkUnavailable(t *testing.T) {
	mini, client := newTestRedis(t)
	sink, err := NewRedisSink(RedisConfig{Client: client, Stream: "failures"})
	require.NoError(t, err)

	mini.Close()

	err = sink.WriteFailure(context.Background(), Record{Failure: "x"})
	require.Error(t, err)
	var opErr *gferrors.OperationError
	assert.True(t, errors.As(err, &opErr))
	assert.Equal(t, "WriteFailure", opErr.Operation)
}
