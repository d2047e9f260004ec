package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-tracker/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := NewClient("redis://"+mr.Addr(), logger)
	require.NoError(t, err, "Failed to create queue client")
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestNewClientAcceptsBareAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer client.Close()
	assert.NotNil(t, client.GetRedisClient())
}

func TestNewClientErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient("redis://%zz", logger)
	assert.ErrorContains(t, err, "failed to parse redis URL")

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()
	_, err = NewClient(addr, logger)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestRequestQueue_EnqueueAndDequeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewRequestQueue(client)
	ctx := context.Background()
	chatID := uuid.New()

	first := queue.NewRequest(queue.RequestTypeAuto, chatID, 1)
	second := queue.NewRequest(queue.RequestTypeGenerate, chatID, 2)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	assert.True(t, mr.Exists(requestsKey))
	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.RequestID, got.RequestID)
	assert.Equal(t, queue.RequestTypeAuto, got.Type)
	assert.Equal(t, chatID, got.ChatID)
	assert.Equal(t, -1, got.Anchor)

	got, err = q.BlockingDequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.RequestID, got.RequestID)
	assert.Equal(t, 2, got.MessageIndex)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty queue returns nil")
}

func TestRequestQueue_BlockingDequeueCancelled(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewRequestQueue(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := q.BlockingDequeue(ctx, time.Second)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequestQueue_Requeue(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewRequestQueue(client)
	ctx := context.Background()

	req := queue.NewRequest(queue.RequestTypeGenerate, uuid.New(), 0)
	require.NoError(t, q.Requeue(ctx, req))
	assert.Equal(t, 1, req.Attempts)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	req.Attempts = MaxAttempts
	err = q.Requeue(ctx, req)
	assert.ErrorIs(t, err, ErrTooManyAttempts)
	depth, _ := q.Depth(ctx)
	assert.Zero(t, depth)
}

func TestRequestQueue_PeekAndClear(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewRequestQueue(client)
	ctx := context.Background()
	chatID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, queue.NewRequest(queue.RequestTypeAuto, chatID, i)))
	}

	all, err := q.Peek(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 0, all[0].MessageIndex)

	some, err := q.Peek(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, some, 2)

	depth, _ := q.Depth(ctx)
	assert.Equal(t, 3, depth, "peek does not remove requests")

	require.NoError(t, q.Clear(ctx))
	assert.False(t, mr.Exists(requestsKey))
}

func TestRequestQueue_BadPayload(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewRequestQueue(client)

	_, err := mr.Lpush(requestsKey, "not json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background())
	assert.ErrorContains(t, err, "failed to parse request")
}
