package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-tracker/pkg/chat"
	"github.com/jwebster45206/scene-tracker/pkg/storage"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

func newTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedisStorage(mr.Addr(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func scene(t *testing.T, data string) *tracker.Object {
	t.Helper()
	obj, err := tracker.Decode(data, tracker.FormatJSON)
	require.NoError(t, err)
	return obj
}

func sampleChat(t *testing.T) *chat.Chat {
	c := chat.New("Sam", chat.Character{Name: "Ava", Description: "A botanist."})
	c.Append(chat.Message{Name: "Sam", Text: "Hi", IsUser: true})
	c.Append(chat.Message{Name: "Ava", Text: "Hello", Tracker: scene(t, `{"Zed": "1", "Alpha": "2"}`)})
	return c
}

func TestRedisStorage_Ping(t *testing.T) {
	r, _ := newTestStorage(t)
	assert.NoError(t, r.Ping(context.Background()))
	assert.NoError(t, r.WaitForConnection(context.Background()))
}

func TestRedisStorage_SaveAndLoadChat(t *testing.T) {
	r, mr := newTestStorage(t)
	ctx := context.Background()
	c := sampleChat(t)

	require.NoError(t, r.SaveChat(ctx, c))

	assert.True(t, mr.Exists("chat:"+c.ID.String()))
	stored := mr.HGet("chat-trackers:"+c.ID.String(), "1")
	assert.JSONEq(t, `{"Zed": "1", "Alpha": "2"}`, stored)

	loaded, err := r.LoadChat(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, c.ID, loaded.ID)
	require.Len(t, loaded.Messages, 2)
	assert.Nil(t, loaded.Messages[0].Tracker)
	assert.Equal(t, []string{"Zed", "Alpha"}, loaded.Messages[1].Tracker.Keys())
	assert.Equal(t, "A botanist.", loaded.Characters[0].Description)
}

func TestRedisStorage_LoadChatNotFound(t *testing.T) {
	r, _ := newTestStorage(t)
	loaded, err := r.LoadChat(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStorage_SaveChatReplacesTrackers(t *testing.T) {
	r, mr := newTestStorage(t)
	ctx := context.Background()
	c := sampleChat(t)
	require.NoError(t, r.SaveChat(ctx, c))

	c.Messages[1].Tracker = nil
	require.NoError(t, r.SaveChat(ctx, c))
	assert.False(t, mr.Exists("chat-trackers:"+c.ID.String()))

	loaded, err := r.LoadChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.Messages[1].Tracker)
}

func TestRedisStorage_LoadChatIgnoresOrphanTrackers(t *testing.T) {
	r, mr := newTestStorage(t)
	ctx := context.Background()
	c := sampleChat(t)
	require.NoError(t, r.SaveChat(ctx, c))

	mr.HSet("chat-trackers:"+c.ID.String(), "7", `{"Time": "late"}`)
	mr.HSet("chat-trackers:"+c.ID.String(), "0", `not json`)

	loaded, err := r.LoadChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.Messages[0].Tracker)
	assert.NotNil(t, loaded.Messages[1].Tracker)
}

func TestRedisStorage_DeleteAndListChats(t *testing.T) {
	r, mr := newTestStorage(t)
	ctx := context.Background()
	a, b := sampleChat(t), sampleChat(t)
	require.NoError(t, r.SaveChat(ctx, a))
	require.NoError(t, r.SaveChat(ctx, b))

	ids, err := r.ListChats(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)

	require.NoError(t, r.DeleteChat(ctx, a.ID))
	assert.False(t, mr.Exists("chat:"+a.ID.String()))
	assert.False(t, mr.Exists("chat-trackers:"+a.ID.String()))

	ids, err = r.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, ids)
}

func TestRedisStorage_AppendMessage(t *testing.T) {
	r, _ := newTestStorage(t)
	ctx := context.Background()
	c := sampleChat(t)
	require.NoError(t, r.SaveChat(ctx, c))

	// A tracker committed after the caller read the chat must survive the append.
	require.NoError(t, r.SaveTracker(ctx, c.ID, 0, scene(t, `{"Time": "dawn"}`)))

	index, err := r.AppendMessage(ctx, c.ID, chat.Message{Name: "Sam", Text: "Walk?", IsUser: true})
	require.NoError(t, err)
	assert.Equal(t, 2, index)

	loaded, err := r.LoadChat(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 3)
	assert.Equal(t, "Walk?", loaded.Messages[2].Text)
	assert.False(t, loaded.Messages[2].SentAt.IsZero())
	assert.Equal(t, "dawn", loaded.Messages[0].Tracker.String("Time"))

	_, err = r.AppendMessage(ctx, uuid.New(), chat.Message{Name: "Sam", Text: "x"})
	assert.ErrorIs(t, err, storage.ErrNoChat)
}

func TestRedisStorage_SaveTracker(t *testing.T) {
	r, _ := newTestStorage(t)
	ctx := context.Background()
	c := sampleChat(t)
	require.NoError(t, r.SaveChat(ctx, c))

	require.NoError(t, r.SaveTracker(ctx, c.ID, 0, scene(t, `{"Time": "noon"}`)))
	got, err := r.LoadTracker(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "noon", got.String("Time"))

	require.NoError(t, r.SaveTracker(ctx, c.ID, 0, nil))
	got, err = r.LoadTracker(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = r.SaveTracker(ctx, c.ID, 5, scene(t, `{"Time": "noon"}`))
	assert.ErrorIs(t, err, chat.ErrMessageIndex)

	err = r.SaveTracker(ctx, uuid.New(), 0, scene(t, `{"Time": "noon"}`))
	assert.ErrorIs(t, err, storage.ErrNoChat)
}

func TestRedisStorage_Schema(t *testing.T) {
	r, _ := newTestStorage(t)
	ctx := context.Background()

	s, err := r.LoadSchema(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, r.SaveSchema(ctx, tracker.DefaultSchema()))
	s, err = r.LoadSchema(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, len(tracker.DefaultSchema().Fields), len(s.Fields))
	assert.Equal(t, "Time", s.Fields[0].Name)

	assert.Error(t, r.SaveSchema(ctx, nil))
}

func TestRedisStorage_ErrorsSurface(t *testing.T) {
	r, mr := newTestStorage(t)
	mr.SetError("READONLY You can't write against a read only replica.")

	assert.Error(t, r.Ping(context.Background()))
	assert.Error(t, r.SaveChat(context.Background(), sampleChat(t)))
	_, err := r.LoadChat(context.Background(), uuid.New())
	assert.Error(t, err)
}
