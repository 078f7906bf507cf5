package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/smarter-sh/smarter-sub001/core"
)

func TestOpen_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "history.db")

	s, err := Open(ctx, "sqlite", dsn, func(o *SQLOptions) { o.Table = "threads" })
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.LatestMessages(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)

	user := core.UserMessage("what is the weather?")
	user.IsNew = true
	call := core.AssistantMessage("", core.ToolCallRef{ID: "c1", FunctionName: "get_current_weather", ArgumentsRaw: `{"location":"Oslo"}`})
	result := core.ToolMessage("c1", "get_current_weather", `{"temperature":3}`)
	reply := core.AssistantMessage("It is 3 degrees.")

	require.NoError(t, s.Append(ctx, "k1", user, call))
	require.NoError(t, s.Append(ctx, "k1", result, reply))

	got, found, err := s.LatestMessages(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got, 4)
	assert.False(t, got[0].IsNew)
	assert.Equal(t, "Oslo", mustArgs(t, got[1].ToolCalls[0].ArgumentsRaw)["location"])
	assert.Equal(t, "c1", got[2].ToolCallID)
	assert.NoError(t, core.CheckToolCallSequence(got))

	// reopening migrates idempotently
	again, err := Open(ctx, "sqlite", dsn, func(o *SQLOptions) { o.Table = "threads" })
	require.NoError(t, err)
	defer again.Close()
	got, _, err = again.LatestMessages(ctx, "k1")
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestOpen_SQLiteConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "sqlite", "file:"+filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()
	s.DB().SetMaxOpenConns(1)

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				assert.NoError(t, s.Append(ctx, key, core.UserMessage(key)))
			}
		}(key)
	}
	wg.Wait()

	for _, key := range []string{"a", "b", "c"} {
		got, _, err := s.LatestMessages(ctx, key)
		require.NoError(t, err)
		assert.Len(t, got, 5)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func mustArgs(t *testing.T, raw string) map[string]any {
	t.Helper()
	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &args))
	return args
}
