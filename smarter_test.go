package smarter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/internal/testutil"
	"github.com/smarter-sh/smarter-sub001/model"
	"github.com/smarter-sh/smarter-sub001/plugin"
	"github.com/smarter-sh/smarter-sub001/session"
)

func request(text string) ChatRequest {
	sess := testutil.NewSessionBuilder("sess-1").Model("gpt-4o-mini").Temperature(0.3).MaxTokens(128).Build()
	return ChatRequest{User: sess.User, Session: sess, Data: testutil.Chat("sess-1", core.UserMessage(text))}
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestService_ChatPersistsHistory(t *testing.T) {
	client := model.NewMockClient("openai",
		model.MockStep{Response: model.TextResponse("first answer", model.TokenUsage{TotalTokens: 5})},
		model.MockStep{Response: model.TextResponse("second answer", model.TokenUsage{TotalTokens: 7})},
	)
	store := session.NewInMemoryStore()
	svc, err := New(func(o *Options) {
		o.Client = client
		o.History = store
		o.PersistHistory = true
	})
	require.NoError(t, err)

	env := svc.Chat(context.Background(), request("one"))
	assert.Equal(t, 200, env.Status)
	assert.Equal(t, 2, store.Len("sess-1"))

	env = svc.Chat(context.Background(), request("two"))
	assert.Equal(t, 200, env.Status)
	assert.Equal(t, 4, store.Len("sess-1"))

	// the second call replays the stored thread
	msgs := client.Bodies()[1]["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].(map[string]any)["content"])
}

func TestService_PluginCandidates(t *testing.T) {
	hours := testutil.NewFakePlugin(7, map[string]any{"mon": "9-17"})
	other := testutil.NewFakePlugin(9, "other")
	reg, err := plugin.NewRegistry(hours, other)
	require.NoError(t, err)

	client := model.NewMockClient("openai", model.MockStep{Response: model.TextResponse("ok", model.TokenUsage{})})
	svc, err := New(func(o *Options) {
		o.Client = client
		o.Plugins = reg
	})
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), func() ChatRequest {
		r := request("hours?")
		r.PluginIDs = []int64{9}
		return r
	}())
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, res.Plugins)

	env := svc.Chat(context.Background(), func() ChatRequest {
		r := request("hours?")
		r.PluginIDs = []int64{42}
		return r
	}())
	assert.Equal(t, 500, env.Status)
	assert.Equal(t, "ConfigurationError", env.Body["error"].(map[string]any)["error_class"])
}

type failingStore struct{ session.HistoryStore }

func (failingStore) Append(context.Context, string, ...core.Message) error {
	return errors.New("disk full")
}

func TestService_PersistFailure(t *testing.T) {
	client := model.NewMockClient("openai", model.MockStep{Response: model.TextResponse("ok", model.TokenUsage{})})
	svc, err := New(func(o *Options) {
		o.Client = client
		o.History = failingStore{session.NewInMemoryStore()}
		o.PersistHistory = true
	})
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), request("hi"))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Contains(t, err.Error(), "disk full")
}
