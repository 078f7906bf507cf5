package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarter-sh/smarter-sub001/model"
)

const testConfig = `
provider:
  timeout: 5s
  api_key: sk-test
defaults:
  model: gpt-4o-mini
logging:
  level: error
storage:
  driver: sqlite
  dsn: file:%s
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "smarter.yaml")
	content := fmt.Sprintf(testConfig, filepath.Join(dir, "history.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunChat(t *testing.T) {
	path := writeConfig(t)
	client := model.NewMockClient("openai",
		model.MockStep{Response: model.TextResponse("Hello from the mock.", model.TokenUsage{TotalTokens: 3})},
		model.MockStep{Response: model.TextResponse("Still here.", model.TokenUsage{TotalTokens: 3})},
	)

	var out bytes.Buffer
	flags := chatFlags{configPath: path, sessionKey: "cli-1", account: "a", username: "u"}
	require.NoError(t, runChat(context.Background(), &out, flags, "hi", client))

	var env struct {
		Status int            `json:"status"`
		Body   map[string]any `json:"body"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.Equal(t, 200, env.Status)
	assert.Equal(t, "cli-1", env.Body["metadata"].(map[string]any)["session_key"])

	// the second run replays the stored user and assistant messages
	out.Reset()
	require.NoError(t, runChat(context.Background(), &out, flags, "again", client))
	msgs := client.Bodies()[1]["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hi", msgs[0].(map[string]any)["content"])
}

func TestRunChat_Failure(t *testing.T) {
	path := writeConfig(t)
	client := model.NewMockClient("openai", model.MockStep{Err: model.NewVendorError(model.KindAuthentication, 401, "bad key", nil)})

	var out bytes.Buffer
	err := runChat(context.Background(), &out, chatFlags{configPath: path, sessionKey: "cli-2"}, "hi", client)
	require.Error(t, err)

	var env struct {
		Status int `json:"status"`
		Body   struct {
			Error map[string]any `json:"error"`
		} `json:"body"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.Equal(t, 401, env.Status)
	assert.Equal(t, "AuthenticationError", env.Body.Error["error_class"])
}

func TestRunChat_PrettyOutput(t *testing.T) {
	path := writeConfig(t)
	client := model.NewMockClient("openai", model.MockStep{Response: model.TextResponse("ok", model.TokenUsage{})})

	var out bytes.Buffer
	flags := chatFlags{configPath: path, sessionKey: "cli-3", pretty: true}
	require.NoError(t, runChat(context.Background(), &out, flags, "hi", client))
	assert.Contains(t, out.String(), "\n  \"status\": 200")
}

func TestVersionCmd(t *testing.T) {
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "smarter dev")
}
