package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	smarter "github.com/smarter-sh/smarter-sub001"
	"github.com/smarter-sh/smarter-sub001/config"
	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/internal/container"
	"github.com/smarter-sh/smarter-sub001/model"
)

type chatFlags struct {
	configPath string
	sessionKey string
	account    string
	username   string
	model      string
	plugins    []int64
	functions  []string
	system     string
	pretty     bool
}

func buildChatCmd() *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send one prompt and print the response envelope",
		Long: `Send one prompt through the orchestrator and print the JSON envelope.

The prompt is appended to the session's stored history (when storage is
configured) and the new messages are persisted after a successful call.
Plugins configured in the file are offered when their search terms match;
--plugin restricts the candidates to the given ids.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, cmd.OutOrStdout(), f, args[0], nil)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", defaultConfigPath(), "Path to the configuration file (.yaml, .json5 or .toml)")
	cmd.Flags().StringVarP(&f.sessionKey, "session", "s", "", "Session key (generated when empty)")
	cmd.Flags().StringVar(&f.account, "account", "cli", "Account id")
	cmd.Flags().StringVar(&f.username, "user", "cli", "Username")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model override")
	cmd.Flags().Int64SliceVarP(&f.plugins, "plugin", "p", nil, "Plugin id to offer (repeatable)")
	cmd.Flags().StringSliceVarP(&f.functions, "function", "f", nil, "Built-in function to offer (repeatable)")
	cmd.Flags().StringVar(&f.system, "system", "", "System message for a new session")
	cmd.Flags().BoolVar(&f.pretty, "pretty", true, "Indent the JSON output")
	return cmd
}

// runChat loads the configuration, wires the service and runs one call.
// client replaces the configured vendor client when set.
func runChat(ctx context.Context, out io.Writer, f chatFlags, prompt string, client model.Client) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	c, err := container.New(ctx, cfg, func(o *container.Options) { o.Client = client })
	if err != nil {
		return fmt.Errorf("failed to wire service: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Close(closeCtx); err != nil {
			c.Logger().Warn("cli.close.failed", "error", err.Error())
		}
	}()

	key := f.sessionKey
	if key == "" {
		key = core.NewID()
	}
	user := &core.User{ID: f.username, Username: f.username}
	sess := &core.Session{
		Key:     key,
		Account: &core.Account{ID: f.account},
		User:    user,
		Model:   f.model,
	}

	var messages []core.Message
	if f.system != "" {
		messages = append(messages, core.SystemMessage(f.system))
	}
	messages = append(messages, core.UserMessage(prompt))

	env := c.Service().Chat(ctx, smarter.ChatRequest{
		User:      user,
		Session:   sess,
		Data:      core.ChatData{SessionKey: key, Messages: messages},
		PluginIDs: f.plugins,
		Functions: f.functions,
	})

	enc := json.NewEncoder(out)
	if f.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(env); err != nil {
		return err
	}
	if env.Status != 200 {
		return fmt.Errorf("chat failed with status %d", env.Status)
	}
	return nil
}
