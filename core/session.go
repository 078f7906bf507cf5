package core

// User is the authenticated end user driving a chat request.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Account is the tenant that owns plugins and is billed for usage.
type Account struct {
	ID     string `json:"id"`
	Number string `json:"account_number,omitempty"`
}

// Session links a chat conversation to its account and user and carries
// the effective model configuration. It is owned by a collaborator and is
// read-only to the orchestrator.
type Session struct {
	Key      string   `json:"session_key"`
	Account  *Account `json:"account,omitempty"`
	User     *User    `json:"user,omitempty"`
	Provider string   `json:"provider,omitempty"`

	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int64   `json:"max_tokens,omitempty"`
}

// ChatData is the inbound request body of one chat call.
type ChatData struct {
	SessionKey string    `json:"session_key"`
	Messages   []Message `json:"messages"`
}

// LastUserMessage returns the index of the newest user message, or -1.
func (d ChatData) LastUserMessage() int {
	for i := len(d.Messages) - 1; i >= 0; i-- {
		if d.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// Prompt returns the text of the newest user message.
func (d ChatData) Prompt() (string, error) {
	i := d.LastUserMessage()
	if i < 0 {
		return "", Errorf(ErrInput, "chat.prompt", "messages contain no user message")
	}
	text := d.Messages[i].Text()
	if text == "" {
		return "", Errorf(ErrInput, "chat.prompt", "user message is empty")
	}
	return text, nil
}
