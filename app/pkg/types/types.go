package types

import "context"

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message represents a user input or an assistant reply
type Message struct {
	ID             string
	Content        string
	Role           string // "user", "assistant"
	ChannelID      string // Source channel identifier (e.g., "cli", "http")
	UserID         string
	ConversationID string
	RequestID      string
	Meta           map[string]interface{}
}

// Agent represents the core reasoning entity
type Agent interface {
	Process(ctx context.Context, msg Message) (Message, error)
	Name() string
}

// Channel represents an input/output interface (CLI, HTTP)
type Channel interface {
	Start(ctx context.Context, handler func(Message)) error
	Send(ctx context.Context, msg Message) error
	ID() string
}

// Gateway orchestrates channels and the agent
type Gateway interface {
	RegisterChannel(c Channel)
	Start(ctx context.Context) error
}
