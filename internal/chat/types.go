// Package chat provides bounded conversation sessions on top of pluggable completion backends.
package chat

// Role identifies the author of a turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a conversation
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Reply is the assistant's answer to a submitted user message
type Reply struct {
	Content string
}
