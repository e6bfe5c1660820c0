package state

import "strings"

// Role identifies who produced a conversation message.
type Role string

const (
	// RoleHuman marks input written by (or on behalf of) the user
	RoleHuman Role = "human"
	// RoleAI marks output of a text-generation service
	RoleAI Role = "ai"
	// RoleSystem marks instructions injected by the application
	RoleSystem Role = "system"
)

// Message is one entry of an append-only conversation log.
type Message struct {
	Role    Role   `json:"role" msgpack:"role"`
	Content string `json:"content" msgpack:"content"`
	Name    string `json:"name,omitempty" msgpack:"name,omitempty"`
}

// HumanMessage builds a message with RoleHuman.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AIMessage builds a message with RoleAI.
func AIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// SystemMessage builds a message with RoleSystem.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// String renders the message as "ROLE: content".
func (m Message) String() string {
	return strings.ToUpper(string(m.Role)) + ": " + m.Content
}
