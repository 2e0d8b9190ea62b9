package types

// Role represents the speaker of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTurn creates a turn.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}

// UserTurn creates a user turn.
func UserTurn(content string) Turn { return NewTurn(RoleUser, content) }

// AssistantTurn creates an assistant turn.
func AssistantTurn(content string) Turn { return NewTurn(RoleAssistant, content) }

// SystemTurn creates a system turn.
func SystemTurn(content string) Turn { return NewTurn(RoleSystem, content) }
