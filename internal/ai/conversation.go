package ai

// Role of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role
	Text string
}

// Conversation is the per-stream history of a multi-turn backend. It belongs
// to one orchestrator and is never shared between streams.
type Conversation struct {
	Turns []Turn

	// ThreadID is the remote thread of a stateful backend. It survives Reset.
	ThreadID string
}

func (c *Conversation) Append(role Role, text string) {
	c.Turns = append(c.Turns, Turn{Role: role, Text: text})
}

// Reset drops the turns and keeps the remote thread reference.
func (c *Conversation) Reset() {
	c.Turns = nil
}

func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Turns)
}
