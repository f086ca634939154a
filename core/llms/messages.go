package llms

type TurnRole string

const (
	TurnRoleSystem    TurnRole = "system"
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is a single role-tagged entry of the conversation transcript.
type Turn struct {
	Role    TurnRole
	Content string

	// Interrupted is true if the response stream failed or was cancelled
	// before it finished, Content then holds what was received.
	Interrupted bool
}
