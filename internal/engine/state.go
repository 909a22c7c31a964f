package engine

// State is the loop state of one Chat call. Hooks receive it read-only.
type State struct {
	Messages      []Message // Conversation sent to the provider, grown each iteration
	Iteration     int       // 1-based provider call counter
	MaxIterations int
	ToolCalls     int    // Tool calls executed so far
	StopReason    string // Last normalized stop reason seen
}

func (s *State) Append(msg Message) { s.Messages = append(s.Messages, msg) }
