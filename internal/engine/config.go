package engine

// DefaultMaxIterations caps provider calls per Chat call.
const DefaultMaxIterations = 10

// AgentConfig holds the Agent's tunables.
type AgentConfig struct {
	MaxIterations int
	SystemPrompt  func() (string, error)
	Hooks         Hooks
}

// DefaultAgentConfig returns the configuration used when no options are given.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxIterations: DefaultMaxIterations,
		SystemPrompt:  func() (string, error) { return "", nil },
	}
}

// AgentOption configures an Agent.
type AgentOption func(*AgentConfig)

// WithMaxIterations overrides the iteration cap. Values below 1 are ignored.
func WithMaxIterations(n int) AgentOption {
	return func(c *AgentConfig) {
		if n > 0 {
			c.MaxIterations = n
		}
	}
}

// WithSystemPrompt sets the system prompt builder. It runs at most once per
// Chat call.
func WithSystemPrompt(build func() (string, error)) AgentOption {
	return func(c *AgentConfig) {
		if build != nil {
			c.SystemPrompt = build
		}
	}
}

// WithHooks appends observation hooks.
func WithHooks(hooks ...Hook) AgentOption {
	return func(c *AgentConfig) { c.Hooks = append(c.Hooks, hooks...) }
}
