package prompts

// PromptVersion represents a version identifier for prompts.
type PromptVersion string

// PromptV1 is the first version of prompts.
const PromptV1 PromptVersion = "1.0.0"

// Prompt represents a versioned prompt with metadata.
type Prompt struct {
	ID          string        // e.g. "site_editor"
	Version     PromptVersion // Version of this prompt
	Content     string        // Prompt text; may contain {{variable}} placeholders
	Description string
	Deprecated  bool
}
