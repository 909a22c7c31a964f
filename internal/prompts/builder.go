package prompts

import (
	"strings"
)

// PromptBuilder composes a prompt from fragments and {{key}} variables.
type PromptBuilder struct {
	fragments []string
	variables map[string]string
}

// NewPromptBuilder starts a builder from the base prompt.
func NewPromptBuilder(base *Prompt) *PromptBuilder {
	b := &PromptBuilder{variables: make(map[string]string)}
	if base != nil {
		b.fragments = append(b.fragments, base.Content)
	}
	return b
}

// AddFragment appends a fragment. Blank fragments are ignored.
func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	if strings.TrimSpace(text) != "" {
		b.fragments = append(b.fragments, strings.TrimSpace(text))
	}
	return b
}

// SetVariable sets a variable for template substitution.
func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// Build joins the fragments and substitutes the variables.
func (b *PromptBuilder) Build() string {
	result := strings.Join(b.fragments, "\n\n")
	for key, value := range b.variables {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}
