package prompts

import (
	"fmt"
	"os"
)

// Options parameterize the system prompt.
type Options struct {
	EntryScript     string
	PublicRoot      string // "" means the project root
	DefaultDocument string
	AddendumPath    string // optional project-specific instructions
}

// LoadAddendum reads the project instructions file. A missing file or an
// empty path yields "".
func LoadAddendum(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompt addendum: %w", err)
	}
	return string(data), nil
}

// Build assembles the system prompt from the registered base prompt and the
// addendum file, which is read on every call.
func Build(reg *PromptRegistry, opts Options) (string, error) {
	base, err := reg.GetLatest(SiteEditorID)
	if err != nil {
		return "", err
	}

	publicRoot := opts.PublicRoot
	if publicRoot == "" {
		publicRoot = "the project root"
	}
	prompt := NewPromptBuilder(base).
		SetVariable("entry_script", opts.EntryScript).
		SetVariable("public_root", publicRoot).
		SetVariable("default_document", opts.DefaultDocument).
		Build()

	addendum, err := LoadAddendum(opts.AddendumPath)
	if err != nil {
		return "", err
	}
	return NewPromptBuilder(&Prompt{Content: prompt}).
		AddFragment(projectSection(addendum)).
		Build(), nil
}

// SystemPrompt returns a builder function for engine.WithSystemPrompt.
func SystemPrompt(opts Options) func() (string, error) {
	return func() (string, error) {
		return Build(DefaultRegistry(), opts)
	}
}

func projectSection(addendum string) string {
	if addendum == "" {
		return ""
	}
	return "Project instructions:\n" + addendum
}
