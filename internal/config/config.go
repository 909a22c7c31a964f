package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	// DataDir is the per-project directory holding configuration and backups.
	DataDir = ".sitesmith"
	// ConfigFile is the configuration file name inside DataDir.
	ConfigFile = "config.yaml"
	// AddendumFile is the default project-specific prompt addendum inside DataDir.
	AddendumFile = "instructions.md"
)

// Config is the sitesmith configuration.
type Config struct {
	Provider Provider `yaml:"provider"`
	Project  Project  `yaml:"project"`
	Agent    Agent    `yaml:"agent"`
}

// Provider selects and authenticates the model provider.
type Provider struct {
	Name    string `yaml:"name"`              // anthropic, openai, deepseek, groq, gemini, ollama, lmstudio
	APIKey  string `yaml:"api_key,omitempty"` // usually supplied through the environment
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"` // override for OpenAI-compatible endpoints
	Timeout string `yaml:"timeout"`            // Go duration, e.g. "5m"
}

// Project describes the sandboxed site tree.
type Project struct {
	Root            string   `yaml:"root,omitempty"`
	EntryScript     string   `yaml:"entry_script"`
	DataDir         string   `yaml:"data_dir"`
	Protected       []string `yaml:"protected,omitempty"`
	PublicRoot      string   `yaml:"public_root,omitempty"`
	DefaultDocument string   `yaml:"default_document"`
	IgnorePatterns  []string `yaml:"ignore_patterns,omitempty"`
}

// Agent tunes the conversation loop.
type Agent struct {
	MaxIterations   int    `yaml:"max_iterations"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	AddendumFile    string `yaml:"addendum_file,omitempty"` // relative to the data dir unless absolute
}

// ValidProviders lists all supported provider names.
var ValidProviders = []string{"anthropic", "openai", "deepseek", "groq", "gemini", "ollama", "lmstudio"}

// DefaultModels is the model used when none is configured.
var DefaultModels = map[string]string{
	"anthropic": "claude-3-5-sonnet-latest",
	"openai":    "gpt-4o-mini",
	"deepseek":  "deepseek-chat",
	"groq":      "llama-3.1-70b-versatile",
	"gemini":    "gemini-1.5-flash",
	"ollama":    "llama3.1",
	"lmstudio":  "local-model",
}

// keyEnv maps providers to their conventional API key variables.
var keyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"groq":      "GROQ_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// DefaultConfig returns a configuration with every field defaulted.
func DefaultConfig() *Config {
	return &Config{
		Provider: Provider{
			Name:    "anthropic",
			Timeout: "5m",
		},
		Project: Project{
			EntryScript:     "editor.php",
			DataDir:         DataDir,
			DefaultDocument: "index.php",
			IgnorePatterns:  []string{".git"},
		},
		Agent: Agent{
			MaxIterations:   10,
			MaxOutputTokens: 4096,
			AddendumFile:    AddendumFile,
		},
	}
}

// RequiresAPIKey reports whether the provider refuses unauthenticated calls.
func (p Provider) RequiresAPIKey() bool {
	return p.Name != "ollama" && p.Name != "lmstudio"
}

// GetTimeout returns the provider timeout as a duration.
func (p Provider) GetTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// AddendumPath returns the absolute path of the prompt addendum file, or ""
// when none is configured.
func (c *Config) AddendumPath() string {
	if c.Agent.AddendumFile == "" {
		return ""
	}
	if filepath.IsAbs(c.Agent.AddendumFile) {
		return c.Agent.AddendumFile
	}
	return filepath.Join(c.Project.Root, c.Project.DataDir, c.Agent.AddendumFile)
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if name := os.Getenv("SITESMITH_PROVIDER"); name != "" {
		c.Provider.Name = name
	}
	if env, ok := keyEnv[c.Provider.Name]; ok {
		if key := os.Getenv(env); key != "" {
			c.Provider.APIKey = key
		}
	}
	if key := os.Getenv("SITESMITH_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if model := os.Getenv("SITESMITH_MODEL"); model != "" {
		c.Provider.Model = model
	}
	if url := os.Getenv("SITESMITH_BASE_URL"); url != "" {
		c.Provider.BaseURL = url
	}
	if root := os.Getenv("SITESMITH_ROOT"); root != "" {
		c.Project.Root = root
	}
}

// applyDefaults fills fields left empty by the file and environment.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Provider.Name == "" {
		c.Provider.Name = def.Provider.Name
	}
	if c.Provider.Model == "" {
		c.Provider.Model = DefaultModels[c.Provider.Name]
	}
	if c.Provider.Timeout == "" {
		c.Provider.Timeout = def.Provider.Timeout
	}
	if c.Project.EntryScript == "" {
		c.Project.EntryScript = def.Project.EntryScript
	}
	if c.Project.DataDir == "" {
		c.Project.DataDir = def.Project.DataDir
	}
	if c.Project.DefaultDocument == "" {
		c.Project.DefaultDocument = def.Project.DefaultDocument
	}
	if c.Project.IgnorePatterns == nil {
		c.Project.IgnorePatterns = def.Project.IgnorePatterns
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = def.Agent.MaxIterations
	}
	if c.Agent.MaxOutputTokens == 0 {
		c.Agent.MaxOutputTokens = def.Agent.MaxOutputTokens
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !slices.Contains(ValidProviders, c.Provider.Name) {
		return fmt.Errorf("invalid provider: %q (valid: %v)", c.Provider.Name, ValidProviders)
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("model not configured for provider %s", c.Provider.Name)
	}
	if c.Provider.RequiresAPIKey() && c.Provider.APIKey == "" {
		hint := "SITESMITH_API_KEY"
		if env, ok := keyEnv[c.Provider.Name]; ok {
			hint += " or " + env
		}
		return fmt.Errorf("API key not configured for provider %s (set %s)", c.Provider.Name, hint)
	}
	if _, err := time.ParseDuration(c.Provider.Timeout); err != nil {
		return fmt.Errorf("invalid provider timeout %q: %w", c.Provider.Timeout, err)
	}
	if c.Project.Root == "" || !filepath.IsAbs(c.Project.Root) {
		return fmt.Errorf("project root must be an absolute path, got %q", c.Project.Root)
	}
	if info, err := os.Stat(c.Project.Root); err != nil || !info.IsDir() {
		return fmt.Errorf("project root is not a directory: %s", c.Project.Root)
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	return nil
}
