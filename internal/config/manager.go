package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manager handles loading and saving the configuration of one project.
type Manager struct {
	root string
	path string
}

// NewManager creates a manager for the project at root. An empty path selects
// <root>/.sitesmith/config.yaml.
func NewManager(root, path string) (*Manager, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	if path == "" {
		path = filepath.Join(abs, DataDir, ConfigFile)
	}
	return &Manager{root: abs, path: path}, nil
}

// GetConfigPath returns the absolute path to the config file.
func (m *Manager) GetConfigPath() string {
	return m.path
}

// Load reads the configuration from disk, applies environment overrides and
// fills defaults. A missing file yields the defaults.
func (m *Manager) Load() (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(m.path)
	switch {
	case os.IsNotExist(err):
		cfg = DefaultConfig()
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config yaml: %w", err)
		}
		// A relative root in the file is relative to the project it belongs to.
		if cfg.Project.Root != "" && !filepath.IsAbs(cfg.Project.Root) {
			cfg.Project.Root = filepath.Join(m.root, cfg.Project.Root)
		}
	}

	cfg.applyEnvOverrides()
	if cfg.Project.Root == "" {
		cfg.Project.Root = m.root
	}
	if abs, err := filepath.Abs(cfg.Project.Root); err == nil {
		cfg.Project.Root = abs
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to disk with restricted permissions (0600).
// The API key is never written; it belongs in the environment.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	out := *cfg
	out.Provider.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return !os.IsNotExist(err)
}
