package main

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/sitesmith/internal/config"
	"github.com/ChamsBouzaiene/sitesmith/internal/engine"
	"github.com/ChamsBouzaiene/sitesmith/internal/files"
	"github.com/ChamsBouzaiene/sitesmith/internal/prompts"
	"github.com/ChamsBouzaiene/sitesmith/internal/providers"
	"github.com/ChamsBouzaiene/sitesmith/internal/tools"
)

// runtimeEnv is everything a command needs to operate on one project.
type runtimeEnv struct {
	cfg   *config.Config
	files *files.Manager
	log   *zap.Logger
}

func prepareRuntimeEnv(opts *cliOptions) (*runtimeEnv, error) {
	cfgManager, err := config.NewManager(opts.root, opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := cfgManager.Load()
	if err != nil {
		return nil, err
	}
	// --root beats SITESMITH_ROOT and the config file.
	if opts.root != "" {
		abs, err := filepath.Abs(opts.root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve project root: %w", err)
		}
		cfg.Project.Root = abs
	}

	m, err := files.NewManager(files.Config{
		Root:            cfg.Project.Root,
		DataDir:         cfg.Project.DataDir,
		EntryScript:     cfg.Project.EntryScript,
		Protected:       cfg.Project.Protected,
		PublicRoot:      cfg.Project.PublicRoot,
		DefaultDocument: cfg.Project.DefaultDocument,
		IgnorePatterns:  cfg.Project.IgnorePatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}

	opts.logger.Debug("project ready",
		zap.String("root", m.Root()),
		zap.String("config", cfgManager.GetConfigPath()),
		zap.String("provider", cfg.Provider.Name))
	return &runtimeEnv{cfg: cfg, files: m, log: opts.logger}, nil
}

// newAgent builds the conversational agent. It fails when the provider is
// not fully configured.
func (e *runtimeEnv) newAgent() (*engine.Agent, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	llm, err := providers.New(e.cfg.Provider,
		providers.WithLogger(e.log),
		providers.WithMaxTokens(e.cfg.Agent.MaxOutputTokens),
	)
	if err != nil {
		return nil, err
	}

	systemPrompt := prompts.SystemPrompt(prompts.Options{
		EntryScript:     e.cfg.Project.EntryScript,
		PublicRoot:      e.cfg.Project.PublicRoot,
		DefaultDocument: e.cfg.Project.DefaultDocument,
		AddendumPath:    e.cfg.AddendumPath(),
	})

	e.log.Info("agent ready",
		zap.String("provider", e.cfg.Provider.Name),
		zap.String("model", e.cfg.Provider.Model),
		zap.Int("max_iterations", e.cfg.Agent.MaxIterations))

	return engine.NewAgent(llm, tools.NewRegistry(e.files),
		engine.WithMaxIterations(e.cfg.Agent.MaxIterations),
		engine.WithSystemPrompt(systemPrompt),
		engine.WithHooks(engine.LoggerHook{L: e.log.Named("agent")}),
	), nil
}
