package main

import (
	"log/slog"
	"strings"
	"sync"

	"runreel/internal/archive"
	"runreel/internal/config"
	"runreel/internal/generation"
	"runreel/internal/logging"
	"runreel/internal/records"
	"runreel/internal/services/tavus"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) openStore() (*records.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return records.Open(cfg)
}

// buildOrchestrator assembles the full generation stack for in-process use.
// The caller owns the returned store and must close it.
func (c *commandContext) buildOrchestrator() (*generation.Orchestrator, *records.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, nil, err
	}
	store, err := records.Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	provider := tavus.NewClient(cfg.Tavus.APIKey, tavus.WithBaseURL(cfg.Tavus.BaseURL))

	opts := []generation.Option{}
	archiver, err := archive.New(cfg, logger)
	if err != nil {
		logger.Warn("archive disabled", logging.Error(err))
	} else if archiver != nil {
		opts = append(opts, generation.WithArchiver(archiver))
	}

	return generation.New(cfg, store, provider, logger, opts...), store, nil
}
