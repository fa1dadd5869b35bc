package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/state"
	"clipforge/internal/toolchain"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
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

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logFilePath returns the log file every command writes to and the logs
// command reads back.
func logFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "clipforge.log")
}

// commandLogger writes structured logs to the log file only, keeping stdout
// free for command output.
func (c *commandContext) commandLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg := c.configValue()
		if cfg == nil || cfg.Paths.LogDir == "" {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.New(logging.Options{
			Level:            cfg.Logging.Level,
			Format:           cfg.Logging.Format,
			OutputPaths:      []string{logFilePath(cfg)},
			ErrorOutputPaths: []string{logFilePath(cfg)},
		})
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

// toolEnv bundles the services most commands need.
type toolEnv struct {
	cfg     *config.Config
	store   *state.Store
	manager *toolchain.Manager
	logger  *slog.Logger
}

// withToolchain opens the state store, builds a tool manager over it, and
// hands both to fn. The store is closed when fn returns.
func (c *commandContext) withToolchain(fn func(env *toolEnv) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := state.Open(cfg)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	logger := c.commandLogger()
	env := &toolEnv{
		cfg:     cfg,
		store:   store,
		manager: toolchain.NewManager(cfg, store, logger),
		logger:  logger,
	}
	return fn(env)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
